package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sellerkit/improver/internal/model"
)

// failingModel fails every completion.
type failingModel struct{ err error }

func (m *failingModel) Complete(context.Context, string) (*Completion, error) {
	return nil, m.err
}

// fixedModel returns the same completion for every prompt.
type fixedModel struct{ text string }

func (m *fixedModel) Complete(context.Context, string) (*Completion, error) {
	return &Completion{Text: m.text, TokensIn: 10, TokensOut: 5}, nil
}

func testItem(planned *model.PlannedImprovements) *model.Item {
	rating := 50.0
	item := model.NewItem("item-1", "job-1", "p-1", &model.ItemInputSnapshot{
		Product: &model.ProductSnapshot{
			Ref:  model.ProductRef{ID: "p-1", SKU: "42"},
			Text: &model.ProductTextSnapshot{Name: "Old Mug"},
		},
		RatingAtEnqueue:     &rating,
		PlannedImprovements: planned,
	})
	return &item
}

func fullPlan() *model.PlannedImprovements {
	return &model.PlannedImprovements{
		Text: &model.PlannedTextImprovements{
			RichContent: &model.PlannedRichContentImprovement{
				Type:           model.ImprovementRichContent,
				ShouldGenerate: true,
			},
		},
		Name: &model.PlannedNameImprovement{
			Type:           model.ImprovementName,
			ShouldGenerate: true,
			Mode:           "seo-name",
			Current:        "Old Mug",
			MaxLength:      120,
		},
	}
}

func testJob() *model.Job {
	job := model.NewJob("job-1", "ai-rich", &model.JobPayload{Version: 1, Kind: model.JobKindRatingImprove})
	return &job
}

func TestPipeline_FullRun(t *testing.T) {
	adapter := &StubAdapter{}
	p := NewPipeline(adapter, &StubModelClient{})

	result, err := p.Run(context.Background(), testJob(), testItem(fullPlan()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Error("result.Success = false, want true")
	}

	rc, ok := result.AIOutputs["rich_content"].(json.RawMessage)
	if !ok || len(rc) == 0 {
		t.Fatalf("rich_content output = %#v, want non-empty JSON", result.AIOutputs["rich_content"])
	}
	if !json.Valid(rc) {
		t.Error("rich_content output is not valid JSON")
	}

	name, _ := result.AIOutputs["name"].(string)
	if name == "" {
		t.Error("name output missing")
	}

	// Both generated surfaces must reach the marketplace.
	if len(adapter.Applied) != 1 {
		t.Fatalf("apply calls = %d, want 1", len(adapter.Applied))
	}
	if _, ok := adapter.Applied[0]["rich_content"]; !ok {
		t.Error("applied changes missing rich_content")
	}
	if _, ok := adapter.Applied[0]["name"]; !ok {
		t.Error("applied changes missing name")
	}

	if result.MarketplaceResponse == nil {
		t.Error("marketplace response missing")
	}
	if result.Metrics == nil || result.Metrics.TokensIn == 0 || result.Metrics.TokensOut == 0 {
		t.Errorf("metrics = %+v, want non-zero token counts", result.Metrics)
	}
}

func TestPipeline_NameStepSkippedWithoutPlan(t *testing.T) {
	adapter := &StubAdapter{}
	p := NewPipeline(adapter, &StubModelClient{})

	planned := fullPlan()
	planned.Name = nil

	result, err := p.Run(context.Background(), testJob(), testItem(planned))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := result.AIOutputs["name"]; ok {
		t.Error("name generated without a name plan")
	}
	if _, ok := adapter.Applied[0]["name"]; ok {
		t.Error("name applied without a name plan")
	}
}

func TestPipeline_NameTruncatedToMaxLength(t *testing.T) {
	long := strings.Repeat("Very Long Product Name ", 20)

	planned := fullPlan()
	planned.Name.MaxLength = 30

	p := NewPipeline(&StubAdapter{}, &promptSwitchModel{long: long})

	result, err := p.Run(context.Background(), testJob(), testItem(planned))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	name, _ := result.AIOutputs["name"].(string)
	if utf8.RuneCountInString(name) > 30 {
		t.Errorf("name length = %d runes, want <= 30", utf8.RuneCountInString(name))
	}
}

// promptSwitchModel returns JSON for rich-content prompts and a long
// plain-text name otherwise.
type promptSwitchModel struct{ long string }

func (m *promptSwitchModel) Complete(_ context.Context, prompt string) (*Completion, error) {
	if strings.Contains(prompt, "rich content") {
		return &Completion{Text: `{"version":1,"widgets":[]}`, TokensIn: 5, TokensOut: 5}, nil
	}
	return &Completion{Text: m.long, TokensIn: 5, TokensOut: 5}, nil
}

func TestPipeline_StepErrors(t *testing.T) {
	boom := fmt.Errorf("boom")

	tests := []struct {
		name     string
		adapter  *StubAdapter
		model    ModelClient
		wantStep string
	}{
		{"fetch failure", &StubAdapter{FetchErr: boom}, &StubModelClient{}, "fetch"},
		{"generation failure", &StubAdapter{}, &failingModel{err: boom}, "rich_content"},
		{"invalid rich content JSON", &StubAdapter{}, &fixedModel{text: "not json"}, "rich_content"},
		{"apply failure", &StubAdapter{ApplyErr: boom}, &StubModelClient{}, "apply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.adapter, tt.model)
			_, err := p.Run(context.Background(), testJob(), testItem(fullPlan()))
			if err == nil {
				t.Fatal("expected error")
			}
			var se *StepError
			if !errors.As(err, &se) {
				t.Fatalf("error %v is not a StepError", err)
			}
			if se.Step != tt.wantStep {
				t.Errorf("failing step = %q, want %q", se.Step, tt.wantStep)
			}
		})
	}
}

func TestPipeline_PageTextIsBestEffort(t *testing.T) {
	item := testItem(fullPlan())
	item.InputSnapshot.Product.Extra = map[string]any{"page_url": "https://market.example/p/42"}

	p := NewPipeline(&StubAdapter{}, &StubModelClient{}, WithExtractor(&StubExtractor{}))
	if _, err := p.Run(context.Background(), testJob(), item); err != nil {
		t.Fatalf("Run with extractor: %v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
