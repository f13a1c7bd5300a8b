package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sellerkit/improver/internal/model"
)

// Pipeline runs the generation steps for one gated item:
// fetch → rich content → name → apply. The run gate has already decided
// that the item should run; the pipeline only honors surface-level plan
// details (which surfaces, length limits).
type Pipeline struct {
	adapter   MarketplaceAdapter
	model     ModelClient
	extractor ContentExtractor
	now       func() time.Time
}

// PipelineOption configures the pipeline.
type PipelineOption func(*Pipeline)

// WithExtractor enables live product-page extraction for prompt context.
func WithExtractor(e ContentExtractor) PipelineOption {
	return func(p *Pipeline) { p.extractor = e }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline with the given collaborators.
func NewPipeline(adapter MarketplaceAdapter, mc ModelClient, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{adapter: adapter, model: mc, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Trace records one executed step, for debugging via the result snapshot.
type Trace struct {
	Step  string `json:"step"`
	Error string `json:"error,omitempty"`
	At    string `json:"at"`
}

// StepError wraps an error with the step name that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName returns the failing step, for error reporting at the worker
// boundary.
func (e *StepError) StepName() string {
	return e.Step
}

// Run executes the generation steps for the given item and returns its
// result snapshot. On failure it returns a *StepError naming the step.
func (p *Pipeline) Run(ctx context.Context, job *model.Job, item *model.Item) (*model.ItemResultSnapshot, error) {
	start := p.now()
	input := item.InputSnapshot
	if input == nil || input.Product == nil {
		return nil, &StepError{Step: "fetch", Err: fmt.Errorf("item %s has no product in input snapshot", item.ID)}
	}
	ref := input.Product.Ref

	var traces []Trace
	var tokensIn, tokensOut int
	outputs := map[string]any{}

	// Step 1: fetch the live product state. The frozen snapshot drives
	// decisions; the live state is the generation baseline.
	live, err := p.adapter.FetchProductSnapshot(ctx, ref)
	if err != nil {
		return nil, &StepError{Step: "fetch", Err: err}
	}
	traces = p.trace(traces, "fetch")

	// Optional: pull readable text from the public product page.
	pageText := p.extractPageText(ctx, input.Product)

	// Step 2: rich content.
	richContent, usage, err := p.runRichContent(ctx, input, live, pageText)
	if err != nil {
		return nil, &StepError{Step: "rich_content", Err: err}
	}
	outputs["rich_content"] = richContent
	tokensIn += usage.TokensIn
	tokensOut += usage.TokensOut
	traces = p.trace(traces, "rich_content")

	// Step 3: name, only when the plan asks for it.
	if planned := plannedName(input); planned != nil && planned.ShouldGenerate {
		name, usage, err := p.runName(ctx, planned, live)
		if err != nil {
			return nil, &StepError{Step: "name", Err: err}
		}
		outputs["name"] = name
		tokensIn += usage.TokensIn
		tokensOut += usage.TokensOut
		traces = p.trace(traces, "name")
	}

	// Step 4: apply the generated content back to the marketplace.
	changes := map[string]any{"rich_content": richContent}
	if name, ok := outputs["name"]; ok {
		changes["name"] = name
	}
	resp, err := p.adapter.ApplyProductChanges(ctx, ref, changes)
	if err != nil {
		return nil, &StepError{Step: "apply", Err: err}
	}
	traces = p.trace(traces, "apply")

	return &model.ItemResultSnapshot{
		Success:             true,
		AIOutputs:           outputs,
		MarketplaceResponse: resp,
		Metrics: &model.ResultMetrics{
			LatencyMs: p.now().Sub(start).Milliseconds(),
			TokensIn:  tokensIn,
			TokensOut: tokensOut,
		},
		Extra: map[string]any{"traces": traces, "marketplace": p.adapter.Name()},
	}, nil
}

func (p *Pipeline) trace(traces []Trace, step string) []Trace {
	return append(traces, Trace{Step: step, At: p.now().UTC().Format(time.RFC3339)})
}

// extractPageText returns readable text from the product's public page,
// or "" when no page URL is known or extraction fails. Extraction is
// best-effort context, never a reason to fail the item.
func (p *Pipeline) extractPageText(ctx context.Context, product *model.ProductSnapshot) string {
	if p.extractor == nil || product.Extra == nil {
		return ""
	}
	url, _ := product.Extra["page_url"].(string)
	if url == "" {
		return ""
	}
	content, err := p.extractor.Extract(ctx, url)
	if err != nil {
		return ""
	}
	return content.NormalizedText
}

func (p *Pipeline) runRichContent(ctx context.Context, input *model.ItemInputSnapshot, live *model.ProductSnapshot, pageText string) (json.RawMessage, *Completion, error) {
	prompt := buildRichContentPrompt(input, live, pageText)
	completion, err := p.model.Complete(ctx, prompt)
	if err != nil {
		return nil, nil, err
	}

	raw := stripCodeFence(completion.Text)
	if !json.Valid([]byte(raw)) {
		return nil, nil, fmt.Errorf("model returned invalid rich-content JSON")
	}
	return json.RawMessage(raw), completion, nil
}

func (p *Pipeline) runName(ctx context.Context, planned *model.PlannedNameImprovement, live *model.ProductSnapshot) (string, *Completion, error) {
	prompt := buildNamePrompt(planned, live)
	completion, err := p.model.Complete(ctx, prompt)
	if err != nil {
		return "", nil, err
	}

	name := strings.TrimSpace(strings.Trim(strings.TrimSpace(completion.Text), `"`))
	if name == "" {
		return "", nil, fmt.Errorf("model returned an empty name")
	}
	if planned.MaxLength > 0 {
		name = truncateRunes(name, planned.MaxLength)
	}
	return name, completion, nil
}

func plannedName(input *model.ItemInputSnapshot) *model.PlannedNameImprovement {
	if input.PlannedImprovements == nil {
		return nil
	}
	return input.PlannedImprovements.Name
}

// stripCodeFence removes a surrounding markdown code fence, which some
// models add despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
