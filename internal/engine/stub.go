package engine

import (
	"context"
	"strings"

	"github.com/sellerkit/improver/internal/model"
)

// StubModelClient returns mock generation results (for development/testing).
type StubModelClient struct{}

func (m *StubModelClient) Complete(_ context.Context, prompt string) (*Completion, error) {
	if strings.Contains(prompt, "rich content") {
		return &Completion{
			Text: `{"version": 1, "widgets": [` +
				`{"type": "text", "title": "Why you'll like it", "body": "[Stub] Durable everyday product with a practical design."},` +
				`{"type": "bullets", "items": ["[Stub] Easy to clean", "[Stub] Compact size", "[Stub] One year warranty"]}]}`,
			TokensIn:  420,
			TokensOut: 96,
		}, nil
	}

	if strings.Contains(prompt, "SEO editor") {
		return &Completion{
			Text:      "[Stub] Steel Travel Mug 350 ml with Lid, Leak-Proof, Double Wall",
			TokensIn:  180,
			TokensOut: 18,
		}, nil
	}

	return &Completion{Text: "{}"}, nil
}

// StubAdapter is an in-memory MarketplaceAdapter (for development/testing).
type StubAdapter struct {
	// FetchErr and ApplyErr force failures in tests.
	FetchErr error
	ApplyErr error

	// Applied records every ApplyProductChanges call.
	Applied []map[string]any
}

func (a *StubAdapter) Name() string { return "stub" }

func (a *StubAdapter) FetchProductSnapshot(_ context.Context, ref model.ProductRef) (*model.ProductSnapshot, error) {
	if a.FetchErr != nil {
		return nil, a.FetchErr
	}
	return &model.ProductSnapshot{
		Ref: ref,
		Text: &model.ProductTextSnapshot{
			Name:       "Stub Product " + ref.ID,
			Brand:      "StubBrand",
			Annotation: "A plain stub annotation for product " + ref.ID + ".",
		},
		Attributes: map[string]any{"color": "silver"},
	}, nil
}

func (a *StubAdapter) ApplyProductChanges(_ context.Context, ref model.ProductRef, changes map[string]any) (map[string]any, error) {
	if a.ApplyErr != nil {
		return nil, a.ApplyErr
	}
	a.Applied = append(a.Applied, changes)
	return map[string]any{"task_id": "stub-task-" + ref.ID, "accepted": true}, nil
}

// StubExtractor returns canned page text (for development/testing).
type StubExtractor struct{}

func (e *StubExtractor) Extract(_ context.Context, url string) (*ExtractedContent, error) {
	text := "This is stub page text for " + url + ". It describes the product, its materials and its dimensions in plain language."
	return &ExtractedContent{
		NormalizedText: text,
		WordCount:      len(strings.Fields(text)),
	}, nil
}
