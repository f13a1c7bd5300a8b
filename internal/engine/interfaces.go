package engine

import (
	"context"

	"github.com/sellerkit/improver/internal/model"
)

// Completion is one model response together with its token usage.
// Usage feeds the per-item result metrics.
type Completion struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// ModelClient abstracts LLM calls. Implementations can wrap OpenAI,
// Anthropic, Gemini, local models, etc.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// MarketplaceAdapter abstracts the seller API of a concrete marketplace.
type MarketplaceAdapter interface {
	// Name identifies the marketplace (for logs and result extras).
	Name() string
	// FetchProductSnapshot reads the live content state of a product.
	FetchProductSnapshot(ctx context.Context, ref model.ProductRef) (*model.ProductSnapshot, error)
	// ApplyProductChanges writes generated content back to the product.
	ApplyProductChanges(ctx context.Context, ref model.ProductRef, changes map[string]any) (map[string]any, error)
}

// ContentExtractor abstracts extraction of readable text from a public
// product page, used as the baseline the model improves on.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (*ExtractedContent, error)
}

// ExtractedContent holds the result of page extraction.
type ExtractedContent struct {
	NormalizedText string `json:"normalized_text"`
	WordCount      int    `json:"word_count"`
}
