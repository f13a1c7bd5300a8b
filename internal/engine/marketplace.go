package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sellerkit/improver/internal/model"
)

// HTTPAdapter implements MarketplaceAdapter against a seller REST API.
// The wire shape is the common denominator of marketplace seller APIs:
// a product document to read, a content endpoint to write.
type HTTPAdapter struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// AdapterOption configures the HTTP adapter.
type AdapterOption func(*HTTPAdapter)

// WithAdapterTimeout overrides the request timeout.
func WithAdapterTimeout(d time.Duration) AdapterOption {
	return func(a *HTTPAdapter) { a.httpClient.Timeout = d }
}

// NewHTTPAdapter creates a marketplace adapter for the given seller API.
func NewHTTPAdapter(name, baseURL, apiKey string, opts ...AdapterOption) *HTTPAdapter {
	a := &HTTPAdapter{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name identifies the marketplace.
func (a *HTTPAdapter) Name() string {
	return a.name
}

type productResponse struct {
	ID         string          `json:"id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Brand      string          `json:"brand"`
	Annotation string          `json:"annotation"`
	RichJSON   json.RawMessage `json:"rich_content_json"`
	Images     []string        `json:"images"`
	Videos     []string        `json:"videos"`
	Attributes map[string]any  `json:"attributes"`
	Hashtags   []string        `json:"hashtags"`
	PageURL    string          `json:"page_url"`
}

// FetchProductSnapshot reads the live content state of a product.
func (a *HTTPAdapter) FetchProductSnapshot(ctx context.Context, ref model.ProductRef) (*model.ProductSnapshot, error) {
	body, err := a.do(ctx, http.MethodGet, "/v1/products/"+ref.ID, nil)
	if err != nil {
		return nil, err
	}

	var pr productResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}

	snapshot := &model.ProductSnapshot{
		Ref: ref,
		Text: &model.ProductTextSnapshot{
			Name:            pr.Name,
			Brand:           pr.Brand,
			Annotation:      pr.Annotation,
			RichContentJSON: pr.RichJSON,
		},
		Attributes: pr.Attributes,
		Hashtags:   pr.Hashtags,
	}
	if len(pr.Images) > 0 || len(pr.Videos) > 0 {
		snapshot.Media = &model.ProductMediaSnapshot{Images: pr.Images, Videos: pr.Videos}
	}
	if pr.PageURL != "" {
		snapshot.Extra = map[string]any{"page_url": pr.PageURL}
	}
	return snapshot, nil
}

// ApplyProductChanges writes generated content back to the product.
func (a *HTTPAdapter) ApplyProductChanges(ctx context.Context, ref model.ProductRef, changes map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("marshal changes: %w", err)
	}

	body, err := a.do(ctx, http.MethodPost, "/v1/products/"+ref.ID+"/content", payload)
	if err != nil {
		return nil, err
	}

	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp, nil
}

func (a *HTTPAdapter) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, string(body))
	}
	return body, nil
}
