package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
)

const (
	// maxPageTextLength caps extracted page text; it is prompt context,
	// not the deliverable.
	maxPageTextLength = 6000
	// minPageTextLength rejects pages that are likely bot walls or
	// region blocks rather than real product cards.
	minPageTextLength = 80
	// maxBodySize is the maximum HTTP response body size (5MB).
	maxBodySize = 5 * 1024 * 1024
)

// PageExtractor fetches public product pages and extracts readable text
// using go-readability. The result is fed to the model as the current
// state of the product card.
type PageExtractor struct {
	client *http.Client
}

// NewPageExtractor creates a new HTTP-based page extractor.
func NewPageExtractor() *PageExtractor {
	return &PageExtractor{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Extract fetches the URL and extracts the readable product page text.
func (e *PageExtractor) Extract(ctx context.Context, url string) (*ExtractedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Marketplaces block obvious bots; present a browser User-Agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parsedURL, _ := nurl.Parse(url)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	text := normalizeText(article.TextContent)

	if utf8.RuneCountInString(text) < minPageTextLength {
		return nil, fmt.Errorf("extracted page text too short (%d chars), possibly blocked", utf8.RuneCountInString(text))
	}
	if utf8.RuneCountInString(text) > maxPageTextLength {
		text = truncateRunes(text, maxPageTextLength) + "\n... [truncated]"
	}

	return &ExtractedContent{
		NormalizedText: text,
		WordCount:      len(strings.Fields(text)),
	}, nil
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
