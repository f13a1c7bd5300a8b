package engine

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/sellerkit/improver/internal/model"
)

func buildRichContentPrompt(input *model.ItemInputSnapshot, live *model.ProductSnapshot, pageText string) string {
	name := live.Name()
	if name == "" {
		name = input.Product.Name()
	}

	var annotation string
	if live.Text != nil {
		annotation = live.Text.Annotation
	}

	ratingNote := "unknown"
	if input.RatingAtEnqueue != nil {
		ratingNote = fmt.Sprintf("%.0f", *input.RatingAtEnqueue)
	}

	context := ""
	if pageText != "" {
		context = "\nCurrent public product page content:\n" + truncateRunes(pageText, 4000) + "\n"
	}

	return fmt.Sprintf(`You are a marketplace content editor. Create rich content for a product card.

Product name: %q
Current annotation: %q
Content rating at enqueue: %s
Attributes: %s
%s
Output ONLY valid JSON with this exact structure (no markdown, no explanation):
{"version": 1, "widgets": [{"type": "text", "title": "...", "body": "..."}, {"type": "bullets", "items": ["...", "..."]}]}

Rules:
- 3 to 6 widgets covering benefits, specifications and usage
- Concrete and factual: never invent specifications absent from the input
- Plain consumer language, no superlative spam`,
		name, truncateRunes(annotation, 2000), ratingNote, mustJSON(live.Attributes), context)
}

func buildNamePrompt(planned *model.PlannedNameImprovement, live *model.ProductSnapshot) string {
	current := planned.Current
	if current == "" {
		current = live.Name()
	}

	var brand string
	if live.Text != nil {
		brand = live.Text.Brand
	}

	return fmt.Sprintf(`You are a marketplace SEO editor. Rewrite a product name for search.

Current name: %q
Brand: %q
Mode: %s

Output ONLY the new name as plain text, nothing else.

Rules:
- At most %d characters
- Keep the brand and the product type first
- Include the most searched attributes (size, material, count)
- No emoji, no ALL CAPS, no promotional words`,
		current, brand, planned.Mode, planned.MaxLength)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
