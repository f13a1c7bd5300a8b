package model

import "encoding/json"

// Improvement type constants
const (
	ImprovementRichContent = "rich_content"
	ImprovementAnnotation  = "annotation"
	ImprovementName        = "name"
	ImprovementMedia       = "media"
	ImprovementAttributes  = "attributes"
	ImprovementHashtags    = "hashtags"
)

// Improvement reason constants
const (
	ReasonLowRating         = "low_rating"
	ReasonMissingFields     = "missing_fields"
	ReasonInsufficientMedia = "insufficient_media"
	ReasonStrategyRule      = "strategy_rule"
	ReasonManualOverride    = "manual_override"
)

// ProductRef identifies a catalog item across systems. Immutable once created.
type ProductRef struct {
	ID         string `json:"id"`
	SKU        string `json:"sku,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// Key returns the lookup key used for rating maps: SKU when present,
// otherwise the product id.
func (r ProductRef) Key() string {
	if r.SKU != "" {
		return r.SKU
	}
	return r.ID
}

// RatingCondition is a single pass/fail check inside a rating group.
type RatingCondition struct {
	Key         string   `json:"key"`
	Description string   `json:"description,omitempty"`
	Fulfilled   bool     `json:"fulfilled"`
	Cost        *float64 `json:"cost,omitempty"`
}

// RatingImproveAttribute points at a product attribute the marketplace
// suggests filling in to raise the rating.
type RatingImproveAttribute struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// RatingGroup is a weighted sub-score contributing to the aggregate rating.
type RatingGroup struct {
	Key               string                   `json:"key"`
	Name              string                   `json:"name,omitempty"`
	Rating            *float64                 `json:"rating"`
	Weight            *float64                 `json:"weight,omitempty"`
	Conditions        []RatingCondition        `json:"conditions,omitempty"`
	ImproveAttributes []RatingImproveAttribute `json:"improve_attributes,omitempty"`
	ImproveAtLeast    *float64                 `json:"improve_at_least,omitempty"`
}

// RatingEntry is a point-in-time read of a product's content-quality rating.
// Rating == nil means "unknown / not computed" and must never be treated as zero.
type RatingEntry struct {
	Product ProductRef      `json:"product"`
	Rating  *float64        `json:"rating"`
	Groups  []RatingGroup   `json:"groups,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// ProductTextSnapshot holds the textual content fields of a product.
type ProductTextSnapshot struct {
	Name            string          `json:"name,omitempty"`
	Brand           string          `json:"brand,omitempty"`
	Annotation      string          `json:"annotation,omitempty"`
	RichContentJSON json.RawMessage `json:"rich_content_json,omitempty"`
}

// ProductMediaSnapshot holds the media content of a product.
type ProductMediaSnapshot struct {
	Images []string       `json:"images,omitempty"`
	Videos []string       `json:"videos,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// ProductSnapshot is the full content state used as planning input and as
// the current-value baseline when diffing generated content.
type ProductSnapshot struct {
	Ref        ProductRef            `json:"ref"`
	Text       *ProductTextSnapshot  `json:"text,omitempty"`
	Media      *ProductMediaSnapshot `json:"media,omitempty"`
	Attributes map[string]any        `json:"attributes,omitempty"`
	Hashtags   []string              `json:"hashtags,omitempty"`
	Rating     *RatingEntry          `json:"rating,omitempty"`
	Extra      map[string]any        `json:"extra,omitempty"`
}

// Name returns the current product name, tolerating a nil text snapshot.
func (p *ProductSnapshot) Name() string {
	if p == nil || p.Text == nil {
		return ""
	}
	return p.Text.Name
}

// PlannedRichContentImprovement plans (re)generation of rich content.
type PlannedRichContentImprovement struct {
	Type                string         `json:"type"`
	ShouldGenerate      bool           `json:"should_generate"`
	Reason              string         `json:"reason,omitempty"`
	SourceGroupKey      string         `json:"source_group_key,omitempty"`
	SourceConditionKey  string         `json:"source_condition_key,omitempty"`
	ExpectedImpactScore *float64       `json:"expected_impact_score,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// PlannedAnnotationImprovement plans (re)generation of the annotation text.
type PlannedAnnotationImprovement struct {
	Type           string `json:"type"`
	ShouldGenerate bool   `json:"should_generate"`
	MinLength      int    `json:"min_length,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// PlannedNameImprovement plans (re)generation of the product name.
type PlannedNameImprovement struct {
	Type           string `json:"type"`
	ShouldGenerate bool   `json:"should_generate"`
	Mode           string `json:"mode,omitempty"`
	Current        string `json:"current,omitempty"`
	MaxLength      int    `json:"max_length,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// PlannedMediaImprovement plans additional media.
type PlannedMediaImprovement struct {
	Type           string `json:"type"`
	ShouldGenerate bool   `json:"should_generate"`
	MinImages      int    `json:"min_images,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// PlannedAttributesImprovement plans filling in missing attributes.
type PlannedAttributesImprovement struct {
	Type           string   `json:"type"`
	ShouldGenerate bool     `json:"should_generate"`
	RequiredKeys   []string `json:"required_keys,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// PlannedHashtagsImprovement plans (re)generation of hashtags.
type PlannedHashtagsImprovement struct {
	Type           string `json:"type"`
	ShouldGenerate bool   `json:"should_generate"`
	MaxCount       int    `json:"max_count,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// PlannedTextImprovements groups the text-related improvement surfaces.
type PlannedTextImprovements struct {
	RichContent *PlannedRichContentImprovement `json:"rich_content,omitempty"`
	Annotation  *PlannedAnnotationImprovement  `json:"annotation,omitempty"`
}

// PlannedImprovements is a sparse decision record keyed by improvement
// surface. A nil entry means "no decision was made for that surface",
// which is distinct from an entry with ShouldGenerate == false
// ("decided not to generate"). The run gate relies on that distinction.
type PlannedImprovements struct {
	Text       *PlannedTextImprovements      `json:"text,omitempty"`
	Name       *PlannedNameImprovement       `json:"name,omitempty"`
	Media      *PlannedMediaImprovement      `json:"media,omitempty"`
	Attributes *PlannedAttributesImprovement `json:"attributes,omitempty"`
	Hashtags   *PlannedHashtagsImprovement   `json:"hashtags,omitempty"`
}

// IsEmpty reports whether no surface was planned at all.
func (p *PlannedImprovements) IsEmpty() bool {
	if p == nil {
		return true
	}
	if p.Text != nil && (p.Text.RichContent != nil || p.Text.Annotation != nil) {
		return false
	}
	return p.Name == nil && p.Media == nil && p.Attributes == nil && p.Hashtags == nil
}

// RichContent returns the planned rich-content entry, or nil when no
// decision was made for that surface.
func (p *PlannedImprovements) RichContent() *PlannedRichContentImprovement {
	if p == nil || p.Text == nil {
		return nil
	}
	return p.Text.RichContent
}
