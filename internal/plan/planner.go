// Package plan holds the pure decision logic of the improvement engine:
// turning a rating snapshot into a plan, and gating pipeline steps on
// that plan at execution time. Nothing in this package performs I/O.
package plan

import "github.com/sellerkit/improver/internal/model"

// DefaultTargetRating is the threshold below which improvements are planned.
const DefaultTargetRating = 75

// nameMaxLength caps generated SEO names; marketplaces truncate beyond this.
const nameMaxLength = 120

// Options configures rating-driven planning.
type Options struct {
	// TargetRating is the rating a product should reach. Zero or
	// negative means "use DefaultTargetRating".
	TargetRating float64
}

func (o Options) target() float64 {
	if o.TargetRating > 0 {
		return o.TargetRating
	}
	return DefaultTargetRating
}

// BuildFromRating turns a rating snapshot into planned improvements.
//
// An unknown rating (nil entry or nil rating value) and a rating at or
// above the target both produce the empty plan: without data there is
// nothing to plan against.
//
// Deterministic and side-effect-free: identical inputs always produce
// structurally equal plans.
func BuildFromRating(rating *model.RatingEntry, product *model.ProductSnapshot, opts Options) *model.PlannedImprovements {
	target := opts.target()

	var current *float64
	if rating != nil {
		current = rating.Rating
	}
	if current == nil || *current >= target {
		return &model.PlannedImprovements{}
	}

	impact := target - *current
	return &model.PlannedImprovements{
		Text: &model.PlannedTextImprovements{
			RichContent: &model.PlannedRichContentImprovement{
				Type:                model.ImprovementRichContent,
				ShouldGenerate:      true,
				Reason:              model.ReasonLowRating,
				ExpectedImpactScore: &impact,
			},
		},
		Name: &model.PlannedNameImprovement{
			Type:           model.ImprovementName,
			ShouldGenerate: true,
			Mode:           "seo-name",
			Current:        product.Name(),
			MaxLength:      nameMaxLength,
			Reason:         model.ReasonLowRating,
		},
	}
}
