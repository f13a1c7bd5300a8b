package plan

import "github.com/sellerkit/improver/internal/model"

// ShouldRunRichContent decides whether rich-content generation should
// execute for an item, based on the plan frozen at enqueue time.
//
// Jobs that never opted into planning (no payload, or a kind other than
// rating-improve) always run. Rating-improve jobs are plan-gated: a
// missing rich-content entry means generation was explicitly not
// planned, so the answer is false; a present entry runs only when it
// affirmatively says so.
func ShouldRunRichContent(payload *model.JobPayload, input *model.ItemInputSnapshot) bool {
	if payload == nil || payload.Kind != model.JobKindRatingImprove {
		return true
	}
	if input == nil {
		return false
	}
	planned := input.PlannedImprovements.RichContent()
	if planned == nil {
		return false
	}
	return planned.ShouldGenerate
}
