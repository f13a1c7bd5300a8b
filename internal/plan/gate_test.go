package plan

import (
	"testing"

	"github.com/sellerkit/improver/internal/model"
)

func inputWithRichContent(shouldGenerate bool) *model.ItemInputSnapshot {
	return &model.ItemInputSnapshot{
		PlannedImprovements: &model.PlannedImprovements{
			Text: &model.PlannedTextImprovements{
				RichContent: &model.PlannedRichContentImprovement{
					Type:           model.ImprovementRichContent,
					ShouldGenerate: shouldGenerate,
				},
			},
		},
	}
}

func TestShouldRunRichContent(t *testing.T) {
	ratingImprove := &model.JobPayload{Version: 1, Kind: model.JobKindRatingImprove}

	tests := []struct {
		name    string
		payload *model.JobPayload
		input   *model.ItemInputSnapshot
		want    bool
	}{
		{"nil payload always runs", nil, nil, true},
		{"nil payload ignores input", nil, inputWithRichContent(false), true},
		{"other kind always runs", &model.JobPayload{Kind: model.JobKindDataRefresh}, nil, true},
		{"unknown kind always runs", &model.JobPayload{Kind: "other"}, &model.ItemInputSnapshot{}, true},
		{"rating-improve with nil input", ratingImprove, nil, false},
		{"rating-improve with empty input", ratingImprove, &model.ItemInputSnapshot{}, false},
		{"rating-improve with empty plan", ratingImprove, &model.ItemInputSnapshot{PlannedImprovements: &model.PlannedImprovements{}}, false},
		{"rating-improve planned true", ratingImprove, inputWithRichContent(true), true},
		{"rating-improve planned false", ratingImprove, inputWithRichContent(false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRunRichContent(tt.payload, tt.input); got != tt.want {
				t.Errorf("ShouldRunRichContent() = %v, want %v", got, tt.want)
			}
		})
	}
}
