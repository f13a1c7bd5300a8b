// Package jobs builds improvement jobs: it plans every product against
// its rating snapshot and enqueues one pending item per product with a
// frozen input snapshot.
package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sellerkit/improver/internal/model"
	"github.com/sellerkit/improver/internal/plan"
	"github.com/sellerkit/improver/internal/store"
)

// Enqueuer creates rating-improve jobs.
type Enqueuer struct {
	store        store.JobStore
	targetRating float64
}

// NewEnqueuer creates an Enqueuer. A zero targetRating falls back to
// the planner's default.
func NewEnqueuer(s store.JobStore, targetRating float64) *Enqueuer {
	return &Enqueuer{store: s, targetRating: targetRating}
}

// Request is one enqueue call: a batch of product refs plus the rating
// entries looked up for them, keyed by SKU (or id when the SKU is
// empty). Missing keys mean "rating unknown".
type Request struct {
	Refs         []model.ProductRef
	Ratings      map[string]*model.RatingEntry
	TargetRating float64
}

// EnqueueRatingImprove plans every product and creates the job with its
// items. The plan and the product state are captured into each item's
// input snapshot at this moment; later rating or content changes do not
// affect the enqueued work.
func (e *Enqueuer) EnqueueRatingImprove(ctx context.Context, req Request) (*model.Job, error) {
	if len(req.Refs) == 0 {
		return nil, fmt.Errorf("enqueue: no product refs")
	}

	target := req.TargetRating
	if target <= 0 {
		target = e.targetRating
	}

	job := model.NewJob(uuid.New().String(), "ai-rich", &model.JobPayload{
		Version: 1,
		Kind:    model.JobKindRatingImprove,
	})
	if err := e.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	for _, ref := range req.Refs {
		rating := req.Ratings[ref.Key()]

		snapshot := &model.ProductSnapshot{
			Ref:    ref,
			Rating: rating,
		}
		planned := plan.BuildFromRating(rating, snapshot, plan.Options{TargetRating: target})

		input := &model.ItemInputSnapshot{
			Product:             snapshot,
			PlannedImprovements: planned,
		}
		if rating != nil {
			input.RatingAtEnqueue = rating.Rating
			input.RatingEntry = rating.Raw
		}

		item := model.NewItem(uuid.New().String(), job.ID, ref.ID, input)
		if err := e.store.CreateItem(ctx, item); err != nil {
			return nil, fmt.Errorf("create item for product %s: %w", ref.ID, err)
		}
	}

	return &job, nil
}
