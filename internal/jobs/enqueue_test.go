package jobs

import (
	"context"
	"testing"

	"github.com/sellerkit/improver/internal/model"
	"github.com/sellerkit/improver/internal/store"
)

func newEnqueuer(t *testing.T) (*Enqueuer, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	t.Cleanup(func() { s.Close() })
	return NewEnqueuer(s, 75), s
}

func ratingFor(sku string, value float64) map[string]*model.RatingEntry {
	return map[string]*model.RatingEntry{
		sku: {
			Product: model.ProductRef{ID: "p-" + sku, SKU: sku},
			Rating:  &value,
		},
	}
}

func TestEnqueue_LowRatingPlansRichContent(t *testing.T) {
	e, s := newEnqueuer(t)
	ctx := context.Background()

	job, err := e.EnqueueRatingImprove(ctx, Request{
		Refs:    []model.ProductRef{{ID: "p-42", SKU: "42"}},
		Ratings: ratingFor("42", 50),
	})
	if err != nil {
		t.Fatalf("EnqueueRatingImprove: %v", err)
	}
	if job.Status != model.JobPending {
		t.Errorf("job status = %q, want %q", job.Status, model.JobPending)
	}
	if job.Payload == nil || job.Payload.Kind != model.JobKindRatingImprove {
		t.Fatalf("job payload = %+v, want rating-improve", job.Payload)
	}

	items, err := s.ListItemsByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListItemsByJob: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	it := items[0]
	if it.Status != model.ItemPending {
		t.Errorf("item status = %q, want pending", it.Status)
	}
	if it.OfferID != "p-42" {
		t.Errorf("offer id = %q, want p-42", it.OfferID)
	}
	if got := it.InputSnapshot.RatingAtEnqueue; got == nil || *got != 50 {
		t.Errorf("rating at enqueue = %v, want 50", got)
	}
	rc := it.InputSnapshot.PlannedImprovements.RichContent()
	if rc == nil || !rc.ShouldGenerate {
		t.Errorf("planned rich content = %+v, want ShouldGenerate true", rc)
	}
}

func TestEnqueue_GoodRatingPlansNothing(t *testing.T) {
	e, s := newEnqueuer(t)
	ctx := context.Background()

	job, err := e.EnqueueRatingImprove(ctx, Request{
		Refs:    []model.ProductRef{{ID: "p-7", SKU: "7"}},
		Ratings: ratingFor("7", 90),
	})
	if err != nil {
		t.Fatalf("EnqueueRatingImprove: %v", err)
	}

	items, _ := s.ListItemsByJob(ctx, job.ID)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if !items[0].InputSnapshot.PlannedImprovements.IsEmpty() {
		t.Errorf("plan = %+v, want empty", items[0].InputSnapshot.PlannedImprovements)
	}
}

func TestEnqueue_UnknownRating(t *testing.T) {
	e, s := newEnqueuer(t)
	ctx := context.Background()

	// No rating entry for this SKU at all.
	job, err := e.EnqueueRatingImprove(ctx, Request{
		Refs:    []model.ProductRef{{ID: "p-9", SKU: "9"}},
		Ratings: map[string]*model.RatingEntry{},
	})
	if err != nil {
		t.Fatalf("EnqueueRatingImprove: %v", err)
	}

	items, _ := s.ListItemsByJob(ctx, job.ID)
	it := items[0]
	if it.InputSnapshot.RatingAtEnqueue != nil {
		t.Errorf("rating at enqueue = %v, want nil for unknown", it.InputSnapshot.RatingAtEnqueue)
	}
	if !it.InputSnapshot.PlannedImprovements.IsEmpty() {
		t.Error("unknown rating should produce the empty plan")
	}
}

func TestEnqueue_KeyFallsBackToID(t *testing.T) {
	e, s := newEnqueuer(t)
	ctx := context.Background()

	rating := 10.0
	job, err := e.EnqueueRatingImprove(ctx, Request{
		Refs: []model.ProductRef{{ID: "p-nosku"}},
		Ratings: map[string]*model.RatingEntry{
			"p-nosku": {Product: model.ProductRef{ID: "p-nosku"}, Rating: &rating},
		},
	})
	if err != nil {
		t.Fatalf("EnqueueRatingImprove: %v", err)
	}

	items, _ := s.ListItemsByJob(ctx, job.ID)
	if items[0].InputSnapshot.PlannedImprovements.IsEmpty() {
		t.Error("rating keyed by id was not picked up")
	}
}

func TestEnqueue_EmptyBatchRejected(t *testing.T) {
	e, _ := newEnqueuer(t)
	if _, err := e.EnqueueRatingImprove(context.Background(), Request{}); err == nil {
		t.Error("expected error for empty batch")
	}
}
