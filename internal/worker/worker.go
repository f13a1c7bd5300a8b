package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sellerkit/improver/internal/model"
	"github.com/sellerkit/improver/internal/plan"
	"github.com/sellerkit/improver/internal/store"
)

// Processor runs the generation pipeline for a single gated item.
type Processor interface {
	Run(ctx context.Context, job *model.Job, item *model.Item) (*model.ItemResultSnapshot, error)
}

// Worker drives pending items to a terminal state, one pass at a time.
type Worker struct {
	store     store.JobStore
	processor Processor
	interval  time.Duration
}

// New creates a new Worker polling on the given interval.
func New(s store.JobStore, processor Processor, interval time.Duration) *Worker {
	return &Worker{store: s, processor: processor, interval: interval}
}

// PassResult reports one worker pass.
type PassResult struct {
	// Processed is the number of items considered in the pass: the
	// pending count at pass start, including items left unmarked
	// because their job record was missing.
	Processed int `json:"processed"`
}

// RunOnce processes one point-in-time snapshot of the pending queue,
// sequentially and in enqueue order. Items enqueued while the pass is
// running are picked up by the next pass. A single item's failure is
// recorded on that item and never aborts its siblings.
func (w *Worker) RunOnce(ctx context.Context) (PassResult, error) {
	pending, err := w.store.ListPendingItems(ctx)
	if err != nil {
		return PassResult{}, err
	}

	for i := range pending {
		item := &pending[i]

		job, err := w.store.GetJob(ctx, item.JobID)
		if errors.Is(err, store.ErrNotFound) {
			// The item stays pending so the inconsistency remains visible.
			slog.Warn("pending item references missing job", "item_id", item.ID, "job_id", item.JobID)
			continue
		}
		if err != nil {
			return PassResult{}, err
		}

		if !plan.ShouldRunRichContent(job.Payload, item.InputSnapshot) {
			w.finish(ctx, item.ID, model.ItemSkipped, &model.ItemResultSnapshot{
				Success:   true,
				AIOutputs: map[string]any{},
				Extra:     map[string]any{"skipped_by_plan": true},
			})
			continue
		}

		slog.Info("processing item", "item_id", item.ID, "job_id", job.ID, "offer_id", item.OfferID)
		result, err := w.processor.Run(ctx, job, item)
		if err != nil {
			slog.Error("pipeline failed", "item_id", item.ID, "error", err)
			w.finish(ctx, item.ID, model.ItemFailed, &model.ItemResultSnapshot{
				Success: false,
				Error:   buildCoreError(err),
			})
			continue
		}
		w.finish(ctx, item.ID, model.ItemDone, result)
	}

	return PassResult{Processed: len(pending)}, nil
}

// Start polls RunOnce until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("worker started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped")
			return
		default:
		}

		pass, err := w.RunOnce(ctx)
		if err != nil {
			slog.Error("worker pass failed", "error", err)
		} else if pass.Processed > 0 {
			slog.Info("worker pass complete", "processed", pass.Processed)
		}

		select {
		case <-ctx.Done():
		case <-time.After(w.interval):
		}
	}
}

func (w *Worker) finish(ctx context.Context, id, status string, result *model.ItemResultSnapshot) {
	if err := w.store.FinishItem(ctx, id, status, result); err != nil {
		slog.Error("failed to finish item", "item_id", id, "status", status, "error", err)
	}
}

// stepNamer is implemented by pipeline errors that carry a step name.
type stepNamer interface {
	StepName() string
}

// buildCoreError flattens a pipeline error into the item-level error
// shape, coding it by the step that failed.
func buildCoreError(err error) *model.CoreError {
	step := "unknown"
	var sn stepNamer
	if errors.As(err, &sn) {
		step = sn.StepName()
	}

	code := model.ErrCodeInternal
	switch step {
	case "fetch", "apply":
		code = model.ErrCodeAdapter
	case "rich_content", "name":
		code = model.ErrCodeGeneration
	}

	coreErr := model.NewCoreError(code, err)
	coreErr.Details = map[string]any{"step": step}
	return coreErr
}
