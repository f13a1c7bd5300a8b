package store

import (
	"context"
	"errors"

	"github.com/sellerkit/improver/internal/model"
)

// Store-level sentinel errors.
var (
	// ErrNotFound is returned when a job or item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownJob is returned when an item references a job that
	// does not exist.
	ErrUnknownJob = errors.New("item references unknown job")
	// ErrItemTerminal is returned when finishing an item that already
	// reached a terminal state. Result snapshots are write-once.
	ErrItemTerminal = errors.New("item already terminal")
)

// JobReader provides read access to jobs.
type JobReader interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	// ListJobs returns a snapshot copy of all jobs in creation order.
	// Mutating the returned slice must not affect stored state.
	ListJobs(ctx context.Context) ([]model.Job, error)
}

// JobWriter provides write access to jobs.
type JobWriter interface {
	CreateJob(ctx context.Context, job model.Job) error
	UpdateJobStatus(ctx context.Context, id, status string) error
}

// ItemReader provides read access to items.
type ItemReader interface {
	GetItem(ctx context.Context, id string) (*model.Item, error)
	ListItemsByJob(ctx context.Context, jobID string) ([]model.Item, error)
	// ListPendingItems returns all pending items in enqueue order. The
	// result is a point-in-time snapshot of the queue.
	ListPendingItems(ctx context.Context) ([]model.Item, error)
}

// ItemWriter provides write access to items.
type ItemWriter interface {
	// CreateItem inserts a pending item. The item's job must exist.
	CreateItem(ctx context.Context, item model.Item) error
	// FinishItem moves a pending item to the given terminal status and
	// writes its result snapshot. Returns ErrItemTerminal if the item
	// already has a result.
	FinishItem(ctx context.Context, id, status string, result *model.ItemResultSnapshot) error
}

// JobStore combines all job and item operations.
type JobStore interface {
	JobReader
	JobWriter
	ItemReader
	ItemWriter
}

// terminalItemStatus reports whether s is a valid terminal item status.
func terminalItemStatus(s string) bool {
	return s == model.ItemSkipped || s == model.ItemDone || s == model.ItemFailed
}
