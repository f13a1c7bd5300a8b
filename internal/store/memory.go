package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sellerkit/improver/internal/model"
)

// Verify at compile time that Memory implements the store interfaces.
var _ JobStore = (*Memory)(nil)

// Memory is an in-memory JobStore. Each instance owns its own state, so
// independent stores (one per test, one per process) never interfere.
// All snapshots are deep-copied on the way in and out; callers can
// never mutate stored state through a returned value.
type Memory struct {
	mu       sync.Mutex
	jobs     map[string]*model.Job
	jobOrder []string
	items    map[string]*model.Item
	// itemOrder preserves enqueue order; the pending queue is stable.
	itemOrder []string
	closed    bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:  make(map[string]*model.Job),
		items: make(map[string]*model.Item),
	}
}

// Close releases the store. Further calls return an error.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs, m.items = nil, nil
	m.jobOrder, m.itemOrder = nil, nil
	m.closed = true
	return nil
}

func (m *Memory) checkOpen() error {
	if m.closed {
		return fmt.Errorf("memory store is closed")
	}
	return nil
}

// CreateJob inserts a new job.
func (m *Memory) CreateJob(_ context.Context, job model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	stored := cloneJob(job)
	m.jobs[job.ID] = &stored
	m.jobOrder = append(m.jobOrder, job.ID)
	return nil
}

// GetJob returns a copy of the job, or ErrNotFound.
func (m *Memory) GetJob(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	out := cloneJob(*job)
	return &out, nil
}

// ListJobs returns copies of all jobs in creation order.
func (m *Memory) ListJobs(_ context.Context) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]model.Job, 0, len(m.jobOrder))
	for _, id := range m.jobOrder {
		out = append(out, cloneJob(*m.jobs[id]))
	}
	return out, nil
}

// UpdateJobStatus changes a job's status.
func (m *Memory) UpdateJobStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if !model.ValidJobStatus(status) {
		return fmt.Errorf("invalid job status %q", status)
	}
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// CreateItem inserts a pending item. The owning job must already exist.
func (m *Memory) CreateItem(_ context.Context, item model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.jobs[item.JobID]; !ok {
		return fmt.Errorf("item %s: %w", item.ID, ErrUnknownJob)
	}
	if _, ok := m.items[item.ID]; ok {
		return fmt.Errorf("item %s already exists", item.ID)
	}
	stored := cloneItem(item)
	m.items[item.ID] = &stored
	m.itemOrder = append(m.itemOrder, item.ID)
	return nil
}

// GetItem returns a copy of the item, or ErrNotFound.
func (m *Memory) GetItem(_ context.Context, id string) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	out := cloneItem(*item)
	return &out, nil
}

// ListItemsByJob returns copies of a job's items in enqueue order.
func (m *Memory) ListItemsByJob(_ context.Context, jobID string) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	var out []model.Item
	for _, id := range m.itemOrder {
		if it := m.items[id]; it.JobID == jobID {
			out = append(out, cloneItem(*it))
		}
	}
	return out, nil
}

// ListPendingItems returns copies of all pending items in enqueue order.
func (m *Memory) ListPendingItems(_ context.Context) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	var out []model.Item
	for _, id := range m.itemOrder {
		if it := m.items[id]; it.Status == model.ItemPending {
			out = append(out, cloneItem(*it))
		}
	}
	return out, nil
}

// FinishItem moves a pending item to a terminal status and writes its
// result snapshot exactly once.
func (m *Memory) FinishItem(_ context.Context, id, status string, result *model.ItemResultSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if !terminalItemStatus(status) {
		return fmt.Errorf("invalid terminal item status %q", status)
	}
	item, ok := m.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if item.Status != model.ItemPending || item.ResultSnapshot != nil {
		return fmt.Errorf("item %s: %w", id, ErrItemTerminal)
	}
	item.Status = status
	item.ResultSnapshot = result.Clone()
	item.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return nil
}

func cloneJob(j model.Job) model.Job {
	if j.Payload != nil {
		p := *j.Payload
		p.Target = cloneMap(j.Payload.Target)
		p.Plan = cloneMap(j.Payload.Plan)
		p.Metadata = cloneMap(j.Payload.Metadata)
		j.Payload = &p
	}
	return j
}

func cloneItem(it model.Item) model.Item {
	it.InputSnapshot = it.InputSnapshot.Clone()
	it.ResultSnapshot = it.ResultSnapshot.Clone()
	return it
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
