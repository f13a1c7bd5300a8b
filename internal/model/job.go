package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job kind constants. Kind discriminates how the payload was built;
// unknown kinds are allowed and treated as plan-less by the run gate.
const (
	JobKindRatingImprove = "rating-improve"
	JobKindAIGenerate    = "ai-generate"
	JobKindDataRefresh   = "data-refresh"
)

// Job status constants
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
	JobPaused    = "paused"
)

// Item status constants. Skipped, done and failed are terminal; a
// terminal item is never re-processed, re-enqueue means a new item.
const (
	ItemPending = "pending"
	ItemSkipped = "skipped"
	ItemDone    = "done"
	ItemFailed  = "failed"
)

// JobStatuses lists every valid job status.
var JobStatuses = []string{JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled, JobPaused}

// ValidJobStatus reports whether s is one of the known job statuses.
func ValidJobStatus(s string) bool {
	for _, v := range JobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// JobPayload describes how a job's items should be processed.
// Kind selects the planning scheme; Target, Plan and Metadata are
// opaque extension bags for project-specific data.
type JobPayload struct {
	Version  int            `json:"version"`
	Kind     string         `json:"kind"`
	Target   map[string]any `json:"target,omitempty"`
	Plan     map[string]any `json:"plan,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Job is a batch of per-product work items. Items reference their job by
// id rather than being embedded, so they can be queried and updated
// independently.
type Job struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Status    string      `json:"status"`
	Payload   *JobPayload `json:"payload,omitempty"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
}

// NewJob creates a pending Job.
func NewJob(id, kind string, payload *JobPayload) Job {
	now := time.Now().UTC().Format(time.RFC3339)
	return Job{
		ID:        id,
		Kind:      kind,
		Status:    JobPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ItemInputSnapshot is everything known about a product at enqueue time.
// It is captured once and never mutated afterwards, even if the live
// product or rating changes later.
type ItemInputSnapshot struct {
	Product             *ProductSnapshot     `json:"product,omitempty"`
	RatingAtEnqueue     *float64             `json:"rating_at_enqueue,omitempty"`
	RatingEntry         json.RawMessage      `json:"rating_entry,omitempty"`
	PlannedImprovements *PlannedImprovements `json:"planned_improvements,omitempty"`
	Debug               map[string]any       `json:"debug,omitempty"`
}

// Clone returns a deep copy with no shared structure.
func (s *ItemInputSnapshot) Clone() *ItemInputSnapshot {
	if s == nil {
		return nil
	}
	var out ItemInputSnapshot
	cloneJSON(s, &out)
	return &out
}

// ResultMetrics carries per-item processing measurements.
type ResultMetrics struct {
	LatencyMs int64 `json:"latency_ms,omitempty"`
	TokensIn  int   `json:"tokens_in,omitempty"`
	TokensOut int   `json:"tokens_out,omitempty"`
}

// ItemResultSnapshot is the outcome of processing one item. It is
// written exactly once, when the item reaches a terminal state.
type ItemResultSnapshot struct {
	Success             bool           `json:"success"`
	Error               *CoreError     `json:"error,omitempty"`
	AIOutputs           map[string]any `json:"ai_outputs,omitempty"`
	MarketplaceResponse map[string]any `json:"marketplace_response,omitempty"`
	Metrics             *ResultMetrics `json:"metrics,omitempty"`
	Extra               map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep copy with no shared structure.
func (s *ItemResultSnapshot) Clone() *ItemResultSnapshot {
	if s == nil {
		return nil
	}
	var out ItemResultSnapshot
	cloneJSON(s, &out)
	return &out
}

// SkippedByPlan reports whether the result marks a plan-based skip
// rather than real work.
func (s *ItemResultSnapshot) SkippedByPlan() bool {
	if s == nil || s.Extra == nil {
		return false
	}
	v, _ := s.Extra["skipped_by_plan"].(bool)
	return v
}

// Item is the unit of work within a Job: one product reference, a frozen
// input snapshot and a write-once result snapshot.
type Item struct {
	ID             string              `json:"id"`
	JobID          string              `json:"job_id"`
	OfferID        string              `json:"offer_id,omitempty"`
	Status         string              `json:"status"`
	InputSnapshot  *ItemInputSnapshot  `json:"input_snapshot,omitempty"`
	ResultSnapshot *ItemResultSnapshot `json:"result_snapshot,omitempty"`
	CreatedAt      string              `json:"created_at"`
	UpdatedAt      string              `json:"updated_at"`
}

// NewItem creates a pending Item owned by the given job. The input
// snapshot is deep-copied so later mutation of the caller's value cannot
// leak into the frozen snapshot.
func NewItem(id, jobID, offerID string, input *ItemInputSnapshot) Item {
	now := time.Now().UTC().Format(time.RFC3339)
	return Item{
		ID:            id,
		JobID:         jobID,
		OfferID:       offerID,
		Status:        ItemPending,
		InputSnapshot: input.Clone(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// cloneJSON deep-copies src into dst via a JSON round-trip. All snapshot
// types are JSON-serializable by construction, so a marshal failure here
// is a programming error.
func cloneJSON(src, dst any) {
	b, err := json.Marshal(src)
	if err != nil {
		panic(fmt.Sprintf("model: clone marshal: %v", err))
	}
	if err := json.Unmarshal(b, dst); err != nil {
		panic(fmt.Sprintf("model: clone unmarshal: %v", err))
	}
}
