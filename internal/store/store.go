package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sellerkit/improver/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var _ JobStore = (*Store)(nil)

// Store provides durable job/item access backed by SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 2

func (s *Store) migrate() error {
	// Ensure the schema_version table exists.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh database: initialize to version 0.
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// migrations is an ordered list of migration functions.
	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: initial schema
		s.migrateV2, // v1 → v2: index for per-job item listings
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1). Snapshots are stored
// as JSON text; their field semantics live in the model package.
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		status     TEXT NOT NULL,
		payload    TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at);

	CREATE TABLE IF NOT EXISTS items (
		id              TEXT PRIMARY KEY,
		job_id          TEXT NOT NULL REFERENCES jobs(id),
		offer_id        TEXT,
		status          TEXT NOT NULL,
		input_snapshot  TEXT NOT NULL,
		result_snapshot TEXT,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds the per-job item listing index (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_items_job ON items(job_id, created_at ASC)`)
	return err
}

// ---------------------------------------------------------------------------
// Jobs
// ---------------------------------------------------------------------------

// CreateJob inserts a new job.
func (s *Store) CreateJob(ctx context.Context, job model.Job) error {
	payload, err := marshalNullable(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Kind, job.Status, payload, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

// GetJob returns a job by id, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, status, payload, created_at, updated_at FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return job, err
}

// ListJobs returns all jobs in creation order. The rows are fresh
// copies; callers own the returned slice.
func (s *Store) ListJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, status, payload, created_at, updated_at FROM jobs ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// UpdateJobStatus changes the status of a job.
func (s *Store) UpdateJobStatus(ctx context.Context, id, status string) error {
	if !model.ValidJobStatus(status) {
		return fmt.Errorf("invalid job status %q", status)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

// CreateItem inserts a pending item after verifying its job exists.
func (s *Store) CreateItem(ctx context.Context, item model.Item) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = ?`, item.JobID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %s: %w", item.ID, ErrUnknownJob)
	}
	if err != nil {
		return err
	}

	input, err := json.Marshal(item.InputSnapshot)
	if err != nil {
		return fmt.Errorf("marshal input snapshot: %w", err)
	}
	result, err := marshalNullable(item.ResultSnapshot)
	if err != nil {
		return fmt.Errorf("marshal result snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, job_id, offer_id, status, input_snapshot, result_snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.JobID, item.OfferID, item.Status, string(input), result,
		item.CreatedAt, item.UpdatedAt,
	)
	return err
}

// GetItem returns an item by id, or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, offer_id, status, input_snapshot, result_snapshot, created_at, updated_at
		 FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return item, err
}

// ListItemsByJob returns a job's items in enqueue order.
func (s *Store) ListItemsByJob(ctx context.Context, jobID string) ([]model.Item, error) {
	return s.listItems(ctx,
		`SELECT id, job_id, offer_id, status, input_snapshot, result_snapshot, created_at, updated_at
		 FROM items WHERE job_id = ? ORDER BY created_at ASC, rowid ASC`, jobID)
}

// ListPendingItems returns all pending items in enqueue order.
func (s *Store) ListPendingItems(ctx context.Context) ([]model.Item, error) {
	return s.listItems(ctx,
		`SELECT id, job_id, offer_id, status, input_snapshot, result_snapshot, created_at, updated_at
		 FROM items WHERE status = ? ORDER BY created_at ASC, rowid ASC`, model.ItemPending)
}

func (s *Store) listItems(ctx context.Context, query string, args ...any) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// FinishItem atomically moves a pending item to a terminal status and
// writes its result snapshot. The guarded UPDATE makes the result
// write-once: a second finish matches no row.
func (s *Store) FinishItem(ctx context.Context, id, status string, result *model.ItemResultSnapshot) error {
	if !terminalItemStatus(status) {
		return fmt.Errorf("invalid terminal item status %q", status)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result snapshot: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = ?, result_snapshot = ?, updated_at = ?
		WHERE id = ? AND status = ? AND result_snapshot IS NULL`,
		status, string(payload), now, id, model.ItemPending,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a missing item from a double finish.
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("item %s: %w", id, ErrItemTerminal)
	}
	return nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.Job, error) {
	var job model.Job
	var payload sql.NullString
	if err := row.Scan(&job.ID, &job.Kind, &job.Status, &payload, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	if payload.Valid {
		job.Payload = &model.JobPayload{}
		if err := json.Unmarshal([]byte(payload.String), job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &job, nil
}

func scanItem(row scanner) (*model.Item, error) {
	var item model.Item
	var input string
	var result sql.NullString
	if err := row.Scan(&item.ID, &item.JobID, &item.OfferID, &item.Status, &input, &result, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.InputSnapshot = &model.ItemInputSnapshot{}
	if err := json.Unmarshal([]byte(input), item.InputSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal input snapshot: %w", err)
	}
	if result.Valid {
		item.ResultSnapshot = &model.ItemResultSnapshot{}
		if err := json.Unmarshal([]byte(result.String), item.ResultSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal result snapshot: %w", err)
		}
	}
	return &item, nil
}

// marshalNullable serializes v to JSON, mapping nil to SQL NULL.
func marshalNullable(v any) (any, error) {
	switch x := v.(type) {
	case *model.JobPayload:
		if x == nil {
			return nil, nil
		}
	case *model.ItemResultSnapshot:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
