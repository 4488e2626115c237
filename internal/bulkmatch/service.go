package bulkmatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lookup and validation errors.
var (
	ErrJobNotFound  = errors.New("match job not found")
	ErrItemNotFound = errors.New("match job item not found")
	ErrEmptyBatch   = errors.New("batch must contain at least one pair")
	ErrInvalidPair  = errors.New("every pair needs an artist and a title")
)

// Service provides persistence for match jobs and their items.
type Service struct {
	db *sql.DB
}

// NewService creates a bulk match service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateJob inserts a pending job plus one pending item per pair, preserving
// input order.
func (s *Service) CreateJob(ctx context.Context, pairs []Pair) (*Job, error) {
	if len(pairs) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, p := range pairs {
		if strings.TrimSpace(p.Artist) == "" || strings.TrimSpace(p.Title) == "" {
			return nil, ErrInvalidPair
		}
	}

	job := &Job{
		ID:         uuid.New().String(),
		Status:     JobStatusPending,
		TotalItems: len(pairs),
		CreatedAt:  time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_jobs (id, status, total_items, created_at)
		VALUES (?, ?, ?, ?)
	`, job.ID, job.Status, job.TotalItems, job.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("creating match job: %w", err)
	}

	now := job.CreatedAt.Format(time.RFC3339)
	for i, p := range pairs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_job_items (id, job_id, item_index, artist, title, status, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), job.ID, i, p.Artist, p.Title, ItemPending, now)
		if err != nil {
			return nil, fmt.Errorf("creating match job item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing match job: %w", err)
	}
	return job, nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, total_items, processed_items, found_items,
		       multiple_items, missed_items, failed_items, error,
		       created_at, started_at, completed_at
		FROM match_jobs WHERE id = ?
	`, id)
	return scanJob(row)
}

// UpdateJob rewrites a job's mutable fields.
func (s *Service) UpdateJob(ctx context.Context, job *Job) error {
	var startedAt, completedAt *string
	if job.StartedAt != nil {
		v := job.StartedAt.Format(time.RFC3339)
		startedAt = &v
	}
	if job.CompletedAt != nil {
		v := job.CompletedAt.Format(time.RFC3339)
		completedAt = &v
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE match_jobs
		SET status = ?, processed_items = ?, found_items = ?, multiple_items = ?,
		    missed_items = ?, failed_items = ?, error = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`, job.Status, job.ProcessedItems, job.FoundItems, job.MultipleItems,
		job.MissedItems, job.FailedItems, job.Error, startedAt, completedAt, job.ID)
	if err != nil {
		return fmt.Errorf("updating match job: %w", err)
	}
	return nil
}

// ListItems returns a job's items in input order.
func (s *Service) ListItems(ctx context.Context, jobID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, item_index, artist, title, status,
		       duration_seconds, message, options, updated_at
		FROM match_job_items WHERE job_id = ? ORDER BY item_index
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing match job items: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match job item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetItem retrieves a single item by job and input position.
func (s *Service) GetItem(ctx context.Context, jobID string, index int) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, item_index, artist, title, status,
		       duration_seconds, message, options, updated_at
		FROM match_job_items WHERE job_id = ? AND item_index = ?
	`, jobID, index)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting match job item: %w", err)
	}
	return item, nil
}

// UpdateItem rewrites an item's classification.
func (s *Service) UpdateItem(ctx context.Context, item *Item) error {
	item.UpdatedAt = time.Now().UTC()
	options, err := json.Marshal(item.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}
	if item.Options == nil {
		options = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE match_job_items
		SET status = ?, duration_seconds = ?, message = ?, options = ?, updated_at = ?
		WHERE id = ?
	`, item.Status, item.DurationSeconds, item.Message, string(options),
		item.UpdatedAt.Format(time.RFC3339), item.ID)
	if err != nil {
		return fmt.Errorf("updating match job item: %w", err)
	}
	return nil
}

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	var job Job
	var errStr sql.NullString
	var createdAt string
	var startedAt, completedAt sql.NullString

	err := row.Scan(&job.ID, &job.Status, &job.TotalItems, &job.ProcessedItems,
		&job.FoundItems, &job.MultipleItems, &job.MissedItems, &job.FailedItems,
		&errStr, &createdAt, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	if errStr.Valid {
		job.Error = errStr.String
	}
	job.CreatedAt = parseTime(createdAt)
	if startedAt.Valid {
		t := parseTime(startedAt.String)
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		job.CompletedAt = &t
	}

	return &job, nil
}

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var item Item
	var duration sql.NullInt64
	var options, updatedAt string

	err := row.Scan(&item.ID, &item.JobID, &item.Index, &item.Artist, &item.Title,
		&item.Status, &duration, &item.Message, &options, &updatedAt)
	if err != nil {
		return nil, err
	}

	if duration.Valid {
		v := int(duration.Int64)
		item.DurationSeconds = &v
	}
	if options != "" && options != "[]" {
		if err := json.Unmarshal([]byte(options), &item.Options); err != nil {
			return nil, fmt.Errorf("decoding options: %w", err)
		}
	}
	item.UpdatedAt = parseTime(updatedAt)

	return &item, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
