// Package bulkmatch resolves batches of (artist, title) pairs against the
// catalog, classifying each item and reporting progress as it goes.
package bulkmatch

import "time"

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusCanceled  = "canceled"
	JobStatusFailed    = "failed"
)

// Item statuses.
const (
	ItemPending  = "pending"
	ItemLoading  = "loading"
	ItemFound    = "found"
	ItemMultiple = "multiple"
	ItemNotFound = "not_found"
	ItemError    = "error"
)

// Pair is one (artist, title) input to a match job.
type Pair struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// Job represents a batch match run.
type Job struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	TotalItems     int        `json:"total_items"`
	ProcessedItems int        `json:"processed_items"`
	FoundItems     int        `json:"found_items"`
	MultipleItems  int        `json:"multiple_items"`
	MissedItems    int        `json:"missed_items"`
	FailedItems    int        `json:"failed_items"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Item is the classified result for one pair within a job. Items keep their
// input order via Index so callers get a parallel, same-order result list.
type Item struct {
	ID              string    `json:"id"`
	JobID           string    `json:"job_id"`
	Index           int       `json:"index"`
	Artist          string    `json:"artist"`
	Title           string    `json:"title"`
	Status          string    `json:"status"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	Message         string    `json:"message,omitempty"`
	Options         []Option  `json:"options,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Option is one disambiguation choice on a multiple-status item.
type Option struct {
	ID              string `json:"id"`
	Artist          string `json:"artist"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
	ArtworkURL      string `json:"artwork_url,omitempty"`
}
