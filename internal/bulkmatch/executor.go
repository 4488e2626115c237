package bulkmatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/penlane/greenroom/internal/event"
	"github.com/penlane/greenroom/internal/provider"
	"github.com/penlane/greenroom/internal/rank"
)

// maxOptions caps how many disambiguation choices a multiple item exposes.
const maxOptions = 5

// Executor state errors.
var (
	ErrJobRunning   = errors.New("a match job is already running")
	ErrNoJobRunning = errors.New("no match job is running")
	ErrNotMultiple  = errors.New("item is not awaiting disambiguation")
)

// Searcher queries the external song catalog.
type Searcher interface {
	Search(ctx context.Context, query string) ([]provider.Track, error)
}

// Executor runs match jobs asynchronously. Only one job runs at a time;
// cancellation takes effect between items.
type Executor struct {
	service         *Service
	catalog         Searcher
	logger          *slog.Logger
	eventBus        *event.Bus
	ambiguityWindow int

	mu        sync.Mutex
	cancelFn  context.CancelFunc
	currentID string
}

// NewExecutor creates an Executor. ambiguityWindow is the score distance
// below the best candidate within which a runner-up still counts as a
// plausible alternative.
func NewExecutor(service *Service, catalog Searcher, logger *slog.Logger, ambiguityWindow int) *Executor {
	if ambiguityWindow < 0 {
		ambiguityWindow = 0
	}
	return &Executor{
		service:         service,
		catalog:         catalog,
		logger:          logger.With(slog.String("component", "match-executor")),
		ambiguityWindow: ambiguityWindow,
	}
}

// SetEventBus sets the bus for progress and completion events.
func (e *Executor) SetEventBus(bus *event.Bus) {
	e.eventBus = bus
}

// Start begins executing a match job in a background goroutine.
func (e *Executor) Start(ctx context.Context, job *Job) error {
	e.mu.Lock()
	if e.currentID != "" {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobRunning, e.currentID)
	}
	// The job outlives the request that started it; only Cancel stops it.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancelFn = cancel
	e.currentID = job.ID
	e.mu.Unlock()

	go e.run(jobCtx, job)
	return nil
}

// Cancel stops the currently running match job. The in-flight item finishes;
// remaining items stay pending.
func (e *Executor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancelFn == nil {
		return ErrNoJobRunning
	}
	e.cancelFn()
	return nil
}

// Running returns the ID of the job currently executing, if any.
func (e *Executor) Running() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentID, e.currentID != ""
}

// ResolveItem records the caller's disambiguation choice on a multiple item,
// setting it to found with the chosen duration. The batch is not re-run.
func (e *Executor) ResolveItem(ctx context.Context, jobID string, index, durationSeconds int) (*Item, error) {
	item, err := e.service.GetItem(ctx, jobID, index)
	if err != nil {
		return nil, err
	}
	if item.Status != ItemMultiple {
		return nil, ErrNotMultiple
	}

	item.Status = ItemFound
	item.DurationSeconds = &durationSeconds
	item.Options = nil
	item.Message = ""
	if err := e.service.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	job, err := e.service.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job.MultipleItems--
	job.FoundItems++
	if err := e.service.UpdateJob(ctx, job); err != nil {
		return nil, err
	}

	return item, nil
}

func (e *Executor) run(ctx context.Context, job *Job) {
	defer func() {
		e.mu.Lock()
		e.cancelFn = nil
		e.currentID = ""
		e.mu.Unlock()
	}()

	now := time.Now().UTC()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	if err := e.service.UpdateJob(ctx, job); err != nil {
		e.logger.Error("updating job start", "job_id", job.ID, "error", err)
		return
	}

	items, err := e.service.ListItems(ctx, job.ID)
	if err != nil {
		e.finishJob(job, JobStatusFailed, fmt.Sprintf("listing items: %v", err))
		return
	}

	// Result writes use an uncancelable context so an in-flight item still
	// gets its classification recorded after Cancel.
	persistCtx := context.WithoutCancel(ctx)

	for i := range items {
		if ctx.Err() != nil {
			e.finishJob(job, JobStatusCanceled, "")
			return
		}

		item := &items[i]
		item.Status = ItemLoading
		_ = e.service.UpdateItem(persistCtx, item)

		e.classify(ctx, item)

		if err := e.service.UpdateItem(persistCtx, item); err != nil {
			e.logger.Warn("recording item result", "job_id", job.ID, "index", item.Index, "error", err)
		}

		job.ProcessedItems++
		switch item.Status {
		case ItemFound:
			job.FoundItems++
		case ItemMultiple:
			job.MultipleItems++
		case ItemNotFound:
			job.MissedItems++
		case ItemError:
			job.FailedItems++
		}
		_ = e.service.UpdateJob(persistCtx, job)

		e.publish(event.MatchProgress, map[string]any{
			"job_id":          job.ID,
			"processed_items": job.ProcessedItems,
			"total_items":     job.TotalItems,
			"item_index":      item.Index,
			"item_status":     item.Status,
		})
	}

	e.finishJob(job, JobStatusCompleted, "")
}

// classify runs one pair through catalog search and ranking, constrained to
// candidates whose artist matches the requested one. One item's failure
// never touches its siblings.
func (e *Executor) classify(ctx context.Context, item *Item) {
	tracks, err := e.catalog.Search(ctx, item.Artist+" "+item.Title)
	if err != nil {
		item.Status = ItemError
		item.Message = err.Error()
		return
	}

	var matches []rank.Scored
	for _, sc := range rank.Rank(item.Title, tracks) {
		if rank.ArtistsMatch(item.Artist, sc.Artist) {
			matches = append(matches, sc)
		}
	}

	if len(matches) == 0 {
		item.Status = ItemNotFound
		return
	}

	best := matches[0]
	var plausible []rank.Scored
	for _, sc := range matches {
		if best.Score-sc.Score <= e.ambiguityWindow {
			plausible = append(plausible, sc)
		}
	}

	if len(plausible) >= 2 {
		if len(plausible) > maxOptions {
			plausible = plausible[:maxOptions]
		}
		item.Status = ItemMultiple
		for _, sc := range plausible {
			item.Options = append(item.Options, Option{
				ID:              sc.ExternalID,
				Artist:          sc.Artist,
				Title:           sc.Title,
				DurationSeconds: sc.DurationSeconds,
				ArtworkURL:      sc.ArtworkURL,
			})
		}
		return
	}

	item.Status = ItemFound
	duration := best.DurationSeconds
	item.DurationSeconds = &duration
}

// finishJob records the terminal status. The executor slot is released first
// so the job is never observable as both finished and running. It uses a
// fresh context so a canceled job still gets its final state written.
func (e *Executor) finishJob(job *Job, status, errMsg string) {
	e.mu.Lock()
	e.cancelFn = nil
	e.currentID = ""
	e.mu.Unlock()

	now := time.Now().UTC()
	job.Status = status
	job.CompletedAt = &now
	job.Error = errMsg

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.service.UpdateJob(ctx, job); err != nil {
		e.logger.Error("finishing match job", "job_id", job.ID, "error", err)
	}

	e.publish(event.MatchCompleted, map[string]any{
		"job_id":          job.ID,
		"status":          status,
		"total_items":     job.TotalItems,
		"processed_items": job.ProcessedItems,
		"found_items":     job.FoundItems,
		"multiple_items":  job.MultipleItems,
		"missed_items":    job.MissedItems,
		"failed_items":    job.FailedItems,
	})
}

func (e *Executor) publish(t event.Type, data map[string]any) {
	if e.eventBus != nil {
		e.eventBus.Publish(event.Event{Type: t, Data: data})
	}
}
