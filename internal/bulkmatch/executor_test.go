package bulkmatch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/penlane/greenroom/internal/provider"
)

type fakeCatalog struct {
	search func(query string) ([]provider.Track, error)
}

func (f *fakeCatalog) Search(ctx context.Context, query string) ([]provider.Track, error) {
	return f.search(query)
}

type blockingCatalog struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingCatalog) Search(ctx context.Context, query string) ([]provider.Track, error) {
	b.started <- struct{}{}
	<-b.release
	return []provider.Track{{Title: "Everlong", Artist: "Foo Fighters", DurationSeconds: 250}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitForStatus(t *testing.T, svc *Service, jobID, want string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %q", jobID, want)
	return nil
}

func TestRunClassifiesEachItemIndependently(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	catalog := &fakeCatalog{search: func(query string) ([]provider.Track, error) {
		switch {
		case strings.Contains(query, "Everlong"):
			return []provider.Track{{Title: "Everlong", Artist: "Foo Fighters", DurationSeconds: 250}}, nil
		case strings.Contains(query, "Bohemian"):
			return nil, &provider.ErrUpstreamUnavailable{Provider: "catalog"}
		default:
			return nil, nil
		}
	}}

	job, err := svc.CreateJob(ctx, []Pair{
		{Artist: "Foo Fighters", Title: "Everlong"},
		{Artist: "Queen", Title: "Bohemian Rhapsody"},
		{Artist: "Nobody", Title: "Unknown Song"},
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	exec := NewExecutor(svc, catalog, testLogger(), 25)
	if err := exec.Start(ctx, job); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := waitForStatus(t, svc, job.ID, JobStatusCompleted)
	if done.ProcessedItems != 3 || done.FoundItems != 1 || done.FailedItems != 1 || done.MissedItems != 1 {
		t.Errorf("unexpected counters: %+v", done)
	}

	items, err := svc.ListItems(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if items[0].Status != ItemFound {
		t.Errorf("item 0: expected found, got %q", items[0].Status)
	}
	if items[0].DurationSeconds == nil || *items[0].DurationSeconds != 250 {
		t.Errorf("item 0: expected duration 250, got %v", items[0].DurationSeconds)
	}
	if items[1].Status != ItemError || items[1].Message == "" {
		t.Errorf("item 1: expected error with message, got %q (%q)", items[1].Status, items[1].Message)
	}
	if items[2].Status != ItemNotFound {
		t.Errorf("item 2: expected not_found, got %q", items[2].Status)
	}
}

func TestRunSkipsCandidatesByOtherArtists(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	// Only tribute acts come back; none match the requested artist.
	catalog := &fakeCatalog{search: func(string) ([]provider.Track, error) {
		return []provider.Track{
			{Title: "Everlong", Artist: "The Grunge Revival Band", DurationSeconds: 244},
		}, nil
	}}

	job, err := svc.CreateJob(ctx, []Pair{{Artist: "Foo Fighters", Title: "Everlong"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	exec := NewExecutor(svc, catalog, testLogger(), 25)
	if err := exec.Start(ctx, job); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, svc, job.ID, JobStatusCompleted)

	item, err := svc.GetItem(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Status != ItemNotFound {
		t.Errorf("expected not_found for artist mismatch, got %q", item.Status)
	}
}

func TestRunClassifiesAmbiguousItemAsMultiple(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	// Two recordings by the same act, close enough in score to be ambiguous.
	catalog := &fakeCatalog{search: func(string) ([]provider.Track, error) {
		return []provider.Track{
			{ExternalID: "a1", Title: "Everlong", Artist: "Foo Fighters", DurationSeconds: 250},
			{ExternalID: "a2", Title: "Everlong", Artist: "Foo Fighters", DurationSeconds: 170, DiscoveryIndex: 1},
		}, nil
	}}

	job, err := svc.CreateJob(ctx, []Pair{{Artist: "Foo Fighters", Title: "Everlong"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	exec := NewExecutor(svc, catalog, testLogger(), 25)
	if err := exec.Start(ctx, job); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := waitForStatus(t, svc, job.ID, JobStatusCompleted)
	if done.MultipleItems != 1 {
		t.Errorf("expected 1 multiple item, got %+v", done)
	}

	item, err := svc.GetItem(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Status != ItemMultiple {
		t.Fatalf("expected multiple, got %q", item.Status)
	}
	if len(item.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(item.Options))
	}

	// Resolving is terminal and does not re-run the batch.
	resolved, err := exec.ResolveItem(ctx, job.ID, 0, 250)
	if err != nil {
		t.Fatalf("ResolveItem: %v", err)
	}
	if resolved.Status != ItemFound || resolved.DurationSeconds == nil || *resolved.DurationSeconds != 250 {
		t.Errorf("unexpected resolved item: %+v", resolved)
	}
	if len(resolved.Options) != 0 {
		t.Error("resolved item must not keep options")
	}

	after, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if after.MultipleItems != 0 || after.FoundItems != 1 {
		t.Errorf("counters not adjusted: %+v", after)
	}

	// A second resolve hits a found item and is rejected.
	if _, err := exec.ResolveItem(ctx, job.ID, 0, 170); !errors.Is(err, ErrNotMultiple) {
		t.Errorf("expected ErrNotMultiple, got %v", err)
	}
}

func TestCancelBetweenItems(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	catalog := &blockingCatalog{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	job, err := svc.CreateJob(ctx, []Pair{
		{Artist: "Foo Fighters", Title: "Everlong"},
		{Artist: "Queen", Title: "Bohemian Rhapsody"},
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	exec := NewExecutor(svc, catalog, testLogger(), 25)
	if err := exec.Start(ctx, job); err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-catalog.started

	// While item 0 is in flight, a second job must be refused.
	other, err := svc.CreateJob(ctx, []Pair{{Artist: "Eagles", Title: "Hotel California"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := exec.Start(ctx, other); !errors.Is(err, ErrJobRunning) {
		t.Errorf("expected ErrJobRunning, got %v", err)
	}

	if err := exec.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(catalog.release)

	done := waitForStatus(t, svc, job.ID, JobStatusCanceled)
	if done.ProcessedItems != 1 {
		t.Errorf("the in-flight item finishes before cancellation lands, got %d processed", done.ProcessedItems)
	}

	items, err := svc.ListItems(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if items[0].Status != ItemFound {
		t.Errorf("item 0: expected found, got %q", items[0].Status)
	}
	if items[1].Status != ItemPending {
		t.Errorf("item 1: expected pending after cancel, got %q", items[1].Status)
	}
}

func TestCancelWithoutJob(t *testing.T) {
	exec := NewExecutor(NewService(newTestDB(t)), &fakeCatalog{}, testLogger(), 25)
	if err := exec.Cancel(); !errors.Is(err, ErrNoJobRunning) {
		t.Errorf("expected ErrNoJobRunning, got %v", err)
	}
}
