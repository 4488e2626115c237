package search

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/penlane/greenroom/internal/database"
	"github.com/penlane/greenroom/internal/enrich"
	"github.com/penlane/greenroom/internal/provider"
	"github.com/penlane/greenroom/internal/song"
)

type fakeCatalog struct {
	tracks []provider.Track
	err    error
	calls  int
}

func (f *fakeCatalog) Search(ctx context.Context, query string) ([]provider.Track, error) {
	f.calls++
	return f.tracks, f.err
}

// countingStore wraps the real store so tests can assert on write volume.
type countingStore struct {
	*song.Service
	updates int
	upserts int
}

func (c *countingStore) Update(ctx context.Context, sg *song.Song) error {
	c.updates++
	return c.Service.Update(ctx, sg)
}

func (c *countingStore) Upsert(ctx context.Context, sg *song.Song) error {
	c.upserts++
	return c.Service.Upsert(ctx, sg)
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

func newService(t *testing.T, catalog Catalog, maxResults int) (*Service, *countingStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store := &countingStore{Service: song.NewService(newTestDB(t))}
	enricher := enrich.New(nil, nil, logger)
	return NewService(store, catalog, enricher, nil, logger, maxResults), store
}

func TestSearchDiscoversAndPersists(t *testing.T) {
	catalog := &fakeCatalog{tracks: []provider.Track{
		{Title: "Everlong", Artist: "Foo Fighters", DurationSeconds: 250, ArtworkURL: "https://img/everlong.jpg"},
	}}
	svc, store := newService(t, catalog, 10)

	results, err := svc.Search(context.Background(), "everlong")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	got := results[0]
	if got.BPM == nil || *got.BPM != 158 {
		t.Errorf("expected table BPM 158, got %v", got.BPM)
	}
	if got.Tuning != "drop_d" {
		t.Errorf("expected table tuning drop_d, got %q", got.Tuning)
	}
	if got.ArtworkURL != "https://img/everlong.jpg" {
		t.Errorf("artwork must survive the upsert: %q", got.ArtworkURL)
	}

	stored, err := store.GetByKey(context.Background(), "Everlong", "Foo Fighters")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if stored == nil {
		t.Fatal("discovery must be persisted")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	svc, _ := newService(t, &fakeCatalog{}, 10)
	if _, err := svc.Search(context.Background(), "  "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearchEmptyCatalogIsNotAnError(t *testing.T) {
	svc, _ := newService(t, &fakeCatalog{}, 10)
	results, err := svc.Search(context.Background(), "unknown song nobody wrote")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchCatalogFailureDegradesToStored(t *testing.T) {
	catalog := &fakeCatalog{err: &provider.ErrUpstreamUnavailable{Provider: "catalog"}}
	svc, store := newService(t, catalog, 10)

	if err := store.Service.Upsert(context.Background(), &song.Song{Title: "Everlong", Artist: "Foo Fighters"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := svc.Search(context.Background(), "everlong")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected the stored row despite catalog failure, got %d results", len(results))
	}
}

func TestSearchExistingFirstAndDeduplicated(t *testing.T) {
	catalog := &fakeCatalog{tracks: []provider.Track{
		{Title: "Everlong", Artist: "Foo Fighters", DurationSeconds: 250},
		{Title: "Monkey Wrench", Artist: "Foo Fighters", DurationSeconds: 231, DiscoveryIndex: 1},
	}}
	svc, store := newService(t, catalog, 10)

	if err := store.Service.Upsert(context.Background(), &song.Song{Title: "Everlong", Artist: "Foo Fighters"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	store.upserts = 0

	results, err := svc.Search(context.Background(), "everlong")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Everlong" {
		t.Errorf("stored rows must come first, got %q", results[0].Title)
	}
	if results[1].Title != "Monkey Wrench" {
		t.Errorf("expected the new discovery second, got %q", results[1].Title)
	}
	if store.upserts != 1 {
		t.Errorf("only the new candidate may be upserted, got %d writes", store.upserts)
	}
}

func TestBackfillIsIdempotent(t *testing.T) {
	svc, store := newService(t, &fakeCatalog{}, 10)
	ctx := context.Background()

	if err := store.Service.Upsert(ctx, &song.Song{Title: "Everlong", Artist: "Foo Fighters"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := svc.Search(ctx, "everlong")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Tuning != "drop_d" || results[0].BPM == nil || *results[0].BPM != 158 {
		t.Fatalf("backfill did not run: %+v", results[0])
	}
	if store.updates != 1 {
		t.Fatalf("expected exactly one backfill write, got %d", store.updates)
	}

	if _, err := svc.Search(ctx, "everlong"); err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if store.updates != 1 {
		t.Errorf("second pass must not write, got %d total updates", store.updates)
	}
}

func TestBackfillKeepsUserTuning(t *testing.T) {
	svc, store := newService(t, &fakeCatalog{}, 10)
	ctx := context.Background()

	sg := &song.Song{Title: "Everlong", Artist: "Foo Fighters", Tuning: "open_g", TuningSource: song.SourceUser}
	if err := store.Service.Upsert(ctx, sg); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := svc.Search(ctx, "everlong")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Tuning != "open_g" {
		t.Errorf("user-confirmed tuning must not be corrected, got %q", results[0].Tuning)
	}
}

func TestSearchCapsResults(t *testing.T) {
	catalog := &fakeCatalog{tracks: []provider.Track{
		{Title: "Everlong", Artist: "Foo Fighters"},
		{Title: "Everlong", Artist: "The Everlong Band", DiscoveryIndex: 1},
		{Title: "Everlong", Artist: "Covers Inc", DiscoveryIndex: 2},
	}}
	svc, _ := newService(t, catalog, 2)

	results, err := svc.Search(context.Background(), "everlong")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected cap of 2, got %d", len(results))
	}
}

func TestCreateSong(t *testing.T) {
	svc, store := newService(t, &fakeCatalog{}, 10)
	ctx := context.Background()

	if err := svc.CreateSong(ctx, &song.Song{Title: "Everlong"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	sg := &song.Song{Title: "Everlong", Artist: "Foo Fighters", ArtworkURL: "https://img/x.jpg"}
	if err := svc.CreateSong(ctx, sg); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}
	if sg.BPM == nil || *sg.BPM != 158 || sg.Tuning != "drop_d" {
		t.Errorf("expected enrichment on create: %+v", sg)
	}
	if sg.ArtworkURL != "https://img/x.jpg" {
		t.Errorf("request artwork must be echoed, got %q", sg.ArtworkURL)
	}

	stored, err := store.GetByKey(ctx, "Everlong", "Foo Fighters")
	if err != nil || stored == nil {
		t.Fatalf("expected persisted row, got %v (%v)", stored, err)
	}
}

func TestCreateSongKeepsCallerTuning(t *testing.T) {
	svc, _ := newService(t, &fakeCatalog{}, 10)

	sg := &song.Song{Title: "Everlong", Artist: "Foo Fighters", Tuning: "open_g"}
	if err := svc.CreateSong(context.Background(), sg); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}
	if sg.Tuning != "open_g" || sg.TuningSource != song.SourceUser {
		t.Errorf("caller tuning must win: %q (%q)", sg.Tuning, sg.TuningSource)
	}
}
