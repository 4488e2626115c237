// Package search implements the song discovery pipeline: catalog lookup,
// ranking, enrichment and the deduplication gate in front of the stored
// catalog.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/penlane/greenroom/internal/enrich"
	"github.com/penlane/greenroom/internal/event"
	"github.com/penlane/greenroom/internal/normalize"
	"github.com/penlane/greenroom/internal/provider"
	"github.com/penlane/greenroom/internal/rank"
	"github.com/penlane/greenroom/internal/song"
)

// Validation errors surfaced to the HTTP layer.
var (
	ErrEmptyQuery   = errors.New("query must not be empty")
	ErrInvalidInput = errors.New("title and artist are required")
)

// Catalog searches the external song catalog.
type Catalog interface {
	Search(ctx context.Context, query string) ([]provider.Track, error)
}

// SongStore is the persistence surface the pipeline needs.
type SongStore interface {
	SearchByTitle(ctx context.Context, query string, limit int) ([]song.Song, error)
	Upsert(ctx context.Context, sg *song.Song) error
	Update(ctx context.Context, sg *song.Song) error
}

// Service runs the discovery pipeline.
type Service struct {
	store      SongStore
	catalog    Catalog
	enricher   *enrich.Enricher
	bus        *event.Bus
	logger     *slog.Logger
	maxResults int
}

// NewService creates a search service. maxResults caps the combined result
// list; values below 1 fall back to the ranking engine's cap.
func NewService(store SongStore, catalog Catalog, enricher *enrich.Enricher, bus *event.Bus, logger *slog.Logger, maxResults int) *Service {
	if maxResults < 1 {
		maxResults = rank.MaxResults
	}
	return &Service{
		store:      store,
		catalog:    catalog,
		enricher:   enricher,
		bus:        bus,
		logger:     logger.With(slog.String("component", "search")),
		maxResults: maxResults,
	}
}

// Search resolves a free-text query into canonical songs: stored rows first
// (backfilled where enrichment is missing), then newly discovered and
// persisted candidates. An empty upstream result is an empty list, not an
// error.
func (s *Service) Search(ctx context.Context, query string) ([]song.Song, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	existing, err := s.store.SearchByTitle(ctx, query, s.maxResults)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if err := s.backfill(ctx, &existing[i]); err != nil {
			s.logger.Warn("backfill failed", "song", existing[i].Title, "error", err)
		}
	}

	discovered := s.discover(ctx, query, existing)

	results := append(existing, discovered...)
	s.publish(event.SearchCompleted, map[string]any{
		"query":      query,
		"existing":   len(existing),
		"discovered": len(discovered),
	})

	return results, nil
}

// CreateSong validates and upserts a caller-supplied song, resolving BPM and
// tuning for any field the caller left blank. The request's artwork is kept
// on the returned value even though it is never persisted.
func (s *Service) CreateSong(ctx context.Context, sg *song.Song) error {
	if strings.TrimSpace(sg.Title) == "" || strings.TrimSpace(sg.Artist) == "" {
		return ErrInvalidInput
	}

	if sg.BPM == nil {
		sg.BPM, sg.BPMSource = s.enricher.ResolveBPM(ctx, sg.Artist, sg.Title)
	}
	userTuning := sg.Tuning
	if userTuning != "" {
		sg.TuningSource = song.SourceUser
	} else {
		sg.Tuning, sg.TuningSource = s.enricher.ResolveTuning(ctx, sg.Artist, sg.Title, "")
	}

	if err := s.store.Upsert(ctx, sg); err != nil {
		return err
	}

	s.publish(event.SongCreated, map[string]any{"title": sg.Title, "artist": sg.Artist})
	return nil
}

// backfill fills a stored row's missing BPM and corrects its tuning when the
// static table disagrees. Writes only happen on change, so a second pass over
// the same row is a no-op.
func (s *Service) backfill(ctx context.Context, sg *song.Song) error {
	changed := false

	if sg.BPM == nil {
		if bpm, source := s.enricher.ResolveBPM(ctx, sg.Artist, sg.Title); bpm != nil {
			sg.BPM, sg.BPMSource = bpm, source
			changed = true
		}
	}

	if sg.TuningSource != song.SourceUser {
		if tuning, source := s.enricher.FallbackTuning(sg.Title); tuning != sg.Tuning {
			sg.Tuning, sg.TuningSource = tuning, source
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return s.store.Update(ctx, sg)
}

// discover searches the catalog, ranks the candidates, drops any already in
// the store, enriches the survivors in parallel and persists them.
func (s *Service) discover(ctx context.Context, query string, existing []song.Song) []song.Song {
	room := s.maxResults - len(existing)
	if room <= 0 {
		return nil
	}

	tracks, err := s.catalog.Search(ctx, query)
	if err != nil {
		// Catalog failures degrade to stored results only.
		s.logger.Warn("catalog search failed", "query", query, "error", err)
		return nil
	}

	seen := make(map[string]struct{}, len(existing))
	for _, sg := range existing {
		seen[sg.Key()] = struct{}{}
	}

	var fresh []*song.Song
	for _, sc := range rank.Rank(query, tracks) {
		key := normalize.Pair(sc.Title, sc.Artist)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, &song.Song{
			Title:           sc.Title,
			Artist:          sc.Artist,
			IsLive:          isLiveTitle(sc.Title),
			DurationSeconds: sc.DurationSeconds,
			ArtworkURL:      sc.ArtworkURL,
		})
		if len(fresh) == room {
			break
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	s.enricher.EnrichSongs(ctx, fresh)

	var out []song.Song
	for _, sg := range fresh {
		if err := s.store.Upsert(ctx, sg); err != nil {
			s.logger.Warn("persisting discovery failed", "song", sg.Title, "error", err)
			continue
		}
		s.publish(event.SongCreated, map[string]any{"title": sg.Title, "artist": sg.Artist})
		out = append(out, *sg)
	}
	return out
}

func (s *Service) publish(t event.Type, data map[string]any) {
	if s.bus != nil {
		s.bus.Publish(event.Event{Type: t, Data: data})
	}
}

var liveMarkers = []string{"(live", "- live", "live at ", "live from ", "live in "}

func isLiveTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, m := range liveMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
