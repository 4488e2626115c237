// Package enrich resolves tempo and tuning for songs through layered
// fallbacks. Resolution is side-effect free and safe to run in parallel
// across songs; misses are silent and leave fields unset (BPM) or at their
// default (tuning).
package enrich

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/penlane/greenroom/internal/refdata"
	"github.com/penlane/greenroom/internal/song"
)

// maxParallel bounds concurrent enrichment lookups across songs.
const maxParallel = 4

// TempoSource is the external audio-features lookup tier.
type TempoSource interface {
	Configured() bool
	TrackBPM(ctx context.Context, artist, title string) (int, bool)
}

// TuningSource is the external tab-database lookup tier.
type TuningSource interface {
	LookupTuning(ctx context.Context, artist, title string) (string, bool)
}

// Enricher resolves BPM and tuning with layered fallbacks.
type Enricher struct {
	tempo  TempoSource
	tuning TuningSource
	logger *slog.Logger
}

// New creates an Enricher.
func New(tempo TempoSource, tuning TuningSource, logger *slog.Logger) *Enricher {
	return &Enricher{
		tempo:  tempo,
		tuning: tuning,
		logger: logger.With(slog.String("component", "enricher")),
	}
}

// ResolveBPM resolves tempo for a song: audio-features API first, then the
// static table. Returns (nil, "") when every tier misses; BPM is never 0.
func (e *Enricher) ResolveBPM(ctx context.Context, artist, title string) (*int, string) {
	if e.tempo != nil && e.tempo.Configured() {
		if bpm, ok := e.tempo.TrackBPM(ctx, artist, title); ok && bpm > 0 {
			return &bpm, song.SourceAudioFeatures
		}
	}

	if bpm, ok := refdata.FallbackBPM(title); ok {
		return &bpm, song.SourceFallbackTable
	}

	return nil, ""
}

// ResolveTuning resolves tuning for a song. Priority: a user-confirmed value
// passed in, then the static table, then — only when the table is silent — a
// best-effort tab lookup. The result is never empty; no evidence means
// standard.
func (e *Enricher) ResolveTuning(ctx context.Context, artist, title, userTuning string) (string, string) {
	if userTuning != "" {
		return userTuning, song.SourceUser
	}

	if tuning, ok := refdata.FallbackTuning(title); ok {
		return tuning, song.SourceFallbackTable
	}

	if e.tuning != nil {
		if tuning, ok := e.tuning.LookupTuning(ctx, artist, title); ok && tuning != "" {
			return tuning, song.SourceTabLookup
		}
	}

	return song.TuningStandard, ""
}

// FallbackTuning returns the static-table tuning for a title, defaulting to
// standard. The persistence gate compares stored tunings against this value
// to decide whether a correction is due.
func (e *Enricher) FallbackTuning(title string) (string, string) {
	if tuning, ok := refdata.FallbackTuning(title); ok {
		return tuning, song.SourceFallbackTable
	}
	return song.TuningStandard, ""
}

// EnrichSongs fills missing BPM and default tuning on the given songs in
// parallel. The songs themselves are mutated; no writes happen here.
func (e *Enricher) EnrichSongs(ctx context.Context, songs []*song.Song) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for _, sg := range songs {
		g.Go(func() error {
			if sg.BPM == nil {
				sg.BPM, sg.BPMSource = e.ResolveBPM(ctx, sg.Artist, sg.Title)
			}
			if sg.Tuning == "" || sg.Tuning == song.TuningStandard {
				tuning, source := e.ResolveTuning(ctx, sg.Artist, sg.Title, "")
				if tuning != song.TuningStandard {
					sg.Tuning, sg.TuningSource = tuning, source
				} else if sg.Tuning == "" {
					sg.Tuning = song.TuningStandard
				}
			}
			return nil
		})
	}

	_ = g.Wait() // workers never return errors; misses are silent
}
