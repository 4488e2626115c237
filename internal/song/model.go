package song

import (
	"time"

	"github.com/penlane/greenroom/internal/normalize"
)

// TuningStandard is the default tuning. A song's tuning is never empty:
// absence of evidence means standard.
const TuningStandard = "standard"

// Enrichment sources recorded alongside BPM and tuning values.
const (
	SourceAudioFeatures = "audio_features"
	SourceFallbackTable = "fallback_table"
	SourceTabLookup     = "tab_lookup"
	SourceUser          = "user"
)

// Song is a canonical persisted song. Identity is the normalized
// (title, artist) pair; BPM is nil (never 0) when unknown.
type Song struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	IsLive          bool      `json:"is_live"`
	DurationSeconds int       `json:"duration_seconds"`
	BPM             *int      `json:"bpm,omitempty"`
	BPMSource       string    `json:"bpm_source,omitempty"`
	Tuning          string    `json:"tuning"`
	TuningSource    string    `json:"tuning_source,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// ArtworkURL is transient: carried on API responses, never persisted.
	ArtworkURL string `json:"artwork_url,omitempty"`
}

// Key returns the song's normalized identity key.
func (s *Song) Key() string {
	return normalize.Pair(s.Title, s.Artist)
}
