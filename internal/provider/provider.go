// Package provider defines the shared contracts for the external data sources
// the discovery engine talks to: the song catalog, the audio-features API, and
// the tab/tuning database. Raw upstream payloads never leave their adapter;
// everything crosses this boundary as typed results.
package provider

import (
	"fmt"
	"time"
)

// Name uniquely identifies an external data source.
type Name string

// Known provider names.
const (
	NameCatalog       Name = "catalog"
	NameAudioFeatures Name = "audio_features"
	NameTabs          Name = "tabs"
)

// DisplayName returns a human-readable name for the provider.
func (n Name) DisplayName() string {
	switch n {
	case NameCatalog:
		return "Song Catalog"
	case NameAudioFeatures:
		return "Audio Features"
	case NameTabs:
		return "Tab Database"
	default:
		return string(n)
	}
}

// Track is a single candidate track returned by a catalog search, before
// ranking. DiscoveryIndex is the track's position in the accumulated search
// stream across strategies; earlier positions are a weak popularity signal.
type Track struct {
	ExternalID      string  `json:"external_id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	DurationSeconds int     `json:"duration_seconds"`
	DiscoveryIndex  int     `json:"discovery_index"`
	ArtworkURL      string  `json:"artwork_url,omitempty"`
	Price           float64 `json:"price,omitempty"`
	Collection      string  `json:"collection,omitempty"`
	TrackNumber     int     `json:"track_number,omitempty"`
	ReleaseYear     int     `json:"release_year,omitempty"`
	Genre           string  `json:"genre,omitempty"`
}

// ErrUpstreamUnavailable indicates a transient failure (timeout, rate limit,
// server error). Callers treat it as "no data" and fall through to the next
// tier rather than failing the request.
type ErrUpstreamUnavailable struct {
	Provider   Name
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrUpstreamUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrUpstreamUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the provider has no data for the requested subject.
type ErrNotFound struct {
	Provider Name
	Subject  string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %s: %s not found", e.Provider, e.Subject)
}
