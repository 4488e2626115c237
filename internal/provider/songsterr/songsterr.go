// Package songsterr looks up guitar tuning from a tab database. The lookup is
// strictly best-effort: any failure, mismatch, or unmappable tuning string
// leaves the caller's current value untouched.
package songsterr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/penlane/greenroom/internal/provider"
)

const (
	defaultBaseURL = "https://www.songsterr.com"
	lookupTimeout  = 3 * time.Second

	// matchThreshold is the minimum JaroWinkler similarity for a result to be
	// preferred over plain first-result fallback.
	matchThreshold = 0.85
)

// exactTunings maps raw tuning strings to canonical labels.
var exactTunings = map[string]string{
	"e standard":  "standard",
	"standard":    "standard",
	"eadgbe":      "standard",
	"drop d":      "drop_d",
	"dadgbe":      "drop_d",
	"eb standard": "e_flat",
	"d standard":  "d_standard",
	"drop c":      "drop_c",
	"drop b":      "drop_b",
	"open g":      "open_g",
	"dadgad":      "dadgad",
}

// substringTunings is the fallback pattern table, checked in order. Raw
// strings from tab sites carry decorations like "Drop D Tuning (DADGBE)".
var substringTunings = []struct {
	pattern string
	label   string
}{
	{"drop d", "drop_d"},
	{"drop c#", "drop_c_sharp"},
	{"drop c", "drop_c"},
	{"drop b", "drop_b"},
	{"eb ", "e_flat"},
	{"e flat", "e_flat"},
	{"half step down", "e_flat"},
	{"d standard", "d_standard"},
	{"whole step down", "d_standard"},
	{"open g", "open_g"},
	{"dadgad", "dadgad"},
}

// Client searches the tab database for a song's tuning.
type Client struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a tab client with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger) *Client {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a tab client with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		client:  &http.Client{Timeout: lookupTimeout},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "songsterr")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// LookupTuning searches the tab database and returns the canonical tuning of
// the best-matching song's guitar-family tracks. The boolean is false on any
// miss or failure.
func (c *Client) LookupTuning(ctx context.Context, artist, title string) (string, bool) {
	if title == "" {
		return "", false
	}

	if err := c.limiter.Wait(ctx, provider.NameTabs); err != nil {
		return "", false
	}

	pattern := strings.TrimSpace(artist + " " + title)
	params := url.Values{
		"pattern": {pattern},
		"size":    {"10"},
	}
	reqURL := c.baseURL + "/api/songs?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("tab lookup failed", slog.String("error", err.Error()))
		return "", false
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("tab lookup failed",
			slog.String("error", fmt.Sprintf("unexpected status %d", resp.StatusCode)))
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return "", false
	}

	var songs []songResult
	if err := json.Unmarshal(body, &songs); err != nil {
		c.logger.Debug("parsing tab response", slog.String("error", err.Error()))
		return "", false
	}
	if len(songs) == 0 {
		return "", false
	}

	best := bestMatch(songs, artist, title)

	for _, track := range best.Tracks {
		if !isGuitarFamily(track.Instrument) {
			continue
		}
		if label, ok := MapTuning(track.TuningName); ok {
			return label, true
		}
	}

	return "", false
}

// bestMatch picks the result whose title/artist is most similar to the
// request, falling back to the first result below the threshold.
func bestMatch(songs []songResult, artist, title string) songResult {
	want := strings.ToLower(strings.TrimSpace(artist + " " + title))

	best := songs[0]
	bestScore := float32(0)
	for _, s := range songs {
		got := strings.ToLower(strings.TrimSpace(s.Artist + " " + s.Title))
		sim, err := edlib.StringsSimilarity(want, got, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if sim > bestScore {
			bestScore = sim
			best = s
		}
	}

	if bestScore < matchThreshold {
		return songs[0]
	}
	return best
}

// MapTuning converts a raw tuning string to a canonical label. Exact matches
// win; otherwise the substring pattern table applies; a raw string that maps
// to nothing yields ("standard", true) since tab sites omit decorations only
// for standard tuning.
func MapTuning(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	if label, ok := exactTunings[s]; ok {
		return label, true
	}

	for _, p := range substringTunings {
		if strings.Contains(s, p.pattern) {
			return p.label, true
		}
	}

	return "standard", true
}

// isGuitarFamily reports whether an instrument name is a guitar or bass.
func isGuitarFamily(instrument string) bool {
	s := strings.ToLower(instrument)
	return strings.Contains(s, "guitar") || strings.Contains(s, "bass")
}
