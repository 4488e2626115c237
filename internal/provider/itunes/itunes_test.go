package itunes

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/penlane/greenroom/internal/provider"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func newTestServer(t *testing.T, failBroad bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		term := r.URL.Query().Get("term")
		switch {
		case strings.HasPrefix(term, `"`):
			w.Write(loadFixture(t, "search_phrase.json"))
		case failBroad:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write(loadFixture(t, "search_broad.json"))
		}
	}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	limiter := provider.NewRateLimiterMap()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(limiter, logger, baseURL)
}

func TestSearchDeduplicates(t *testing.T) {
	srv := newTestServer(t, false)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	tracks, err := c.Search(context.Background(), "everlong")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Broad: Everlong, Everlong (Acoustic) survive; audiobook and empty-title
	// entries are dropped. Phrase: EVERLONG dedupes against Everlong, the
	// tribute entry is new.
	if len(tracks) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(tracks))
	}
	if tracks[0].Title != "Everlong" || tracks[0].Artist != "Foo Fighters" {
		t.Errorf("unexpected first candidate %+v", tracks[0])
	}
	if tracks[0].DiscoveryIndex != 0 {
		t.Errorf("expected discovery index 0, got %d", tracks[0].DiscoveryIndex)
	}
	if tracks[2].Artist != "Tribute Kings" {
		t.Errorf("unexpected last candidate %+v", tracks[2])
	}
	// The tribute entry sits behind all four broad results and the deduped
	// phrase hit in the accumulated stream.
	if tracks[2].DiscoveryIndex != 5 {
		t.Errorf("expected discovery index 5, got %d", tracks[2].DiscoveryIndex)
	}
}

func TestSearchFieldMapping(t *testing.T) {
	srv := newTestServer(t, false)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	tracks, err := c.Search(context.Background(), "everlong")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	first := tracks[0]
	if first.DurationSeconds != 250 {
		t.Errorf("expected 250s duration, got %d", first.DurationSeconds)
	}
	if first.ReleaseYear != 1997 {
		t.Errorf("expected release year 1997, got %d", first.ReleaseYear)
	}
	if first.Collection != "The Colour and the Shape" {
		t.Errorf("unexpected collection %q", first.Collection)
	}
	if first.Price != 1.29 {
		t.Errorf("unexpected price %v", first.Price)
	}
}

func TestSearchPartialStrategyFailure(t *testing.T) {
	srv := newTestServer(t, true)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	tracks, err := c.Search(context.Background(), "everlong")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Broad strategy fails, phrase strategy still delivers.
	if len(tracks) != 2 {
		t.Fatalf("expected 2 candidates from the surviving strategy, got %d", len(tracks))
	}
}

func TestSearchAllStrategiesFail(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	tracks, err := c.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("expected soft failure, got %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("expected empty result, got %d", len(tracks))
	}
	if calls.Load() != 2 {
		t.Errorf("expected both strategies attempted, got %d calls", calls.Load())
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := newTestClient(t, "http://localhost")
	tracks, err := c.Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tracks != nil {
		t.Error("expected nil tracks for blank query")
	}
}

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hotel   california  ", "hotel california"},
		{"what's up?", "what's up"},
		{`"exact phrase" (live)`, `"exact phrase" live`},
		{"AC/DC", "ACDC"},
		{"twenty-one", "twenty-one"},
	}
	for _, tt := range tests {
		if got := sanitizeQuery(tt.in); got != tt.want {
			t.Errorf("sanitizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
