// Package itunes implements the catalog search client against the iTunes
// Search API. Two independent strategies are issued per query (a broad term
// match and a narrow quoted-phrase match); a failed strategy is skipped, never
// fatal. Results are accumulated in strategy order, filtered, and deduplicated
// on the normalized (title, artist) key with first occurrence winning.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/penlane/greenroom/internal/normalize"
	"github.com/penlane/greenroom/internal/provider"
)

const (
	defaultBaseURL = "https://itunes.apple.com"
	searchTimeout  = 5 * time.Second

	broadLimit  = 25
	phraseLimit = 10
)

// Client searches the iTunes catalog for songs.
type Client struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a catalog client with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger) *Client {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a catalog client with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		client:  &http.Client{Timeout: searchTimeout},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "itunes")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Search runs both search strategies for the query and returns deduplicated
// candidate tracks in discovery order. Upstream failure of one or both
// strategies degrades to fewer (or zero) results, never an error.
func (c *Client) Search(ctx context.Context, query string) ([]provider.Track, error) {
	query = sanitizeQuery(query)
	if query == "" {
		return nil, nil
	}

	type strategyResult struct {
		tracks []trackResult
		err    error
	}

	// Dispatch both strategies concurrently but accumulate in strategy order
	// so first-occurrence-wins deduplication stays deterministic.
	strategies := []string{query, `"` + query + `"`}
	limits := []int{broadLimit, phraseLimit}
	results := make([]strategyResult, len(strategies))

	done := make(chan int, len(strategies))
	for i := range strategies {
		go func(i int) {
			tracks, err := c.searchTerm(ctx, strategies[i], limits[i])
			results[i] = strategyResult{tracks: tracks, err: err}
			done <- i
		}(i)
	}
	for range strategies {
		<-done
	}

	var accumulated []trackResult
	for i, r := range results {
		if r.err != nil {
			c.logger.Warn("search strategy failed",
				slog.Int("strategy", i),
				slog.String("error", r.err.Error()))
			continue
		}
		accumulated = append(accumulated, r.tracks...)
	}

	seen := make(map[string]bool)
	tracks := make([]provider.Track, 0, len(accumulated))
	for i, r := range accumulated {
		if r.Kind != "song" || r.TrackName == "" || r.ArtistName == "" {
			continue
		}
		key := normalize.Pair(r.TrackName, r.ArtistName)
		if seen[key] {
			continue
		}
		seen[key] = true

		tracks = append(tracks, provider.Track{
			ExternalID:      strconv.FormatInt(r.TrackID, 10),
			Title:           r.TrackName,
			Artist:          r.ArtistName,
			DurationSeconds: int(r.TrackTimeMs / 1000),
			DiscoveryIndex:  i,
			ArtworkURL:      r.ArtworkURL100,
			Price:           r.TrackPrice,
			Collection:      r.CollectionName,
			TrackNumber:     r.TrackNumber,
			ReleaseYear:     releaseYear(r.ReleaseDate),
			Genre:           r.PrimaryGenre,
		})
	}

	c.logger.Debug("catalog search completed",
		slog.String("query", query),
		slog.Int("raw", len(accumulated)),
		slog.Int("candidates", len(tracks)))

	return tracks, nil
}

// searchTerm issues a single search request.
func (c *Client) searchTerm(ctx context.Context, term string, limit int) ([]trackResult, error) {
	if err := c.limiter.Wait(ctx, provider.NameCatalog); err != nil {
		return nil, &provider.ErrUpstreamUnavailable{
			Provider: provider.NameCatalog,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	params := url.Values{
		"term":   {term},
		"media":  {"music"},
		"entity": {"song"},
		"limit":  {strconv.Itoa(limit)},
	}
	reqURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &provider.ErrUpstreamUnavailable{
			Provider: provider.NameCatalog,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &provider.ErrUpstreamUnavailable{
			Provider: provider.NameCatalog,
			Cause:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, &provider.ErrUpstreamUnavailable{
			Provider: provider.NameCatalog,
			Cause:    err,
		}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	return parsed.Results, nil
}

// sanitizeQuery trims the query and strips punctuation other than quotes,
// hyphens, and apostrophes, collapsing runs of whitespace.
func sanitizeQuery(q string) string {
	var b strings.Builder
	b.Grow(len(q))

	lastSpace := true
	for _, r := range q {
		switch {
		case r == '"' || r == '-' || r == '\'':
			b.WriteRune(r)
			lastSpace = false
		case strings.ContainsRune("!?.,;:()[]{}/\\&#@*%+=~`|<>^$_", r):
			// dropped
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// releaseYear extracts the year from an ISO-8601 release date, or 0.
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
