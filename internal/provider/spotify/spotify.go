// Package spotify resolves track tempo through a Spotify-compatible
// audio-features API using client-credentials auth. Every failure is soft:
// callers get "no tempo" and fall back to the static table.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/penlane/greenroom/internal/provider"
)

const requestTimeout = 5 * time.Second

// Config holds the settings needed to reach the audio-features API.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Client fetches track tempo from the audio-features API.
type Client struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	tokens  *tokenCache // nil when credentials are not configured
}

// New creates an audio-features client. When credentials are missing the
// client is still usable but Configured reports false and every lookup
// misses.
func New(cfg Config, limiter *provider.RateLimiterMap, logger *slog.Logger) *Client {
	c := &Client{
		client:  &http.Client{Timeout: requestTimeout},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "spotify")),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}

	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		c.tokens = newTokenCache(&clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		})
	}

	return c
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool { return c.tokens != nil }

// TrackBPM searches for an exact artist+title match and returns its tempo
// rounded to the nearest integer. The boolean is false on any miss or
// upstream failure.
func (c *Client) TrackBPM(ctx context.Context, artist, title string) (int, bool) {
	if c.tokens == nil || artist == "" || title == "" {
		return 0, false
	}

	id, ok := c.findTrack(ctx, artist, title)
	if !ok {
		return 0, false
	}

	body, err := c.doRequest(ctx, c.baseURL+"/audio-features/"+url.PathEscape(id))
	if err != nil {
		c.logger.Debug("audio features fetch failed",
			slog.String("track_id", id),
			slog.String("error", err.Error()))
		return 0, false
	}

	var features audioFeatures
	if err := json.Unmarshal(body, &features); err != nil {
		c.logger.Debug("parsing audio features", slog.String("error", err.Error()))
		return 0, false
	}
	if features.Tempo <= 0 {
		return 0, false
	}

	return int(math.Round(features.Tempo)), true
}

// findTrack returns the id of the top exact artist+title search hit.
func (c *Client) findTrack(ctx context.Context, artist, title string) (string, bool) {
	params := url.Values{
		"q":     {fmt.Sprintf("artist:%q track:%q", artist, title)},
		"type":  {"track"},
		"limit": {"1"},
	}

	body, err := c.doRequest(ctx, c.baseURL+"/search?"+params.Encode())
	if err != nil {
		c.logger.Debug("track search failed",
			slog.String("artist", artist),
			slog.String("title", title),
			slog.String("error", err.Error()))
		return "", false
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Debug("parsing track search", slog.String("error", err.Error()))
		return "", false
	}
	if len(parsed.Tracks.Items) == 0 {
		return "", false
	}

	return parsed.Tracks.Items[0].ID, true
}

// doRequest executes an authenticated GET request and returns the body.
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, provider.NameAudioFeatures); err != nil {
		return nil, &provider.ErrUpstreamUnavailable{
			Provider: provider.NameAudioFeatures,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, &provider.ErrUpstreamUnavailable{
			Provider: provider.NameAudioFeatures,
			Cause:    fmt.Errorf("fetching token: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &provider.ErrUpstreamUnavailable{
			Provider: provider.NameAudioFeatures,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return nil, &provider.ErrNotFound{Provider: provider.NameAudioFeatures, Subject: reqURL}
	default:
		return nil, &provider.ErrUpstreamUnavailable{
			Provider: provider.NameAudioFeatures,
			Cause:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
}
