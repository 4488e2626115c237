package spotify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// refreshSkew refreshes the token this long before its actual expiry so a
// token never dies mid-request.
const refreshSkew = 60 * time.Second

// tokenCache holds a process-wide client-credentials token. Concurrent
// callers share one in-flight refresh via singleflight. The clock is
// injectable for tests.
type tokenCache struct {
	conf *clientcredentials.Config
	now  func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	token *oauth2.Token
}

func newTokenCache(conf *clientcredentials.Config) *tokenCache {
	return &tokenCache{
		conf: conf,
		now:  time.Now,
	}
}

// AccessToken returns a valid access token, refreshing if the cached one is
// missing or within refreshSkew of expiry.
func (c *tokenCache) AccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	tok := c.token
	c.mu.RUnlock()

	if c.valid(tok) {
		return tok.AccessToken, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		// Re-check under the flight: another caller may have refreshed while
		// this one was queued.
		c.mu.RLock()
		cur := c.token
		c.mu.RUnlock()
		if c.valid(cur) {
			return cur, nil
		}

		fresh, err := c.conf.Token(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.token = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return "", err
	}

	return v.(*oauth2.Token).AccessToken, nil
}

func (c *tokenCache) valid(tok *oauth2.Token) bool {
	return tok != nil && tok.AccessToken != "" &&
		(tok.Expiry.IsZero() || tok.Expiry.After(c.now().Add(refreshSkew)))
}
