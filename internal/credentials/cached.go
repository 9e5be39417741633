package credentials

import (
	"context"
	"sync"

	"github.com/pushrelay/dispatch-service/internal/domain"
)

// Cached wraps a CredentialProvider and caches its token until Invalidate
// is called. Refresh is triggered by the dispatch engine on authentication
// failure from the gateway, never on a timer. Concurrent callers share a
// single fetch.
type Cached struct {
	source domain.CredentialProvider

	mu    sync.Mutex
	token string
	valid bool
}

// NewCached creates a caching wrapper around source.
func NewCached(source domain.CredentialProvider) *Cached {
	return &Cached{source: source}
}

// Token returns the cached credential, fetching from the source when the
// cache is empty or was invalidated.
func (c *Cached) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid {
		return c.token, nil
	}

	token, err := c.source.Token(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.valid = true
	return token, nil
}

// Invalidate drops the cached credential so the next Token call fetches a
// fresh one.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.token = ""
	c.mu.Unlock()
}
