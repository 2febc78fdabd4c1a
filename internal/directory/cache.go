package directory

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/vouchlab/vouchd/internal/access"
)

// profileEntry holds a cached profile lookup.
type profileEntry struct {
	profile   Profile
	expiresAt time.Time
}

func (e *profileEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Cached wraps a Directory with a TTL cache over profile lookups. Capability
// queries are never cached: privilege checks must always see the live
// directory state.
type Cached struct {
	inner Directory
	ttl   time.Duration

	mu       sync.RWMutex
	profiles map[string]*profileEntry
}

// NewCached creates a caching wrapper. ttl zero means 5 minutes.
func NewCached(inner Directory, ttl time.Duration) *Cached {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{
		inner:    inner,
		ttl:      ttl,
		profiles: make(map[string]*profileEntry),
	}
}

// Lookup implements Directory.
func (c *Cached) Lookup(ctx context.Context, userID string) (Profile, error) {
	c.mu.RLock()
	e, ok := c.profiles[userID]
	c.mu.RUnlock()
	if ok && !e.expired() {
		return e.profile, nil
	}

	p, err := c.inner.Lookup(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	c.mu.Lock()
	c.profiles[userID] = &profileEntry{profile: p, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return p, nil
}

// Capabilities implements Directory, passing through uncached.
func (c *Cached) Capabilities(ctx context.Context, communityID, actorID string) (access.Capabilities, error) {
	return c.inner.Capabilities(ctx, communityID, actorID)
}

// SendFile implements Directory, passing through.
func (c *Cached) SendFile(ctx context.Context, userID, message, filename string, content io.Reader) error {
	return c.inner.SendFile(ctx, userID, message, filename, content)
}
