package detect

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL matches how quickly a speaker plausibly switches
	// language mid-conversation. Captions for the same phrase inside this
	// window reuse the previous detection instead of hitting the backend.
	DefaultCacheTTL = 60 * time.Second

	defaultMaxEntries = 1024
)

// Compile-time assertion that Cache implements Provider.
var _ Provider = (*Cache)(nil)

type cacheEntry struct {
	detection Detection
	expires   time.Time
}

// Cache wraps a Provider with a TTL-bounded memoization layer keyed by the
// exact input text. Repeated frames with identical recognized text (a common
// pattern when a speaker pauses mid-sentence) skip the network round trip.
//
// Cache is safe for concurrent use.
type Cache struct {
	inner      Provider
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache wraps inner with a detection cache. A non-positive ttl selects
// DefaultCacheTTL.
func NewCache(inner Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		inner:      inner,
		ttl:        ttl,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
	}
}

// Detect returns the cached detection for text when present and fresh, and
// consults the inner provider otherwise. Failed lookups are not cached.
func (c *Cache) Detect(ctx context.Context, text string) (Detection, error) {
	c.mu.Lock()
	if e, ok := c.entries[text]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.detection, nil
	}
	c.mu.Unlock()

	d, err := c.inner.Detect(ctx, text)
	if err != nil {
		return Detection{}, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.maxEntries {
		// Full reset is cheaper than LRU bookkeeping at this scale and the
		// cache refills within a few frames.
		c.entries = make(map[string]cacheEntry)
	}
	c.entries[text] = cacheEntry{detection: d, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return d, nil
}
