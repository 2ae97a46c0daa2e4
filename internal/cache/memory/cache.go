package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/webagent/internal/search"
)

type item struct {
	results   []search.RawResult
	expiresAt time.Time
}

// Cache holds raw search results per query hash with a TTL. Caching the
// raw provider records, not the aggregated response, keeps repeated runs
// deterministic while letting extraction re-run.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]item
	stopChan chan struct{}
	stopped  bool
}

func New() *Cache {
	return NewWithContext(context.Background())
}

func NewWithContext(ctx context.Context) *Cache {
	c := &Cache{
		items:    make(map[string]item),
		stopChan: make(chan struct{}),
	}
	go c.cleanup(ctx)
	return c
}

func (c *Cache) Get(key string) ([]search.RawResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || time.Now().After(it.expiresAt) {
		return nil, false
	}

	// callers get their own copy; cached records are never shared mutable
	out := make([]search.RawResult, len(it.results))
	copy(out, it.results)
	return out, true
}

func (c *Cache) Set(key string, results []search.RawResult, ttl time.Duration) {
	stored := make([]search.RawResult, len(results))
	copy(stored, results)

	c.mu.Lock()
	c.items[key] = item{results: stored, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *Cache) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stopChan)
	}
	c.mu.Unlock()
}

// cleanup sweeps expired entries every 5 minutes
// XXX: interval is hardcoded, maybe worth a config knob
func (c *Cache) cleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, k)
		}
	}
}
