package news

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"overlaybackend/internal/metrics"
)

// DefaultCacheTTL is the freshness window for composed headline lists. It is
// unrelated to the overlay refresh rate, which only paces client polling.
const DefaultCacheTTL = 10 * time.Second

var ErrInvalidCacheKey = errors.New("news: invalid cache key")

// CacheKey identifies one composed headline list.
type CacheKey struct {
	Mode   Mode
	Filter Filter
	Limit  int
	Query  string
}

// NewCacheKey validates the key components.
func NewCacheKey(mode Mode, filter Filter, limit int, query string) (CacheKey, error) {
	if !mode.Valid() {
		return CacheKey{}, fmt.Errorf("%w: mode %q", ErrInvalidCacheKey, mode)
	}
	if limit <= 0 {
		return CacheKey{}, fmt.Errorf("%w: limit %d", ErrInvalidCacheKey, limit)
	}
	return CacheKey{Mode: mode, Filter: filter, Limit: limit, Query: query}, nil
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%d|%s", k.Mode, k.Filter, k.Limit, k.Query)
}

// CacheEntry is a composed headline list and the time it was stored.
type CacheEntry struct {
	Headlines []Headline `json:"headlines"`
	CreatedAt time.Time  `json:"created_at"`
}

// Cache stores composed headline lists for a short freshness window.
type Cache interface {
	Get(ctx context.Context, key CacheKey) (CacheEntry, bool)
	Put(ctx context.Context, key CacheKey, headlines []Headline) CacheEntry
	// Last returns the most recently stored list regardless of freshness.
	Last(ctx context.Context) (CacheEntry, bool)
	// ForgetHeadlines removes ids from the Last snapshot.
	ForgetHeadlines(ctx context.Context, ids []string)
	// InvalidateAll drops every fresh entry; the Last snapshot is kept.
	InvalidateAll(ctx context.Context)
	// Clear drops every entry including the Last snapshot.
	Clear(ctx context.Context)
}

// MemoryCache is a process-local Cache backed by an expiring LRU.
type MemoryCache struct {
	ttl     time.Duration
	entries *expirable.LRU[string, CacheEntry]
	now     func() time.Time

	mu      sync.Mutex
	last    CacheEntry
	hasLast bool
}

// NewMemoryCache builds a cache holding up to size keys for ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 128
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: expirable.NewLRU[string, CacheEntry](size, nil, ttl),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key CacheKey) (CacheEntry, bool) {
	entry, ok := c.entries.Get(key.String())
	if !ok || c.now().Sub(entry.CreatedAt) >= c.ttl {
		metrics.RecordCacheMiss()
		return CacheEntry{}, false
	}
	metrics.RecordCacheHit()
	return CacheEntry{Headlines: cloneHeadlines(entry.Headlines), CreatedAt: entry.CreatedAt}, true
}

func (c *MemoryCache) Put(_ context.Context, key CacheKey, headlines []Headline) CacheEntry {
	entry := CacheEntry{Headlines: cloneHeadlines(headlines), CreatedAt: c.now()}
	c.entries.Add(key.String(), entry)

	c.mu.Lock()
	c.last = entry
	c.hasLast = true
	c.mu.Unlock()

	return CacheEntry{Headlines: cloneHeadlines(entry.Headlines), CreatedAt: entry.CreatedAt}
}

func (c *MemoryCache) Last(_ context.Context) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasLast {
		return CacheEntry{}, false
	}
	return CacheEntry{Headlines: cloneHeadlines(c.last.Headlines), CreatedAt: c.last.CreatedAt}, true
}

func (c *MemoryCache) ForgetHeadlines(_ context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasLast {
		c.last.Headlines = withoutIDs(c.last.Headlines, ids)
	}
}

func (c *MemoryCache) InvalidateAll(_ context.Context) {
	c.entries.Purge()
	metrics.RecordInvalidation()
}

func (c *MemoryCache) Clear(ctx context.Context) {
	c.InvalidateAll(ctx)
	c.mu.Lock()
	c.last = CacheEntry{}
	c.hasLast = false
	c.mu.Unlock()
}

// withoutIDs returns a copy of headlines minus the given ids.
func withoutIDs(headlines []Headline, ids []string) []Headline {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := make([]Headline, 0, len(headlines))
	for _, h := range headlines {
		if _, ok := drop[h.ID]; !ok {
			kept = append(kept, h)
		}
	}
	return kept
}
