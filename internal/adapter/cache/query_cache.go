package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// QueryCache is an LRU of ranked results. Every entry remembers the index
// generation it was computed against and is discarded once the index moves on.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	results   []domain.SearchResult
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, topK int, boost domain.BoostConfig) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%v\x00%g", query, topK, boost.PreferTypes, boost.TypeBoost)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Get returns cached results computed against generation gen.
func (c *QueryCache) Get(query string, topK int, boost domain.BoostConfig, gen uint64) ([]domain.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK, boost)
	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != gen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return append([]domain.SearchResult(nil), entry.results...), true
}

func (c *QueryCache) Put(query string, topK int, boost domain.BoostConfig, gen uint64, results []domain.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK, boost)
	entry := &cacheEntry{
		results:   append([]domain.SearchResult(nil), results...),
		timestamp: c.now(),
		indexGen:  gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// GenerationSource reports the current index generation.
type GenerationSource interface {
	Generation() uint64
}

// CachedRetriever serves repeated searches from the cache while the index
// generation is unchanged. Errors are never cached.
type CachedRetriever struct {
	retriever port.Retriever
	cache     *QueryCache
	index     GenerationSource
}

var _ port.Retriever = (*CachedRetriever)(nil)

func NewCachedRetriever(retriever port.Retriever, cache *QueryCache, index GenerationSource) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
		index:     index,
	}
}

func (r *CachedRetriever) Search(ctx context.Context, query string, k int, boost domain.BoostConfig) ([]domain.SearchResult, error) {
	// Read the generation first: results computed against a newer one are
	// stored under the older tag and simply miss next time.
	gen := r.index.Generation()
	if results, hit := r.cache.Get(query, k, boost, gen); hit {
		return results, nil
	}

	results, err := r.retriever.Search(ctx, query, k, boost)
	if err != nil {
		return nil, err
	}

	r.cache.Put(query, k, boost, gen, results)
	return results, nil
}
