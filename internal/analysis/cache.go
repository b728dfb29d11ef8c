package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
	"github.com/couchcryptid/climate-analytics-service/internal/observability"
)

// CachedAnalyzer wraps a Service with an in-memory LRU cache. Every analysis
// is a pure function of its request, so results are keyed by request content.
type CachedAnalyzer struct {
	inner   Service
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedAnalyzer creates a cache decorator around a Service.
func NewCachedAnalyzer(inner Service, maxEntries int, metrics *observability.Metrics) *CachedAnalyzer {
	return &CachedAnalyzer{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResult, error) {
	key, err := Fingerprint(req)
	if err != nil {
		return c.inner.Analyze(ctx, req)
	}
	if res, ok := c.cache.get(key); ok {
		c.metrics.AnalysisCache.WithLabelValues("hit").Inc()
		res.ID = req.ID
		return res, nil
	}
	c.metrics.AnalysisCache.WithLabelValues("miss").Inc()

	res, err := c.inner.Analyze(ctx, req)
	if err != nil {
		return res, err
	}
	// Internal failures may be transient; data-dependent ones are not.
	if res.Error == nil || res.Error.Kind != domain.ErrorKindInternal {
		c.cache.put(key, res)
	}
	return res, nil
}

// Len returns the number of cached results.
func (c *CachedAnalyzer) Len() int {
	return c.cache.len()
}

// Fingerprint is a SHA-256 digest of the request content, ID excluded, so
// identical analyses submitted under different IDs share a cache entry.
func Fingerprint(req domain.AnalysisRequest) (string, error) {
	req.ID = ""
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(b)
	return req.Kind + "-" + hex.EncodeToString(hash[:16]), nil
}

// lruCache is a simple thread-safe LRU cache for AnalysisResults.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.AnalysisResult
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.AnalysisResult{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
