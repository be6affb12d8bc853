package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
	"github.com/couchcryptid/forecast-fusion-service/internal/forecast"
	"github.com/couchcryptid/forecast-fusion-service/internal/observability"
)

// CachedSource wraps a forecast source with an in-memory LRU cache keyed by
// the request's identity: region, horizon and the series tail. Within a
// cycle every horizon shares one series, so a retried cycle reuses answers
// instead of repeating paid remote calls. Errors are never cached.
type CachedSource struct {
	inner   forecast.Source
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a source.
func NewCachedSource(inner forecast.Source, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Name implements forecast.Source.
func (c *CachedSource) Name() domain.Source {
	return c.inner.Name()
}

// Predict implements forecast.Source.
func (c *CachedSource) Predict(ctx context.Context, region domain.Region, series domain.ObservationSeries, horizon domain.Horizon) (domain.Parameters, error) {
	key := requestKey(region, series, horizon)
	if params, ok := c.cache.get(key); ok {
		c.metrics.RemoteCache.WithLabelValues("hit").Inc()
		return params.Clone(), nil
	}
	c.metrics.RemoteCache.WithLabelValues("miss").Inc()

	params, err := c.inner.Predict(ctx, region, series, horizon)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, params.Clone())
	return params, nil
}

// requestKey fingerprints a prediction request. The series is identified by
// its span and length: appended samples change the key, so only genuinely
// identical requests hit the cache.
func requestKey(region domain.Region, series domain.ObservationSeries, horizon domain.Horizon) string {
	var last time.Time
	if latest, ok := series.Latest(); ok {
		last = latest.Timestamp
	}
	input := fmt.Sprintf("%s|%s|%d|%s", region.Name, horizon.ID, len(series.Samples), last.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:12])
}

// lruCache is a small thread-safe LRU for parameter maps.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Parameters
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

func (c *lruCache) get(key string) (domain.Parameters, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Parameters) {
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

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
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

func (c *lruCache) remove(e *entry) {
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
	c.remove(c.tail)
}
