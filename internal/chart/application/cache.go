package application

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"natal-engine/internal/observability/metrics"
)

// ChartCache memoizes validated natal charts per birth moment so every feature
// of a request reads the same numbers. At most one computation per key runs at
// a time; concurrent callers share its result. Failed computations are not cached.
type ChartCache struct {
	mu         sync.Mutex
	entries    map[string]*NatalChart
	order      []string
	maxEntries int
	group      singleflight.Group
}

// NewChartCache constructs a cache; maxEntries <= 0 means unbounded.
// When full, the oldest entry is evicted.
func NewChartCache(maxEntries int) *ChartCache {
	return &ChartCache{
		entries:    make(map[string]*NatalChart),
		maxEntries: maxEntries,
	}
}

// Get returns a cached chart.
func (c *ChartCache) Get(key string) (*NatalChart, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chart, ok := c.entries[key]
	return chart, ok
}

// GetOrCompute returns the cached chart for key or runs compute once.
// cached is true when the chart came from the cache or from another caller's computation.
func (c *ChartCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (*NatalChart, error)) (*NatalChart, bool, error) {
	if chart, ok := c.Get(key); ok {
		metrics.IncChartCache(metrics.CacheHit)
		return chart, true, nil
	}
	computed := false
	v, err, shared := c.group.Do(key, func() (any, error) {
		if chart, ok := c.Get(key); ok {
			return chart, nil
		}
		computed = true
		chart, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.put(key, chart)
		return chart, nil
	})
	if err != nil {
		return nil, false, err
	}
	switch {
	case shared && !computed:
		metrics.IncChartCache(metrics.CacheShared)
	case computed:
		metrics.IncChartCache(metrics.CacheMiss)
	default:
		metrics.IncChartCache(metrics.CacheHit)
	}
	return v.(*NatalChart), !computed, nil
}

// Delete drops a key.
func (c *ChartCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached charts.
func (c *ChartCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge empties the cache.
func (c *ChartCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*NatalChart)
	c.order = nil
}

func (c *ChartCache) put(key string, chart *NatalChart) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = chart
	for c.maxEntries > 0 && len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}
