// Package cache is a small in-memory TTL cache keyed by logical query.
//
// Freshness depends on the key's query class: an entry stored at t0 is
// returned by Get at time t only while t - t0 is below the class duration.
// Stale entries are detected on read and stay in memory until they are
// overwritten, swept, or pushed out by the capacity bound.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/pxd/internal/config"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Well-known keys.
const (
	KeySystemOverview = "overview:system"
	KeyMaintenance    = "overview:maintenance"
	KeyHostInfo       = "host:info"
	KeyPerformance    = "perf:host"
)

// Query classes. Each has its own freshness duration.
const (
	ClassSystemOverview = "system_overview"
	ClassMaintenance    = "maintenance"
	ClassTarget         = "target"
	ClassHostInfo       = "host_info"
	ClassPerformance    = "performance"
	ClassDefault        = "default"
)

// ClassOf maps a key to its query class by prefix.
func ClassOf(key string) string {
	switch {
	case key == KeySystemOverview:
		return ClassSystemOverview
	case key == KeyMaintenance:
		return ClassMaintenance
	case strings.HasPrefix(key, "target:"):
		return ClassTarget
	case strings.HasPrefix(key, "host:"):
		return ClassHostInfo
	case strings.HasPrefix(key, "perf:"):
		return ClassPerformance
	default:
		return ClassDefault
	}
}

// TTLs holds a freshness duration per class. A zero duration means entries
// of that class are never fresh.
type TTLs struct {
	Default        time.Duration
	SystemOverview time.Duration
	Target         time.Duration
	HostInfo       time.Duration
	Maintenance    time.Duration
	Performance    time.Duration
}

// TTLsFromConfig copies the durations out of the cache config section.
func TTLsFromConfig(c config.CacheConfig) TTLs {
	return TTLs{
		Default:        c.DefaultTTL,
		SystemOverview: c.SystemOverviewTTL,
		Target:         c.TargetTTL,
		HostInfo:       c.HostInfoTTL,
		Maintenance:    c.MaintenanceTTL,
		Performance:    c.PerformanceTTL,
	}
}

// For returns the duration for class.
func (t TTLs) For(class string) time.Duration {
	switch class {
	case ClassSystemOverview:
		return t.SystemOverview
	case ClassMaintenance:
		return t.Maintenance
	case ClassTarget:
		return t.Target
	case ClassHostInfo:
		return t.HostInfo
	case ClassPerformance:
		return t.Performance
	default:
		return t.Default
	}
}

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is safe for concurrent use. Reads share a lock; writes are exclusive.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttls       TTLs
	maxEntries int

	loads   singleflight.Group
	now     func() time.Time
	metrics *metrics.Metrics
	log     logger.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics records hits, misses and evictions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) { c.log = logger.Named(l, "cache") }
}

// WithMaxEntries bounds the number of entries. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// New creates an empty cache.
func New(ttls TTLs, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttls:    ttls,
		now:     time.Now,
		log:     logger.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a cache from the config section.
func NewFromConfig(cfg config.CacheConfig, opts ...Option) *Cache {
	return New(TTLsFromConfig(cfg), append([]Option{WithMaxEntries(cfg.MaxEntries)}, opts...)...)
}

// DurationFor is the freshness duration that applies to key.
func (c *Cache) DurationFor(key string) time.Duration {
	return c.ttls.For(ClassOf(key))
}

// fresh must be called with mu held.
func (c *Cache) fresh(key string, e entry, now time.Time) bool {
	return now.Sub(e.storedAt) < c.DurationFor(key)
}

// Get returns the value for key if present and fresh.
func (c *Cache) Get(key string) (any, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	ok = ok && c.fresh(key, e, now)
	c.mu.RUnlock()

	if ok {
		c.metrics.CacheHit(ClassOf(key))
		return e.value, true
	}
	c.metrics.CacheMiss(ClassOf(key))
	return nil, false
}

// Put stores value under key, replacing any previous entry.
func (c *Cache) Put(key string, value any) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		evicted := c.sweepLocked(now)
		if len(c.entries) >= c.maxEntries {
			c.evictOldestLocked()
			evicted++
		}
		c.metrics.CacheEvicted(evicted)
	}
	c.entries[key] = entry{value: value, storedAt: now}
}

// Invalidate removes keys. Missing keys are ignored.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// GetOrLoad returns the fresh value for key, or calls load and stores its
// result. Concurrent misses on the same key share one load. Errors are
// returned to every waiter and not cached.
//
// The shared load keeps ctx's values but not its cancellation: one waiter
// going away must not cut short the result the others are waiting for. A
// waiter whose ctx ends stops waiting and gets ctx.Err().
func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(key, func() (any, error) {
		// A load that finished between our Get and DoChan already stored it.
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})

	select {
	case r := <-ch:
		if r.Shared {
			c.log.Debug("shared load for %s", key)
		}
		return r.Val, r.Err
	case <-ctx.Done():
		c.log.Debug("gave up waiting for %s: %v", key, ctx.Err())
		return nil, ctx.Err()
	}
}

// peek is Get without touching the hit/miss counters.
func (c *Cache) peek(key string) (any, bool) {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.fresh(key, e, now) {
		return nil, false
	}
	return e.value, true
}

// Load is GetOrLoad for a typed loader. A cached value of another type
// counts as a miss and is reloaded.
func Load[T any](ctx context.Context, c *Cache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
		c.Invalidate(key)
	}
	v, err := c.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Sweep removes every stale entry and returns how many it removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	n := c.sweepLocked(now)
	c.mu.Unlock()

	c.metrics.CacheEvicted(n)
	return n
}

func (c *Cache) sweepLocked(now time.Time) int {
	n := 0
	for k, e := range c.entries {
		if !c.fresh(k, e, now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.storedAt.Before(oldest) {
			oldestKey, oldest, first = k, e.storedAt, false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Len is the number of entries held, stale ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartJanitor sweeps every interval until ctx is done. It returns
// immediately; the sweeping happens in a goroutine.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.log.Debug("swept %d stale entries", n)
				}
			}
		}
	}()
}
