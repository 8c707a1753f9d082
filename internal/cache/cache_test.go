package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rileyhilliard/pxd/internal/config"
	"github.com/rileyhilliard/pxd/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func testTTLs() TTLs {
	return TTLs{
		Default:        30 * time.Second,
		SystemOverview: 30 * time.Second,
		Target:         10 * time.Second,
		HostInfo:       60 * time.Second,
		Maintenance:    2 * time.Minute,
		Performance:    5 * time.Second,
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{KeySystemOverview, ClassSystemOverview},
		{KeyMaintenance, ClassMaintenance},
		{"target:container:214", ClassTarget},
		{"target:host", ClassTarget},
		{KeyHostInfo, ClassHostInfo},
		{KeyPerformance, ClassPerformance},
		{"overview:other", ClassDefault},
		{"", ClassDefault},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassOf(tt.key), "key %q", tt.key)
	}
}

func TestFreshness(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		delta time.Duration
		fresh bool
	}{
		{name: "overview just stored", key: KeySystemOverview, delta: 0, fresh: true},
		{name: "overview just before expiry", key: KeySystemOverview, delta: 30*time.Second - time.Nanosecond, fresh: true},
		{name: "overview at expiry", key: KeySystemOverview, delta: 30 * time.Second, fresh: false},
		{name: "overview past expiry", key: KeySystemOverview, delta: time.Minute, fresh: false},
		{name: "target uses its own duration", key: "target:vm:500", delta: 10 * time.Second, fresh: false},
		{name: "target within duration", key: "target:vm:500", delta: 9 * time.Second, fresh: true},
		{name: "maintenance outlives overview", key: KeyMaintenance, delta: 90 * time.Second, fresh: true},
		{name: "performance is short", key: KeyPerformance, delta: 5 * time.Second, fresh: false},
		{name: "unknown class uses default", key: "misc", delta: 29 * time.Second, fresh: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			c := New(testTTLs(), WithClock(clock.Now))

			c.Put(tt.key, "v")
			clock.Advance(tt.delta)

			v, ok := c.Get(tt.key)
			assert.Equal(t, tt.fresh, ok)
			if tt.fresh {
				assert.Equal(t, "v", v)
			} else {
				assert.Nil(t, v)
			}
		})
	}
}

func TestZeroDurationNeverFresh(t *testing.T) {
	c := New(TTLs{})
	c.Put("x", 1)
	_, ok := c.Get("x")
	assert.False(t, ok)
}

func TestStaleEntryStaysUntilOverwritten(t *testing.T) {
	clock := newFakeClock()
	c := New(testTTLs(), WithClock(clock.Now))

	c.Put(KeySystemOverview, "old")
	clock.Advance(time.Hour)
	_, ok := c.Get(KeySystemOverview)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Put(KeySystemOverview, "new")
	v, ok := c.Get(KeySystemOverview)
	assert.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.Len())
}

func TestInvalidate(t *testing.T) {
	c := New(testTTLs())
	c.Put(KeySystemOverview, 1)
	c.Put("target:container:214", 2)
	c.Put(KeyHostInfo, 3)

	c.Invalidate(KeySystemOverview, "target:container:214", "missing")

	_, ok := c.Get(KeySystemOverview)
	assert.False(t, ok)
	_, ok = c.Get("target:container:214")
	assert.False(t, ok)
	_, ok = c.Get(KeyHostInfo)
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	c := New(testTTLs(), WithClock(clock.Now))

	c.Put(KeyPerformance, 1) // 5s
	c.Put(KeyHostInfo, 2)    // 60s
	clock.Advance(10 * time.Second)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(KeyHostInfo)
	assert.True(t, ok)
}

func TestMaxEntries(t *testing.T) {
	t.Run("stale entries go first", func(t *testing.T) {
		clock := newFakeClock()
		c := New(testTTLs(), WithClock(clock.Now), WithMaxEntries(2))

		c.Put(KeyPerformance, 1)
		c.Put(KeyHostInfo, 2)
		clock.Advance(6 * time.Second) // performance now stale

		c.Put(KeyMaintenance, 3)
		assert.Equal(t, 2, c.Len())
		_, ok := c.Get(KeyHostInfo)
		assert.True(t, ok)
		_, ok = c.Get(KeyMaintenance)
		assert.True(t, ok)
	})

	t.Run("oldest evicted when all fresh", func(t *testing.T) {
		clock := newFakeClock()
		c := New(testTTLs(), WithClock(clock.Now), WithMaxEntries(2))

		c.Put("a", 1)
		clock.Advance(time.Second)
		c.Put("b", 2)
		clock.Advance(time.Second)
		c.Put("c", 3)

		assert.Equal(t, 2, c.Len())
		_, ok := c.Get("a")
		assert.False(t, ok)
		_, ok = c.Get("c")
		assert.True(t, ok)
	})

	t.Run("overwrite does not evict", func(t *testing.T) {
		c := New(testTTLs(), WithMaxEntries(1))
		c.Put("a", 1)
		c.Put("a", 2)
		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 2, v)
	})
}

func TestGetOrLoad(t *testing.T) {
	t.Run("loads once then serves from cache", func(t *testing.T) {
		c := New(testTTLs())
		calls := 0
		load := func(context.Context) (any, error) {
			calls++
			return "loaded", nil
		}

		for i := 0; i < 3; i++ {
			v, err := c.GetOrLoad(context.Background(), KeySystemOverview, load)
			require.NoError(t, err)
			assert.Equal(t, "loaded", v)
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		c := New(testTTLs())
		boom := errors.New("boom")
		_, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (any, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("concurrent misses share one load", func(t *testing.T) {
		c := New(testTTLs())
		var calls atomic.Int32
		release := make(chan struct{})
		started := make(chan struct{})
		var once sync.Once

		load := func(context.Context) (any, error) {
			calls.Add(1)
			once.Do(func() { close(started) })
			<-release
			return "v", nil
		}

		const n = 10
		var wg sync.WaitGroup
		results := make([]any, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := c.GetOrLoad(context.Background(), KeySystemOverview, load)
				assert.NoError(t, err)
				results[i] = v
			}(i)
		}

		<-started
		// give the other goroutines time to join the in-flight load
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		for _, r := range results {
			assert.Equal(t, "v", r)
		}
	})

	t.Run("already cancelled caller does not start a load", func(t *testing.T) {
		c := New(testTTLs())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.GetOrLoad(ctx, KeySystemOverview, func(context.Context) (any, error) {
			t.Fatal("load must not run")
			return nil, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("first caller leaving does not cancel the shared load", func(t *testing.T) {
		c := New(testTTLs())
		started := make(chan struct{})
		release := make(chan struct{})
		var loadErr atomic.Value

		load := func(ctx context.Context) (any, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				loadErr.Store(err)
			}
			return "full", nil
		}

		first, cancelFirst := context.WithCancel(context.Background())
		firstDone := make(chan error, 1)
		go func() {
			_, err := c.GetOrLoad(first, KeySystemOverview, load)
			firstDone <- err
		}()
		<-started

		secondDone := make(chan any, 1)
		go func() {
			v, err := c.GetOrLoad(context.Background(), KeySystemOverview, load)
			assert.NoError(t, err)
			secondDone <- v
		}()

		cancelFirst()
		assert.ErrorIs(t, <-firstDone, context.Canceled)

		close(release)
		assert.Equal(t, "full", <-secondDone)
		assert.Nil(t, loadErr.Load(), "load context must outlive the first caller")

		v, ok := c.Get(KeySystemOverview)
		require.True(t, ok)
		assert.Equal(t, "full", v)
	})
}

type overview struct{ Total int }

func TestLoadTyped(t *testing.T) {
	c := New(testTTLs())

	got, err := Load(context.Background(), c, KeySystemOverview, func(context.Context) (overview, error) {
		return overview{Total: 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Total)

	// served from cache
	got, err = Load(context.Background(), c, KeySystemOverview, func(context.Context) (overview, error) {
		return overview{}, errors.New("should not load")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Total)

	t.Run("wrong type reloads", func(t *testing.T) {
		c.Put("target:vm:1", "not an overview")
		got, err := Load(context.Background(), c, "target:vm:1", func(context.Context) (overview, error) {
			return overview{Total: 7}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, got.Total)
	})

	t.Run("error gives zero value", func(t *testing.T) {
		got, err := Load(context.Background(), c, "target:vm:2", func(context.Context) (overview, error) {
			return overview{Total: 9}, errors.New("down")
		})
		assert.Error(t, err)
		assert.Equal(t, overview{}, got)
	})
}

func TestConcurrentAccess(t *testing.T) {
	c := New(testTTLs(), WithMaxEntries(50))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("target:container:%d", (i*100+j)%80)
				c.Put(key, j)
				c.Get(key)
				if j%10 == 0 {
					c.Invalidate(key)
					c.Sweep()
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}

func TestStartJanitor(t *testing.T) {
	c := New(TTLs{Default: time.Millisecond})
	c.Put("a", 1)
	c.Put("b", 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartJanitor(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	clock := newFakeClock()
	c := New(testTTLs(), WithClock(clock.Now), WithMetrics(m))

	c.Put(KeySystemOverview, 1)
	c.Get(KeySystemOverview)
	c.Get(KeySystemOverview)
	c.Get(KeyHostInfo)
	clock.Advance(time.Hour)
	c.Sweep()

	expected := `
# HELP pxd_cache_requests_total Cache lookups by query class and result.
# TYPE pxd_cache_requests_total counter
pxd_cache_requests_total{class="host_info",result="miss"} 1
pxd_cache_requests_total{class="system_overview",result="hit"} 2
# HELP pxd_cache_evictions_total Entries removed by sweeps or the capacity bound.
# TYPE pxd_cache_evictions_total counter
pxd_cache_evictions_total 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"pxd_cache_requests_total", "pxd_cache_evictions_total")
	assert.NoError(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Cache
	cfg.MaxEntries = 1
	c := NewFromConfig(cfg)
	c.Put("a", 1)
	c.Put("b", 2)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, cfg.TargetTTL, c.DurationFor("target:vm:500"))
	assert.Equal(t, cfg.MaintenanceTTL, c.DurationFor(KeyMaintenance))
}
