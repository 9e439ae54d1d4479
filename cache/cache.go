// Package cache is the shared in-memory cache for query results served by
// the API. Entries expire after a TTL; expired entries are swept
// opportunistically on writes rather than by a timer.
package cache

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultSweepChance = 0.01
	LoadTimeout        = 30 * time.Second
)

type entry[V any] struct {
	value   V
	expires time.Time
}

type settings struct {
	sweepChance float64
	now         func() time.Time
	random      func() float64
	observe     bool
}

// Option customizes a QueryCache
type Option func(*settings)

// WithSweepChance sets the probability that a Set sweeps expired entries
func WithSweepChance(p float64) Option {
	return func(s *settings) { s.sweepChance = p }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithRandom replaces the sweep dice
func WithRandom(random func() float64) Option {
	return func(s *settings) { s.random = random }
}

// WithMetrics reports hits, misses and size to Prometheus
func WithMetrics() Option {
	return func(s *settings) { s.observe = true }
}

// QueryCache maps string keys to values of type V for a fixed TTL. It is safe
// for concurrent use; concurrent loads of one key run the loader once.
type QueryCache[V any] struct {
	mu    sync.Mutex
	items map[string]entry[V]
	ttl   time.Duration
	cfg   settings
	group singleflight.Group
}

// New creates a cache whose entries live for ttl
func New[V any](ttl time.Duration, opts ...Option) *QueryCache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cfg := settings{
		sweepChance: DefaultSweepChance,
		now:         time.Now,
		random:      rand.Float64,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &QueryCache[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		cfg:   cfg,
	}
}

// Get returns the live value for key
func (c *QueryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || !c.cfg.now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key and, with the configured probability, drops
// every expired entry.
func (c *QueryCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.now()
	c.items[key] = entry[V]{value: value, expires: now.Add(c.ttl)}

	if c.cfg.random() < c.cfg.sweepChance {
		for k, e := range c.items {
			if !now.Before(e.expires) {
				delete(c.items, k)
			}
		}
	}
	if c.cfg.observe {
		metrics.QueryCacheEntries.Set(float64(len(c.items)))
	}
}

// Len counts stored entries, expired ones included until swept
func (c *QueryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// GetOrLoad returns the cached value for key or calls load once for all
// concurrent callers and caches its result. Errors are not cached.
// The shared load ignores the cancellation of whichever caller started it and
// is bounded by LoadTimeout; each caller stops waiting when its own ctx ends.
func (c *QueryCache[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		c.observe("hit")
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()

		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.observe("shared")
		} else {
			c.observe("miss")
		}
		v, _ := res.Val.(V)
		return v, res.Err
	}
}

func (c *QueryCache[V]) observe(result string) {
	if c.cfg.observe {
		metrics.QueryCacheResults.WithLabelValues(result).Inc()
	}
}

// filterKey fixes the field order of cache keys
type filterKey struct {
	MonthsToShow int    `json:"monthsToShow"`
	ATCClass     string `json:"atcClass"`
	Molecule     string `json:"molecule"`
	SearchTerm   string `json:"searchTerm"`
	VaccinesOnly bool   `json:"vaccinesOnly"`
}

// FilterKey is the cache key of an incidents request
func FilterKey(f entities.FilterState) string {
	b, _ := json.Marshal(filterKey{
		MonthsToShow: f.MonthsToShow,
		ATCClass:     f.ATCClass,
		Molecule:     f.MoleculeID,
		SearchTerm:   f.SearchTerm,
		VaccinesOnly: f.VaccinesOnly,
	})
	return string(b)
}
