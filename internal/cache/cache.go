// Package cache keeps compiled SQL text keyed by plan shape. Entries hold no
// parameter values, so a hit can never leak one request's literals into
// another.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultSize is the number of plan shapes kept when none is configured
	DefaultSize = 256

	// DefaultTTL is how long an entry is served before it is recompiled
	DefaultTTL = 10 * time.Minute
)

// Stats represents cache statistics
type Stats struct {
	TotalEntries int64   `json:"total_entries"`
	HitRate      float64 `json:"hit_rate"`
	MissRate     float64 `json:"miss_rate"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
}

// PlanCache is a bounded, expiring map from plan shape to SQL text. It is
// safe for concurrent use.
type PlanCache struct {
	lru    *expirable.LRU[string, string]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewPlanCache creates a cache holding up to size shapes for ttl each.
// Non-positive values fall back to DefaultSize and DefaultTTL.
func NewPlanCache(size int, ttl time.Duration) *PlanCache {
	if size <= 0 {
		size = DefaultSize
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &PlanCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Get returns the SQL compiled for shape
func (c *PlanCache) Get(shape string) (string, bool) {
	sql, ok := c.lru.Get(shape)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}

	return sql, ok
}

// Add stores the SQL compiled for shape
func (c *PlanCache) Add(shape, sql string) {
	c.lru.Add(shape, sql)
}

// Len is the number of live entries
func (c *PlanCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry and resets the counters
func (c *PlanCache) Purge() {
	c.lru.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns a snapshot of the cache counters
func (c *PlanCache) Stats() Stats {
	stats := Stats{
		TotalEntries: int64(c.lru.Len()),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
		stats.MissRate = float64(stats.Misses) / float64(total)
	}

	return stats
}
