package store

import (
	"sync/atomic"
	"time"

	"github.com/i474232898/astroforecast/internal/weather"
)

// cacheState is never mutated after it is published.
type cacheState struct {
	current     *weather.ForecastRecord
	lastFetchAt time.Time
	valid       bool
	reason      error
}

// ForecastCache is an in-memory holder for the current forecast of one
// location. Writers publish a whole new state with a single pointer swap, so
// concurrent readers see either the previous or the next complete state.
type ForecastCache struct {
	state atomic.Pointer[cacheState]
}

// NewForecastCache creates an empty, invalid cache.
func NewForecastCache() *ForecastCache {
	c := &ForecastCache{}
	c.state.Store(&cacheState{})
	return c
}

func (c *ForecastCache) load() *cacheState {
	return c.state.Load()
}

// IsStale reports whether a new fetch is needed: nothing cached, cache marked
// invalid, or refreshInterval elapsed since the last successful fetch.
func (c *ForecastCache) IsStale(now time.Time, refreshInterval time.Duration) bool {
	st := c.load()
	if st.current == nil || !st.valid {
		return true
	}
	return now.Sub(st.lastFetchAt) >= refreshInterval
}

// Replace installs rec as the current, valid forecast.
func (c *ForecastCache) Replace(rec *weather.ForecastRecord, fetchedAt time.Time) {
	c.state.Store(&cacheState{
		current:     rec,
		lastFetchAt: fetchedAt,
		valid:       true,
	})
}

// Invalidate marks the cache invalid but keeps the last record for
// diagnostics. lastFetchAt is untouched, so the next tick retries.
func (c *ForecastCache) Invalidate(reason error) {
	for {
		old := c.load()
		next := *old
		next.valid = false
		next.reason = reason
		if c.state.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Reset drops everything, as for a new location.
func (c *ForecastCache) Reset() {
	c.state.Store(&cacheState{})
}

// ReadLatest returns the last record, valid or not, or nil if none was fetched.
func (c *ForecastCache) ReadLatest() *weather.ForecastRecord {
	return c.load().current
}

// Snapshot returns a consistent copy of the cache state.
func (c *ForecastCache) Snapshot() weather.CacheSnapshot {
	st := c.load()
	return weather.CacheSnapshot{
		Current:     st.current,
		LastFetchAt: st.lastFetchAt,
		Valid:       st.valid,
		Reason:      st.reason,
	}
}

var _ weather.Cache = (*ForecastCache)(nil)
