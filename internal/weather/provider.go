package weather

import (
	"context"
	"time"
)

// FetchRequest is the body sent to the forecast provider.
type FetchRequest struct {
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	APIKey    string  `json:"APIKey"`
}

// Client performs one request/response exchange with the forecast provider
// and returns the raw payload. Every failure wraps ErrTransport.
type Client interface {
	Fetch(ctx context.Context, req FetchRequest) ([]byte, error)
}

// CacheSnapshot is a consistent view of the cache state.
type CacheSnapshot struct {
	Current     *ForecastRecord
	LastFetchAt time.Time
	Valid       bool
	Reason      error
}

// Cache is the contract the forecast cache must satisfy. Replace, Invalidate
// and Reset are only called by the Service; readers may call the rest at any time.
type Cache interface {
	IsStale(now time.Time, refreshInterval time.Duration) bool
	Replace(rec *ForecastRecord, fetchedAt time.Time)
	Invalidate(reason error)
	Reset()
	ReadLatest() *ForecastRecord
	Snapshot() CacheSnapshot
}
