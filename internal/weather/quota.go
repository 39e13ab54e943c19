package weather

import (
	"sync"
)

// DefaultQuotaLimit is the daily credit allowance assumed when none is configured.
const DefaultQuotaLimit = 100

// QuotaSnapshot is a point-in-time view of the provider's daily credit usage.
type QuotaSnapshot struct {
	UsedToday     int  `json:"usedToday"`
	Limit         int  `json:"limit"`
	WarnThreshold int  `json:"warnThreshold"`
	Reported      bool `json:"reported"`
	NearLimit     bool `json:"nearLimit"`
}

// Remaining returns the credits left before Limit, never negative.
func (q QuotaSnapshot) Remaining() int {
	r := q.Limit - q.UsedToday
	if r < 0 {
		return 0
	}
	return r
}

// QuotaTracker mirrors the provider's daily usage counter. The provider owns
// the counter and its day rollover; the tracker never resets or decrements it
// and never blocks a fetch.
type QuotaTracker struct {
	mu            sync.RWMutex
	usedToday     int
	reported      bool
	limit         int
	warnThreshold int
}

// NewQuotaTracker creates a tracker. A non-positive warnThreshold defaults to
// 90% of limit.
func NewQuotaTracker(limit, warnThreshold int) *QuotaTracker {
	if warnThreshold <= 0 {
		warnThreshold = limit * 9 / 10
	}
	return &QuotaTracker{limit: limit, warnThreshold: warnThreshold}
}

// Record stores the latest provider-reported count and reports whether it is
// at or above the warning threshold.
func (q *QuotaTracker) Record(usedToday int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.usedToday = usedToday
	q.reported = true
	return q.nearLimitLocked()
}

// IsNearLimit reports usedToday >= warnThreshold.
func (q *QuotaTracker) IsNearLimit() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.nearLimitLocked()
}

func (q *QuotaTracker) nearLimitLocked() bool {
	return q.reported && q.usedToday >= q.warnThreshold
}

// Snapshot returns the current counters.
func (q *QuotaTracker) Snapshot() QuotaSnapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return QuotaSnapshot{
		UsedToday:     q.usedToday,
		Limit:         q.limit,
		WarnThreshold: q.warnThreshold,
		Reported:      q.reported,
		NearLimit:     q.nearLimitLocked(),
	}
}
