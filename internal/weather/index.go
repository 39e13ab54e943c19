package weather

import (
	"fmt"
	"time"
)

// IndexFor maps now onto an hour offset in rec's window:
// floor((now - windowStart) / 1h), valid only inside [0, Hours()).
// A record is never extrapolated past its window.
func IndexFor(now time.Time, rec *ForecastRecord) (int, error) {
	if rec == nil {
		return 0, ErrNoForecast
	}

	elapsed := now.Sub(rec.WindowStart())
	if elapsed < 0 {
		return 0, fmt.Errorf("%w: %s is before window start %s", ErrOutOfRange,
			now.UTC().Format(time.RFC3339), rec.WindowStart().Format(time.RFC3339))
	}

	hour := int(elapsed / time.Hour)
	if hour >= rec.Hours() {
		return 0, fmt.Errorf("%w: offset %d exceeds %d forecast hours", ErrOutOfRange, hour, rec.Hours())
	}
	return hour, nil
}
