package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Forecast refresh metrics
var (
	// FetchTotal counts refresh attempts by outcome: "success", "discarded" for
	// results dropped after a session change, or a failure kind.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astroforecast_fetch_total",
			Help: "Total number of forecast fetch attempts",
		},
		[]string{"outcome"},
	)

	// FetchDuration tracks how long a fetch+parse takes.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astroforecast_fetch_duration_seconds",
			Help:    "Duration of forecast fetch and parse in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ParseWarningsTotal counts samples substituted during parsing.
	ParseWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "astroforecast_parse_warnings_total",
			Help: "Total number of forecast samples replaced with a default while parsing",
		},
	)

	// SchedulerState is 1 for the current refresh state and 0 otherwise.
	SchedulerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "astroforecast_scheduler_state",
			Help: "Current refresh state (1 = active)",
		},
		[]string{"state"},
	)

	// HourOffset is the current position in the cached forecast window.
	HourOffset = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "astroforecast_hour_offset",
			Help: "Hour offset of the reported values within the forecast window",
		},
	)

	// Parameter holds the last reported value of each weather parameter.
	Parameter = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "astroforecast_parameter",
			Help: "Last reported weather parameter value",
		},
		[]string{"name"},
	)
)

// Quota metrics
var (
	// CreditsUsed mirrors the provider-reported daily credit counter.
	CreditsUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "astroforecast_api_credits_used",
			Help: "API credits used today as reported by the provider",
		},
	)

	// CreditsNearLimit is 1 when usage is at or above the warning threshold.
	CreditsNearLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "astroforecast_api_credits_near_limit",
			Help: "Whether API credit usage reached the warning threshold (1 = yes)",
		},
	)
)

var states = []string{"idle", "fetching", "valid", "alert"}

// RecordFetch records one fetch attempt.
func RecordFetch(outcome string, duration time.Duration) {
	FetchTotal.WithLabelValues(outcome).Inc()
	FetchDuration.Observe(duration.Seconds())
}

// RecordParseWarnings adds n substituted samples.
func RecordParseWarnings(n int) {
	if n > 0 {
		ParseWarningsTotal.Add(float64(n))
	}
}

// SetState marks state as the active refresh state.
func SetState(state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		SchedulerState.WithLabelValues(s).Set(v)
	}
}

// SetValues publishes the reported hour offset and parameter values.
func SetValues(hour int, values map[string]float64) {
	HourOffset.Set(float64(hour))
	for name, v := range values {
		Parameter.WithLabelValues(name).Set(v)
	}
}

// SetQuota publishes the quota counters.
func SetQuota(used int, nearLimit bool) {
	CreditsUsed.Set(float64(used))
	if nearLimit {
		CreditsNearLimit.Set(1)
	} else {
		CreditsNearLimit.Set(0)
	}
}
