package weather

import (
	"time"
)

// State is the refresh state machine position.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateValid    State = "valid"
	StateAlert    State = "alert"
)

// Status is the consumer-facing signal derived from State.
type Status string

const (
	StatusOK    Status = "ok"
	StatusBusy  Status = "busy"
	StatusAlert Status = "alert"
	StatusIdle  Status = "idle"
)

// Status maps a state onto the consumer status signal.
func (s State) Status() Status {
	switch s {
	case StateFetching:
		return StatusBusy
	case StateValid:
		return StatusOK
	case StateAlert:
		return StatusAlert
	default:
		return StatusIdle
	}
}

// Report is what a consumer reads after each tick. Values holds the last
// successfully indexed values; when Stale is true they are frozen and must not
// be treated as current.
type Report struct {
	Status   Status    `json:"status"`
	State    State     `json:"state"`
	Mode     Mode      `json:"mode"`
	Cause    ErrorKind `json:"cause,omitempty"`
	Message  string    `json:"message,omitempty"`
	Location Location  `json:"location"`
	Session  string    `json:"session"`

	Values  *Values `json:"values,omitempty"`
	Stale   bool    `json:"stale"`
	Summary string  `json:"summary,omitempty"`

	WindowStart *time.Time    `json:"windowStart,omitempty"`
	LastFetchAt *time.Time    `json:"lastFetchAt,omitempty"`
	Quota       QuotaSnapshot `json:"quota"`
}

// ForecastView exposes the whole cached window.
type ForecastView struct {
	WindowStart time.Time             `json:"windowStart"`
	Hours       int                   `json:"hours"`
	Valid       bool                  `json:"valid"`
	LastFetchAt time.Time             `json:"lastFetchAt"`
	Series      map[Channel][]float64 `json:"series"`
}
