package weather

import (
	"errors"
)

// ErrorKind classifies every failure the refresh cycle can report.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindNoCredential     ErrorKind = "no_credential"
	KindNoLocation       ErrorKind = "no_location"
	KindTransport        ErrorKind = "transport_failure"
	KindMalformedPayload ErrorKind = "malformed_payload"
	KindBadTimestamp     ErrorKind = "bad_timestamp"
	KindMissingChannel   ErrorKind = "missing_channel"
	KindLengthMismatch   ErrorKind = "length_mismatch"
	KindOutOfRange       ErrorKind = "out_of_range"
	KindUnknown          ErrorKind = "unknown"
)

var (
	ErrNoCredential     = errors.New("api credential is not configured")
	ErrNoLocation       = errors.New("location is not configured")
	ErrTransport        = errors.New("forecast request failed")
	ErrMalformedPayload = errors.New("malformed forecast payload")
	ErrBadTimestamp     = errors.New("bad forecast start time")
	ErrMissingChannel   = errors.New("forecast channel missing")
	ErrLengthMismatch   = errors.New("forecast length mismatch")
	ErrOutOfRange       = errors.New("current time outside forecast window")

	// ErrNoForecast is returned by readers when nothing has been cached yet.
	ErrNoForecast = errors.New("no forecast cached")
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNoCredential, KindNoCredential},
	{ErrNoLocation, KindNoLocation},
	{ErrTransport, KindTransport},
	{ErrMalformedPayload, KindMalformedPayload},
	{ErrBadTimestamp, KindBadTimestamp},
	{ErrMissingChannel, KindMissingChannel},
	{ErrLengthMismatch, KindLengthMismatch},
	{ErrOutOfRange, KindOutOfRange},
}

// KindOf maps an error returned by this package (possibly wrapped) to its kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}
