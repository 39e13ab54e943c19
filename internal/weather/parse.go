package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// startTimeLayout is the provider's UTCStartTime format.
const startTimeLayout = "2006-01-02T15:04:05Z"

const kelvinOffset = 273.15

// channelField binds a channel to its payload key and unit conversion.
type channelField struct {
	channel Channel
	key     string
	convert func(float64) float64
}

func kelvinToCelsius(v float64) float64 { return v - kelvinOffset }
func msToKph(v float64) float64         { return v * 3.6 }

var channelFields = []channelField{
	{ChannelCloudCover, "RDPS_CloudCover", nil},
	{ChannelTemperature, "RDPS_Temperature", kelvinToCelsius},
	{ChannelWindSpeed, "RDPS_WindVelocity", msToKph},
	{ChannelDewPoint, "RDPS_DewPoint", kelvinToCelsius},
	{ChannelWindDirection, "RDPS_WindDirection", nil},
	{ChannelSeeing, "Astrospheric_Seeing", nil},
	{ChannelTransparency, "Astrospheric_Transparency", nil},
}

// ParseResult is a validated record plus the non-fatal sample anomalies
// found while building it.
type ParseResult struct {
	Record   *ForecastRecord
	Warnings *multierror.Error
}

// sampleEntry is one hourly element of a channel array.
type sampleEntry struct {
	Value *struct {
		ActualValue *float64 `json:"ActualValue"`
	} `json:"Value"`
}

// ParseForecast validates a raw provider payload into a ForecastRecord with
// exactly hours samples per channel. Structural problems abort the parse;
// an unreadable sample inside a channel is stored as 0 and reported as a warning.
func ParseForecast(payload []byte, hours int) (*ParseResult, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedPayload)
	}

	windowStart, err := parseStartTime(doc["UTCStartTime"])
	if err != nil {
		return nil, err
	}

	var warnings *multierror.Error

	used, usageOK, err := parseUsage(doc["APICreditUsedToday"])
	if err != nil {
		warnings = multierror.Append(warnings, err)
	}

	series := make(map[Channel][]float64, len(channelFields))
	for _, f := range channelFields {
		raw, ok := doc[f.key]
		if !ok || isNull(raw) {
			return nil, fmt.Errorf("%w: %s", ErrMissingChannel, f.key)
		}

		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("%w: %s is not an array", ErrMissingChannel, f.key)
		}

		samples := make([]float64, len(entries))
		for i, entry := range entries {
			v, ok := decodeSample(entry)
			if !ok {
				warnings = multierror.Append(warnings, fmt.Errorf("%s[%d]: missing or non-numeric sample, using 0", f.key, i))
				continue
			}
			if f.convert != nil {
				v = f.convert(v)
			}
			samples[i] = v
		}
		series[f.channel] = samples
	}

	for _, f := range channelFields {
		if n := len(series[f.channel]); n != hours {
			return nil, fmt.Errorf("%w: %s has %d hours, want %d", ErrLengthMismatch, f.key, n, hours)
		}
	}

	rec, err := NewForecastRecord(windowStart, hours, series)
	if err != nil {
		return nil, err
	}
	if usageOK {
		rec = rec.withUsage(used)
	}

	return &ParseResult{Record: rec, Warnings: warnings}, nil
}

func parseStartTime(raw json.RawMessage) (time.Time, error) {
	if raw == nil {
		return time.Time{}, fmt.Errorf("%w: UTCStartTime missing", ErrBadTimestamp)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("%w: UTCStartTime is not a string", ErrBadTimestamp)
	}
	ts, err := time.ParseInLocation(startTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	return ts, nil
}

// parseUsage reads the optional daily credit counter. Absence is not an
// error; an unreadable value is returned as a warning.
func parseUsage(raw json.RawMessage) (int, bool, error) {
	if raw == nil || isNull(raw) {
		return 0, false, nil
	}
	var used int
	if err := json.Unmarshal(raw, &used); err != nil {
		return 0, false, fmt.Errorf("APICreditUsedToday: ignoring unreadable value %s", bytes.TrimSpace(raw))
	}
	return used, true, nil
}

func decodeSample(raw json.RawMessage) (float64, bool) {
	var e sampleEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return 0, false
	}
	if e.Value == nil || e.Value.ActualValue == nil {
		return 0, false
	}
	return *e.Value.ActualValue, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
