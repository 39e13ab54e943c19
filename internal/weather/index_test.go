package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(t *testing.T, start time.Time, hours int) *ForecastRecord {
	t.Helper()
	res, err := ParseForecast(buildPayload(t, start, hours, nil), hours)
	require.NoError(t, err)
	return res.Record
}

func TestIndexFor(t *testing.T) {
	rec := testRecord(t, testStart, DefaultForecastHours)

	tests := []struct {
		name    string
		now     time.Time
		want    int
		wantErr bool
	}{
		{"window start", testStart, 0, false},
		{"last second of first hour", testStart.Add(3599 * time.Second), 0, false},
		{"just before first boundary", testStart.Add(time.Hour - time.Nanosecond), 0, false},
		{"first boundary", testStart.Add(time.Hour), 1, false},
		{"mid window", testStart.Add(40*time.Hour + 59*time.Minute), 40, false},
		{"last hour", testStart.Add(81*time.Hour + 30*time.Minute), 81, false},
		{"last second of window", testStart.Add(81*time.Hour + 3599*time.Second), 81, false},
		{"window end", testStart.Add(82 * time.Hour), 0, true},
		{"before window", testStart.Add(-time.Second), 0, true},
		{"other time zone", testStart.Add(5 * time.Hour).In(time.FixedZone("EST", -5*3600)), 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IndexFor(tt.now, rec)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutOfRange)
				assert.Equal(t, KindOutOfRange, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexForNilRecord(t *testing.T) {
	_, err := IndexFor(testStart, nil)
	assert.ErrorIs(t, err, ErrNoForecast)
}
