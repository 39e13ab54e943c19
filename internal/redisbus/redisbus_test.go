package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/astroforecast/internal/weather"
)

type fakeAdder struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeAdder) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func TestPublisherPublish(t *testing.T) {
	adder := &fakeAdder{}
	p := NewPublisher(adder, "astroforecast_values", log.New(io.Discard))

	report := weather.Report{
		Status:  weather.StatusOK,
		State:   weather.StateValid,
		Summary: "Cloud: 50.00%",
	}
	require.NoError(t, p.Publish(context.Background(), report))
	require.Len(t, adder.args, 1)

	args := adder.args[0]
	assert.Equal(t, "astroforecast_values", args.Stream)
	assert.EqualValues(t, streamMaxLen, args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", values["status"])
	assert.Equal(t, "Cloud: 50.00%", values["summary"])

	var decoded weather.Report
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, weather.StateValid, decoded.State)
}

func TestPublisherError(t *testing.T) {
	p := NewPublisher(&fakeAdder{err: errors.New("connection refused")}, "s", log.New(io.Discard))
	err := p.Publish(context.Background(), weather.Report{})
	assert.ErrorContains(t, err, "connection refused")
}

type recordingSetter struct {
	mu   sync.Mutex
	locs []weather.Location
}

func (r *recordingSetter) SetLocation(loc weather.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locs = append(r.locs, loc)
}

func TestListenerHandle(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		want    weather.Location
		wantErr bool
	}{
		{
			name:   "long names",
			values: map[string]interface{}{"latitude": "32.2", "longitude": "-110.9"},
			want:   weather.Location{Latitude: 32.2, Longitude: -110.9},
		},
		{
			name:   "short names",
			values: map[string]interface{}{"LAT": "45", "LONG": "286.5"},
			want:   weather.Location{Latitude: 45, Longitude: 286.5},
		},
		{
			name:    "longitude only",
			values:  map[string]interface{}{"LONG": "10"},
			wantErr: true,
		},
		{
			name:    "not a number",
			values:  map[string]interface{}{"LAT": "north", "LONG": "10"},
			wantErr: true,
		},
		{
			name:    "out of range",
			values:  map[string]interface{}{"LAT": "95", "LONG": "10"},
			wantErr: true,
		},
		{
			name:    "nan latitude",
			values:  map[string]interface{}{"LAT": "NaN", "LONG": "10"},
			wantErr: true,
		},
		{
			name:    "infinite longitude",
			values:  map[string]interface{}{"latitude": "10", "longitude": "Inf"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &recordingSetter{}
			l := NewLocationListener(nil, "loc", target, log.New(io.Discard))

			err := l.handle(redis.XMessage{ID: "1-0", Values: tt.values})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, target.locs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []weather.Location{tt.want}, target.locs)
		})
	}
}

type fakeReader struct {
	calls   int
	lastIDs []string
	cancel  context.CancelFunc
}

func (f *fakeReader) XRead(_ context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd {
	f.calls++
	f.lastIDs = append(f.lastIDs, a.Streams[1])
	switch f.calls {
	case 1:
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	case 2:
		return redis.NewXStreamSliceCmdResult([]redis.XStream{{
			Stream: a.Streams[0],
			Messages: []redis.XMessage{
				{ID: "5-0", Values: map[string]interface{}{"LAT": "10"}},
				{ID: "6-0", Values: map[string]interface{}{"LAT": "10", "LONG": "20"}},
			},
		}}, nil)
	default:
		f.cancel()
		return redis.NewXStreamSliceCmdResult(nil, context.Canceled)
	}
}

func TestListenerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel}
	target := &recordingSetter{}
	l := NewLocationListener(reader, "loc", target, log.New(io.Discard))

	require.NoError(t, l.Run(ctx))

	assert.Equal(t, []string{"$", "$", "6-0"}, reader.lastIDs)
	assert.Equal(t, []weather.Location{{Latitude: 10, Longitude: 20}}, target.locs)
}
