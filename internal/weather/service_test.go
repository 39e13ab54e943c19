package weather_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/astroforecast/internal/metrics"
	"github.com/i474232898/astroforecast/internal/store"
	"github.com/i474232898/astroforecast/internal/weather"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   int
	reqs    []weather.FetchRequest
	payload []byte
	err     error

	// started receives once per call when set; block holds the call until closed.
	started chan struct{}
	block   chan struct{}
}

func (f *fakeClient) Fetch(ctx context.Context, req weather.FetchRequest) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.reqs = append(f.reqs, req)
	payload, err, started, block := f.payload, f.err, f.started, f.block
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", weather.ErrTransport, ctx.Err())
		}
	}
	return payload, err
}

func (f *fakeClient) set(payload []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payload, f.err = payload, err
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var site = weather.Location{Latitude: 45.5, Longitude: 286.4}

func newService(t *testing.T, client weather.Client, opts weather.Options) *weather.Service {
	t.Helper()
	opts.Logger = log.New(io.Discard)
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = 6 * time.Hour
	}
	return weather.NewService(client, store.NewForecastCache(), weather.NewQuotaTracker(100, 90), opts)
}

func validPayload(t *testing.T) []byte {
	return weather.BuildPayload(t, weather.FixtureStart, weather.DefaultForecastHours, func(doc map[string]interface{}) {
		doc["APICreditUsedToday"] = 95
	})
}

func TestTickWithoutCredentialDoesNotFetch(t *testing.T) {
	client := &fakeClient{}
	svc := newService(t, client, weather.Options{Location: site})

	r := svc.Tick(context.Background(), weather.FixtureStart)

	assert.Equal(t, weather.StatusAlert, r.Status)
	assert.Equal(t, weather.KindNoCredential, r.Cause)
	assert.Nil(t, r.Values)
	assert.Zero(t, client.callCount())
}

func TestTickWithoutLocationDoesNotFetch(t *testing.T) {
	client := &fakeClient{}
	svc := newService(t, client, weather.Options{Credential: "key"})

	r := svc.Tick(context.Background(), weather.FixtureStart)

	assert.Equal(t, weather.StatusAlert, r.Status)
	assert.Equal(t, weather.KindNoLocation, r.Cause)
	assert.Zero(t, client.callCount())
}

func TestTickFetchesAndIndexes(t *testing.T) {
	client := &fakeClient{payload: validPayload(t)}
	svc := newService(t, client, weather.Options{Credential: "key", Location: site})

	now := weather.FixtureStart.Add(90 * time.Minute)
	r := svc.Tick(context.Background(), now)

	require.Equal(t, weather.StatusOK, r.Status, r.Message)
	require.NotNil(t, r.Values)
	assert.Equal(t, 1, r.Values.Hour)
	assert.InDelta(t, 1, r.Values.CloudCover, 1e-9)
	assert.InDelta(t, 281-273.15, r.Values.Temperature, 1e-9)
	assert.InDelta(t, 6*3.6, r.Values.WindSpeed, 1e-9)
	assert.False(t, r.Stale)
	assert.Equal(t, r.Values.Summary(), r.Summary)
	require.NotNil(t, r.WindowStart)
	assert.Equal(t, weather.FixtureStart, *r.WindowStart)
	require.NotNil(t, r.LastFetchAt)
	assert.Equal(t, now, *r.LastFetchAt)

	assert.Equal(t, 95, r.Quota.UsedToday)
	assert.True(t, r.Quota.NearLimit)

	require.Len(t, client.reqs, 1)
	assert.Equal(t, weather.FetchRequest{Latitude: 45.5, Longitude: 286.4, APIKey: "key"}, client.reqs[0])
}

func TestTickServesFromCacheUntilStale(t *testing.T) {
	client := &fakeClient{payload: validPayload(t)}
	svc := newService(t, client, weather.Options{Credential: "key", Location: site, RefreshInterval: 6 * time.Hour})

	start := weather.FixtureStart
	svc.Tick(context.Background(), start)
	r := svc.Tick(context.Background(), start.Add(5*time.Hour))
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, 5, r.Values.Hour)

	r = svc.Tick(context.Background(), start.Add(6*time.Hour))
	assert.Equal(t, 2, client.callCount())
	assert.Equal(t, weather.StatusOK, r.Status)
	assert.Equal(t, 6, r.Values.Hour)
}

func TestTransportFailureKeepsRecordButFreezesValues(t *testing.T) {
	client := &fakeClient{payload: validPayload(t)}
	svc := newService(t, client, weather.Options{Credential: "key", Location: site})

	start := weather.FixtureStart
	first := svc.Tick(context.Background(), start.Add(2*time.Hour))
	require.Equal(t, weather.StatusOK, first.Status)

	client.set(nil, fmt.Errorf("%w: connection refused", weather.ErrTransport))
	r := svc.Tick(context.Background(), start.Add(8*time.Hour))

	assert.Equal(t, weather.StatusAlert, r.Status)
	assert.Equal(t, weather.KindTransport, r.Cause)
	require.NotNil(t, r.Values)
	assert.True(t, r.Stale)
	assert.Equal(t, first.Values.Hour, r.Values.Hour)

	view, err := svc.Forecast()
	require.NoError(t, err)
	assert.False(t, view.Valid)
	assert.Equal(t, weather.FixtureStart, view.WindowStart)

	// The invalid cache is refetched on the next tick regardless of age.
	client.set(validPayload(t), nil)
	r = svc.Tick(context.Background(), start.Add(8*time.Hour+time.Minute))
	assert.Equal(t, weather.StatusOK, r.Status)
	assert.Equal(t, 8, r.Values.Hour)
	assert.Equal(t, 3, client.callCount())
}

func TestParseFailureAlerts(t *testing.T) {
	short := weather.BuildPayload(t, weather.FixtureStart, 10, nil)
	client := &fakeClient{payload: short}
	svc := newService(t, client, weather.Options{Credential: "key", Location: site})

	r := svc.Tick(context.Background(), weather.FixtureStart)
	assert.Equal(t, weather.StatusAlert, r.Status)
	assert.Equal(t, weather.KindLengthMismatch, r.Cause)

	_, err := svc.Forecast()
	assert.ErrorIs(t, err, weather.ErrNoForecast)
}

func TestOutOfRangeInvalidatesCache(t *testing.T) {
	client := &fakeClient{payload: validPayload(t)}
	svc := newService(t, client, weather.Options{Credential: "key", Location: site, RefreshInterval: 200 * time.Hour})

	end := weather.FixtureStart.Add(82 * time.Hour)
	r := svc.Tick(context.Background(), end)
	assert.Equal(t, weather.StatusAlert, r.Status)
	assert.Equal(t, weather.KindOutOfRange, r.Cause)
	assert.Nil(t, r.Values)

	r = svc.Tick(context.Background(), end)
	assert.Equal(t, 2, client.callCount())
	assert.Equal(t, weather.KindOutOfRange, r.Cause)

	r = svc.Tick(context.Background(), weather.FixtureStart.Add(-time.Minute))
	assert.Equal(t, weather.KindOutOfRange, r.Cause)
}

func TestTickDuringFetchIsNoop(t *testing.T) {
	client := &fakeClient{
		payload: validPayload(t),
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	svc := newService(t, client, weather.Options{Credential: "key", Location: site})

	done := make(chan weather.Report, 1)
	go func() { done <- svc.Tick(context.Background(), weather.FixtureStart) }()
	<-client.started

	busy := svc.Tick(context.Background(), weather.FixtureStart)
	assert.Equal(t, weather.StatusBusy, busy.Status)
	assert.Equal(t, weather.StateFetching, busy.State)
	assert.Equal(t, 1, client.callCount())

	close(client.block)
	r := <-done
	assert.Equal(t, weather.StatusOK, r.Status)
	assert.Equal(t, 1, client.callCount())
}

func TestLocationChangeDiscardsOutstandingFetch(t *testing.T) {
	client := &fakeClient{
		payload: validPayload(t),
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	svc := newService(t, client, weather.Options{Credential: "key", Location: site})
	before := svc.Report().Session
	discarded := testutil.ToFloat64(metrics.FetchTotal.WithLabelValues(weather.OutcomeDiscarded))
	failed := testutil.ToFloat64(metrics.FetchTotal.WithLabelValues(string(weather.KindTransport)))

	done := make(chan weather.Report, 1)
	go func() { done <- svc.Tick(context.Background(), weather.FixtureStart) }()
	<-client.started

	moved := weather.Location{Latitude: -33.9, Longitude: 18.4}
	svc.SetLocation(moved)

	r := <-done
	assert.Equal(t, weather.StatusIdle, r.Status)
	assert.Nil(t, r.Values)
	assert.Equal(t, moved, r.Location)
	assert.NotEqual(t, before, r.Session)

	// The cancelled fetch is counted as discarded, not as a provider failure.
	assert.Equal(t, discarded+1, testutil.ToFloat64(metrics.FetchTotal.WithLabelValues(weather.OutcomeDiscarded)))
	assert.Equal(t, failed, testutil.ToFloat64(metrics.FetchTotal.WithLabelValues(string(weather.KindTransport))))

	_, err := svc.Forecast()
	assert.ErrorIs(t, err, weather.ErrNoForecast)

	// The next tick fetches for the new location.
	client.mu.Lock()
	client.started, client.block = nil, nil
	client.mu.Unlock()
	r = svc.Tick(context.Background(), weather.FixtureStart)
	assert.Equal(t, weather.StatusOK, r.Status)
	assert.Equal(t, moved.Latitude, client.reqs[1].Latitude)
}

func TestCloseDiscardsOutstandingFetch(t *testing.T) {
	client := &fakeClient{
		payload: validPayload(t),
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	svc := newService(t, client, weather.Options{Credential: "key", Location: site})

	done := make(chan weather.Report, 1)
	go func() { done <- svc.Tick(context.Background(), weather.FixtureStart) }()
	<-client.started

	svc.Close()
	r := <-done
	assert.Nil(t, r.Values)
	assert.Equal(t, weather.StatusIdle, r.Status)

	_, err := svc.Forecast()
	assert.ErrorIs(t, err, weather.ErrNoForecast)

	r = svc.Tick(context.Background(), weather.FixtureStart)
	assert.Nil(t, r.Values)
	assert.Equal(t, 1, client.callCount())
}

func TestOnConfigChangedSameValuesKeepsCache(t *testing.T) {
	client := &fakeClient{payload: validPayload(t)}
	svc := newService(t, client, weather.Options{Credential: "key", Location: site})

	svc.Tick(context.Background(), weather.FixtureStart)
	session := svc.Report().Session

	svc.OnConfigChanged("key", site)
	assert.Equal(t, session, svc.Report().Session)

	svc.SetCredential("other")
	r := svc.Report()
	assert.NotEqual(t, session, r.Session)
	assert.Equal(t, weather.StatusIdle, r.Status)
	_, err := svc.Forecast()
	assert.ErrorIs(t, err, weather.ErrNoForecast)
}

func TestSimulatedModeSkipsProvider(t *testing.T) {
	client := &fakeClient{err: errors.New("must not be called")}
	svc := newService(t, client, weather.Options{Mode: weather.ModeSimulated})

	now := time.Date(2024, 6, 1, 22, 15, 0, 0, time.UTC)
	r := svc.Tick(context.Background(), now)

	assert.Equal(t, weather.StatusOK, r.Status)
	require.NotNil(t, r.Values)
	assert.Equal(t, 50.0, r.Values.CloudCover)
	assert.Equal(t, 2.5, r.Values.Seeing)
	assert.Equal(t, now, r.Values.ValidAt)
	assert.Zero(t, client.callCount())

	svc.SetMode(weather.ModeAPI)
	r = svc.Tick(context.Background(), now)
	assert.Equal(t, weather.KindNoCredential, r.Cause)
	assert.Nil(t, r.Values)
}
