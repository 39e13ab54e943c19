package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/i474232898/astroforecast/internal/metrics"
)

// DefaultRefreshInterval is how long a fetched forecast stays fresh.
const DefaultRefreshInterval = 6 * time.Hour

// Fetch outcomes recorded alongside the failure kinds.
const (
	OutcomeSuccess   = "success"
	OutcomeDiscarded = "discarded"
)

// Options configures a Service.
type Options struct {
	Hours           int
	RefreshInterval time.Duration
	Mode            Mode
	Credential      string
	Location        Location
	Logger          *log.Logger
}

// Service owns the forecast cache and quota tracker for one monitored
// location and runs the refresh state machine on every tick.
type Service struct {
	client Client
	cache  Cache
	quota  *QuotaTracker
	logger *log.Logger

	hours           int
	refreshInterval time.Duration

	mu          sync.Mutex
	credential  string
	location    Location
	mode        Mode
	session     uuid.UUID
	state       State
	cause       error
	inFlight    bool
	cancelFetch context.CancelFunc
	closed      bool

	values    Values
	hasValues bool
}

// NewService creates a new Service.
func NewService(client Client, cache Cache, quota *QuotaTracker, opts Options) *Service {
	if opts.Hours <= 0 {
		opts.Hours = DefaultForecastHours
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Mode == "" {
		opts.Mode = ModeAPI
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if quota == nil {
		quota = NewQuotaTracker(DefaultQuotaLimit, 0)
	}

	s := &Service{
		client:          client,
		cache:           cache,
		quota:           quota,
		logger:          opts.Logger.WithPrefix("weather"),
		hours:           opts.Hours,
		refreshInterval: opts.RefreshInterval,
		credential:      opts.Credential,
		location:        opts.Location,
		mode:            opts.Mode,
		session:         uuid.New(),
		state:           StateIdle,
	}
	metrics.SetState(string(StateIdle))
	return s
}

// Tick runs one refresh cycle at now: fetch if the cache is stale, then map
// now onto the cached window. A tick arriving while a fetch is in flight
// changes nothing and reports Busy.
func (s *Service) Tick(ctx context.Context, now time.Time) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.inFlight {
		return s.reportLocked()
	}

	if s.mode == ModeSimulated {
		v := simulatedValues
		v.ValidAt = now.UTC()
		s.publishLocked(v)
		return s.reportLocked()
	}

	if s.credential == "" {
		s.failLocked(ErrNoCredential)
		return s.reportLocked()
	}
	if s.location.IsZero() {
		s.failLocked(ErrNoLocation)
		return s.reportLocked()
	}

	if s.cache.IsStale(now, s.refreshInterval) {
		if !s.refreshLocked(ctx, now) {
			return s.reportLocked()
		}
	}

	rec := s.cache.ReadLatest()
	hour, err := IndexFor(now, rec)
	if err != nil {
		s.failLocked(err)
		return s.reportLocked()
	}

	s.publishLocked(rec.ValuesAt(hour))
	return s.reportLocked()
}

// refreshLocked fetches and parses a replacement forecast. The lock is
// released while the request is outstanding so readers are never blocked.
// It reports whether the cache now holds a fresh record for this session.
func (s *Service) refreshLocked(ctx context.Context, now time.Time) bool {
	session := s.session
	req := FetchRequest{
		Latitude:  s.location.Latitude,
		Longitude: s.location.Longitude,
		APIKey:    s.credential,
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	s.inFlight = true
	s.cancelFetch = cancel
	s.setStateLocked(StateFetching, nil)

	fetchID := uuid.NewString()
	s.mu.Unlock()
	start := time.Now()
	res, err := s.fetch(fetchCtx, fetchID, req)
	elapsed := time.Since(start)
	s.mu.Lock()

	cancel()
	s.inFlight = false
	s.cancelFetch = nil

	if s.closed || session != s.session {
		metrics.RecordFetch(OutcomeDiscarded, elapsed)
		s.logger.Info("discarding forecast fetched for a previous session", "fetch_id", fetchID, "session", session)
		if s.closed {
			s.setStateLocked(StateIdle, nil)
		}
		return false
	}
	if err != nil {
		metrics.RecordFetch(string(KindOf(err)), elapsed)
		s.logger.Error("failed to fetch or parse forecast data", "fetch_id", fetchID, "cause", KindOf(err), "err", err)
		s.failLocked(err)
		return false
	}

	metrics.RecordFetch(OutcomeSuccess, elapsed)
	if res.Warnings != nil {
		metrics.RecordParseWarnings(res.Warnings.Len())
		for _, w := range res.Warnings.Errors {
			s.logger.Warn("forecast sample replaced", "fetch_id", fetchID, "detail", w)
		}
	}

	s.cache.Replace(res.Record, now)
	s.logger.Info("forecast refreshed",
		"hours", res.Record.Hours(),
		"window_start", res.Record.WindowStart().Format(time.RFC3339),
		"location", s.location.Key())

	if used, ok := res.Record.Usage(); ok {
		near := s.quota.Record(used)
		snap := s.quota.Snapshot()
		metrics.SetQuota(used, near)
		s.logger.Info("api credits used today", "used", used)
		if near {
			s.logger.Warn("api credits near daily limit", "used", used, "threshold", snap.WarnThreshold, "limit", snap.Limit)
		}
	}
	return true
}

// fetch performs client -> parser without touching shared state.
func (s *Service) fetch(ctx context.Context, fetchID string, req FetchRequest) (*ParseResult, error) {
	s.logger.Info("fetching new forecast data", "fetch_id", fetchID, "location", Location{Latitude: req.Latitude, Longitude: req.Longitude}.Key())
	if s.client == nil {
		return nil, fmt.Errorf("%w: no forecast client configured", ErrTransport)
	}
	payload, err := s.client.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseForecast(payload, s.hours)
}

func (s *Service) publishLocked(v Values) {
	s.values = v
	s.hasValues = true
	s.setStateLocked(StateValid, nil)

	named := make(map[string]float64, len(Parameters))
	for _, p := range Parameters {
		named[p.Name] = v.Get(p.Channel)
	}
	metrics.SetValues(v.Hour, named)
	s.logger.Debug("weather updated", "hour", v.Hour, "summary", v.Summary())
}

// failLocked moves to Alert and invalidates the cache. The last record stays
// cached for diagnostics but is no longer served.
func (s *Service) failLocked(err error) {
	s.cache.Invalidate(err)
	if s.state != StateAlert || KindOf(s.cause) != KindOf(err) {
		s.logger.Error("weather alert", "cause", KindOf(err), "err", err)
	}
	s.setStateLocked(StateAlert, err)
}

func (s *Service) setStateLocked(state State, cause error) {
	s.state = state
	s.cause = cause
	metrics.SetState(string(state))
}

// OnConfigChanged applies a new credential and location. Any change starts a
// new session: the cache is reset, frozen values are dropped, and a fetch
// still outstanding for the old session is cancelled and its result discarded.
func (s *Service) OnConfigChanged(credential string, loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if credential == s.credential && loc == s.location {
		return
	}
	s.credential = credential
	s.location = loc
	s.resetLocked()
	s.logger.Info("configuration updated", "location", loc.Key(), "credential_set", credential != "")
}

// SetCredential replaces the API credential, keeping the location.
func (s *Service) SetCredential(credential string) {
	s.mu.Lock()
	loc := s.location
	s.mu.Unlock()
	s.OnConfigChanged(credential, loc)
}

// SetLocation replaces the monitored location, keeping the credential.
func (s *Service) SetLocation(loc Location) {
	s.mu.Lock()
	credential := s.credential
	s.mu.Unlock()
	s.OnConfigChanged(credential, loc)
}

// SetMode switches between API and simulated values.
func (s *Service) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == s.mode {
		return
	}
	s.mode = mode
	s.resetLocked()
	s.logger.Info("mode updated", "mode", mode)
}

func (s *Service) resetLocked() {
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.session = uuid.New()
	s.cache.Reset()
	s.values = Values{}
	s.hasValues = false
	s.setStateLocked(StateIdle, nil)
}

// Close stops the service. A fetch still outstanding is cancelled and its
// result is never applied.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
}

// Report returns the latest consumer report without running a tick.
func (s *Service) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportLocked()
}

func (s *Service) reportLocked() Report {
	r := Report{
		Status:   s.state.Status(),
		State:    s.state,
		Mode:     s.mode,
		Location: s.location,
		Session:  s.session.String(),
		Quota:    s.quota.Snapshot(),
	}
	if s.cause != nil {
		r.Cause = KindOf(s.cause)
		r.Message = s.cause.Error()
	}
	if s.hasValues {
		v := s.values
		r.Values = &v
		r.Summary = v.Summary()
		r.Stale = s.state != StateValid
	}

	snap := s.cache.Snapshot()
	if snap.Current != nil {
		ws := snap.Current.WindowStart()
		r.WindowStart = &ws
	}
	if !snap.LastFetchAt.IsZero() {
		lf := snap.LastFetchAt
		r.LastFetchAt = &lf
	}
	return r
}

// Forecast returns the cached window, or ErrNoForecast if nothing was fetched.
func (s *Service) Forecast() (ForecastView, error) {
	snap := s.cache.Snapshot()
	if snap.Current == nil {
		return ForecastView{}, ErrNoForecast
	}

	series := make(map[Channel][]float64, len(Channels))
	for _, ch := range Channels {
		series[ch] = snap.Current.Series(ch)
	}
	return ForecastView{
		WindowStart: snap.Current.WindowStart(),
		Hours:       snap.Current.Hours(),
		Valid:       snap.Valid,
		LastFetchAt: snap.LastFetchAt,
		Series:      series,
	}, nil
}

// Quota returns the current quota snapshot.
func (s *Service) Quota() QuotaSnapshot {
	return s.quota.Snapshot()
}
