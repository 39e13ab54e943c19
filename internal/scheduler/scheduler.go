package scheduler

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron"

	"github.com/i474232898/astroforecast/internal/weather"
)

const defaultJobTimeout = 60 * time.Second

// Ticker runs one refresh cycle.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) weather.Report
}

// Sink receives the report produced by every tick.
type Sink interface {
	Publish(ctx context.Context, report weather.Report) error
}

// Scheduler periodically ticks the forecast service and fans the report out to sinks.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	ticker     Ticker
	sinks      []Sink
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
	logger     *log.Logger
}

// New creates a new Scheduler.
func New(ticker Ticker, interval time.Duration, logger *log.Logger, sinks ...Sink) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		ticker:     ticker,
		sinks:      sinks,
		interval:   interval,
		jobTimeout: defaultJobTimeout,
		now:        time.Now,
		logger:     logger.WithPrefix("scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first tick runs immediately.
func (s *Scheduler) Start() error {
	seconds := int(s.interval / time.Second)
	if seconds <= 0 {
		seconds = 1
	}

	_, err := s.scheduler.Every(seconds).Seconds().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info("starting refresh job", "interval", time.Duration(seconds)*time.Second)
	s.scheduler.StartAsync()
	return nil
}

// RunOnce ticks the service and publishes the report to every sink.
func (s *Scheduler) RunOnce(ctx context.Context) weather.Report {
	report := s.ticker.Tick(ctx, s.now())
	s.logger.Debug("tick completed", "status", report.Status, "cause", report.Cause)

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, report); err != nil {
			s.logger.Error("failed to publish report", "err", err)
		}
	}
	return report
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
