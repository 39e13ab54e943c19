package redisbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-redis/redis/v8"
	"github.com/mitchellh/mapstructure"

	"github.com/i474232898/astroforecast/internal/weather"
)

const (
	readBlock    = 5 * time.Second
	retryBackoff = time.Second
)

// StreamReader is the subset of *redis.Client used by LocationListener.
type StreamReader interface {
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
}

// LocationSetter receives location updates.
type LocationSetter interface {
	SetLocation(loc weather.Location)
}

// locationMessage accepts both the long field names and the short LAT/LONG
// pair published by mount controllers.
type locationMessage struct {
	Latitude  *float64 `mapstructure:"latitude"`
	Longitude *float64 `mapstructure:"longitude"`
	Lat       *float64 `mapstructure:"LAT"`
	Long      *float64 `mapstructure:"LONG"`
}

func (m locationMessage) location() (weather.Location, bool) {
	lat, lon := m.Latitude, m.Longitude
	if lat == nil {
		lat = m.Lat
	}
	if lon == nil {
		lon = m.Long
	}
	if lat == nil || lon == nil {
		return weather.Location{}, false
	}
	return weather.Location{Latitude: *lat, Longitude: *lon}, true
}

// LocationListener follows a stream of location updates and applies each
// complete one to the target.
type LocationListener struct {
	client StreamReader
	stream string
	target LocationSetter
	logger *log.Logger
	lastID string
}

// NewLocationListener creates a listener that starts with messages added
// after it begins reading.
func NewLocationListener(client StreamReader, stream string, target LocationSetter, logger *log.Logger) *LocationListener {
	if logger == nil {
		logger = log.Default()
	}
	return &LocationListener{
		client: client,
		stream: stream,
		target: target,
		logger: logger.WithPrefix("redis"),
		lastID: "$",
	}
}

// Run reads until ctx is cancelled. Read errors are logged and retried.
func (l *LocationListener) Run(ctx context.Context) error {
	l.logger.Info("listening for location updates", "stream", l.stream)
	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := l.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{l.stream, l.lastID},
			Count:   10,
			Block:   readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("error reading location stream", "stream", l.stream, "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryBackoff):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				l.lastID = msg.ID
				if err := l.handle(msg); err != nil {
					l.logger.Warn("ignoring location message", "id", msg.ID, "err", err)
				}
			}
		}
	}
}

func (l *LocationListener) handle(msg redis.XMessage) error {
	var m locationMessage
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &m,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(msg.Values); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	loc, ok := m.location()
	if !ok {
		return errors.New("latitude and longitude are both required")
	}
	if err := loc.Validate(); err != nil {
		return fmt.Errorf("coordinates rejected: %w", err)
	}

	l.logger.Info("location update received", "id", msg.ID, "location", loc.Key())
	l.target.SetLocation(loc)
	return nil
}
