package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-redis/redis/v8"

	"github.com/i474232898/astroforecast/internal/config"
	"github.com/i474232898/astroforecast/internal/geo"
	"github.com/i474232898/astroforecast/internal/store"
	"github.com/i474232898/astroforecast/internal/weather"
	"github.com/i474232898/astroforecast/internal/weather/providers"
)

const geocodeTimeout = 10 * time.Second

// components are the long-lived pieces shared by the subcommands.
type components struct {
	cfg      *config.AppConfig
	service  *weather.Service
	resolver *geo.Resolver
	redis    *redis.Client
}

func build(ctx context.Context, cfg *config.AppConfig, logger *log.Logger) *components {
	httpClient := providers.NewHTTPClient(providers.TimeoutConfig{
		Connect: cfg.ConnectTimeout,
		Read:    cfg.ReadTimeout,
	})
	provider := providers.NewAstrosphericProvider(httpClient, cfg.APIEndpoint, uint32(cfg.BreakerMaxFailures))

	var resolver *geo.Resolver
	if cfg.GeocoderAPIKey != "" {
		resolver = geo.NewResolver(cfg.GeocoderAPIKey)
	}

	loc := cfg.Location
	if loc.IsZero() && cfg.LocationAddress != "" {
		loc = resolveStartupLocation(ctx, resolver, cfg.LocationAddress, logger)
	}

	service := weather.NewService(
		provider,
		store.NewForecastCache(),
		weather.NewQuotaTracker(cfg.QuotaLimit, cfg.QuotaWarnThreshold),
		weather.Options{
			Hours:           cfg.ForecastHours,
			RefreshInterval: cfg.RefreshInterval,
			Mode:            cfg.Mode,
			Credential:      cfg.APIKey,
			Location:        loc,
			Logger:          logger,
		},
	)

	c := &components{cfg: cfg, service: service, resolver: resolver}
	if cfg.Redis.Enabled() {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return c
}

// resolveStartupLocation geocodes the configured address. On failure the
// location stays unset and ticks report no_location until one arrives.
func resolveStartupLocation(ctx context.Context, resolver *geo.Resolver, address string, logger *log.Logger) weather.Location {
	if resolver == nil {
		logger.Warn("location address set without a geocoder key; ignoring", "address", address)
		return weather.Location{}
	}

	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	loc, err := resolver.Resolve(ctx, address)
	if err != nil {
		logger.Error("failed to geocode location address", "address", address, "err", err)
		return weather.Location{}
	}
	logger.Info("resolved location address", "address", address, "location", loc.Key())
	return loc
}

func (c *components) Close() {
	c.service.Close()
	if c.redis != nil {
		_ = c.redis.Close()
	}
}
