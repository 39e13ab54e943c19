package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/astroforecast/internal/weather"
)

const (
	defaultEndpoint = "https://astrosphericpublicaccess.azurewebsites.net/api/GetForecastData_V1"

	// MaxTickInterval bounds the tick period, matching the host's refresh property range.
	MaxTickInterval = time.Hour
	minTickInterval = time.Second
)

type AppConfig struct {
	APIKey      string
	APIEndpoint string

	// Location is zero until configured; LocationAddress may be geocoded instead.
	Location        weather.Location
	LocationAddress string
	GeocoderAPIKey  string

	Mode weather.Mode

	// RefreshInterval is how long a fetched forecast stays fresh, clamped to MaxRefreshInterval.
	RefreshInterval    time.Duration
	MaxRefreshInterval time.Duration

	// TickInterval is how often the scheduler runs a refresh cycle.
	TickInterval time.Duration

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	ForecastHours      int
	QuotaLimit         int
	QuotaWarnThreshold int
	BreakerMaxFailures int

	Redis RedisConfig

	Port string
}

// RedisConfig enables the Redis bridges when Addr is set.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	ValuesStream   string
	LocationStream string
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Default returns the configuration used when nothing overrides it.
func Default() *AppConfig {
	return &AppConfig{
		APIEndpoint:        defaultEndpoint,
		Mode:               weather.ModeAPI,
		RefreshInterval:    weather.DefaultRefreshInterval,
		MaxRefreshInterval: 24 * time.Hour,
		TickInterval:       30 * time.Minute,
		ConnectTimeout:     5 * time.Second,
		ReadTimeout:        15 * time.Second,
		ForecastHours:      weather.DefaultForecastHours,
		QuotaLimit:         weather.DefaultQuotaLimit,
		QuotaWarnThreshold: 90,
		BreakerMaxFailures: 5,
		Redis: RedisConfig{
			ValuesStream: "astroforecast_values",
		},
		Port: "8080",
	}
}

// Load reads configuration from .env, an optional YAML file, and the
// environment, in increasing order of precedence. All invalid values are
// reported together.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", "err", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	var errs *multierror.Error
	env := envReader{errs: &errs}

	cfg.APIKey = env.String("ASTROSPHERIC_API_KEY", cfg.APIKey)
	cfg.APIEndpoint = env.String("ASTROSPHERIC_ENDPOINT", cfg.APIEndpoint)
	cfg.Location.Latitude = env.Float("LOCATION_LATITUDE", cfg.Location.Latitude)
	cfg.Location.Longitude = env.Float("LOCATION_LONGITUDE", cfg.Location.Longitude)
	cfg.LocationAddress = env.String("LOCATION_ADDRESS", cfg.LocationAddress)
	cfg.GeocoderAPIKey = env.String("GEOCODER_API_KEY", cfg.GeocoderAPIKey)
	cfg.Mode = weather.Mode(env.String("WEATHER_MODE", string(cfg.Mode)))
	cfg.RefreshInterval = env.Duration("REFRESH_INTERVAL", cfg.RefreshInterval)
	cfg.MaxRefreshInterval = env.Duration("MAX_REFRESH_INTERVAL", cfg.MaxRefreshInterval)
	cfg.TickInterval = env.Duration("TICK_INTERVAL", cfg.TickInterval)
	cfg.ConnectTimeout = env.Duration("CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.ReadTimeout = env.Duration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.ForecastHours = env.Int("FORECAST_HOURS", cfg.ForecastHours)
	cfg.QuotaLimit = env.Int("QUOTA_LIMIT", cfg.QuotaLimit)
	cfg.QuotaWarnThreshold = env.Int("QUOTA_WARN_THRESHOLD", cfg.QuotaWarnThreshold)
	cfg.BreakerMaxFailures = env.Int("BREAKER_MAX_FAILURES", cfg.BreakerMaxFailures)
	cfg.Redis.Addr = env.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = env.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = env.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.ValuesStream = env.String("REDIS_VALUES_STREAM", cfg.Redis.ValuesStream)
	cfg.Redis.LocationStream = env.String("REDIS_LOCATION_STREAM", cfg.Redis.LocationStream)
	cfg.Port = env.String("PORT", cfg.Port)

	if err := cfg.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and normalizes bounded values in place.
func (c *AppConfig) Validate() error {
	var errs *multierror.Error

	if err := c.Location.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if _, err := weather.ParseMode(string(c.Mode)); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.RefreshInterval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("refresh interval must be positive"))
	}
	if c.MaxRefreshInterval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("max refresh interval must be positive"))
	}
	if c.ForecastHours <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("forecast hours must be positive"))
	}
	if c.QuotaLimit < 0 || c.QuotaWarnThreshold < 0 {
		errs = multierror.Append(errs, fmt.Errorf("quota limit and warn threshold must not be negative"))
	}
	if c.BreakerMaxFailures < 0 {
		errs = multierror.Append(errs, fmt.Errorf("breaker max failures must not be negative"))
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("connect and read timeouts must be positive"))
	}
	if c.Port == "" {
		errs = multierror.Append(errs, fmt.Errorf("port must not be empty"))
	}

	if c.MaxRefreshInterval > 0 && c.RefreshInterval > c.MaxRefreshInterval {
		c.RefreshInterval = c.MaxRefreshInterval
	}
	if c.TickInterval < minTickInterval {
		c.TickInterval = minTickInterval
	}
	if c.TickInterval > MaxTickInterval {
		c.TickInterval = MaxTickInterval
	}

	return errs.ErrorOrNil()
}

// fileConfig mirrors AppConfig in the YAML file. Durations accept Go
// durations ("6h") or plain seconds ("21600").
type fileConfig struct {
	APIKey      string `yaml:"api_key"`
	APIEndpoint string `yaml:"api_endpoint"`
	Location    struct {
		Latitude  *float64 `yaml:"latitude"`
		Longitude *float64 `yaml:"longitude"`
		Address   string   `yaml:"address"`
	} `yaml:"location"`
	GeocoderAPIKey     string `yaml:"geocoder_api_key"`
	Mode               string `yaml:"mode"`
	RefreshInterval    string `yaml:"refresh_interval"`
	MaxRefreshInterval string `yaml:"max_refresh_interval"`
	TickInterval       string `yaml:"tick_interval"`
	ConnectTimeout     string `yaml:"connect_timeout"`
	ReadTimeout        string `yaml:"read_timeout"`
	ForecastHours      int    `yaml:"forecast_hours"`
	Quota              struct {
		Limit         *int `yaml:"limit"`
		WarnThreshold *int `yaml:"warn_threshold"`
	} `yaml:"quota"`
	BreakerMaxFailures *int `yaml:"breaker_max_failures"`
	Redis              struct {
		Addr           string `yaml:"addr"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		ValuesStream   string `yaml:"values_stream"`
		LocationStream string `yaml:"location_stream"`
	} `yaml:"redis"`
	Port string `yaml:"port"`
}

func (c *AppConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	var errs *multierror.Error
	setString(&c.APIKey, fc.APIKey)
	setString(&c.APIEndpoint, fc.APIEndpoint)
	if fc.Location.Latitude != nil {
		c.Location.Latitude = *fc.Location.Latitude
	}
	if fc.Location.Longitude != nil {
		c.Location.Longitude = *fc.Location.Longitude
	}
	setString(&c.LocationAddress, fc.Location.Address)
	setString(&c.GeocoderAPIKey, fc.GeocoderAPIKey)
	if fc.Mode != "" {
		c.Mode = weather.Mode(fc.Mode)
	}
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"refresh_interval", fc.RefreshInterval, &c.RefreshInterval},
		{"max_refresh_interval", fc.MaxRefreshInterval, &c.MaxRefreshInterval},
		{"tick_interval", fc.TickInterval, &c.TickInterval},
		{"connect_timeout", fc.ConnectTimeout, &c.ConnectTimeout},
		{"read_timeout", fc.ReadTimeout, &c.ReadTimeout},
	} {
		if d.raw == "" {
			continue
		}
		v, err := ParseDuration(d.raw)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("invalid %s: %w", d.name, err))
			continue
		}
		*d.dst = v
	}
	if fc.ForecastHours != 0 {
		c.ForecastHours = fc.ForecastHours
	}
	if fc.Quota.Limit != nil {
		c.QuotaLimit = *fc.Quota.Limit
	}
	if fc.Quota.WarnThreshold != nil {
		c.QuotaWarnThreshold = *fc.Quota.WarnThreshold
	}
	if fc.BreakerMaxFailures != nil {
		c.BreakerMaxFailures = *fc.BreakerMaxFailures
	}
	setString(&c.Redis.Addr, fc.Redis.Addr)
	setString(&c.Redis.Password, fc.Redis.Password)
	if fc.Redis.DB != 0 {
		c.Redis.DB = fc.Redis.DB
	}
	setString(&c.Redis.ValuesStream, fc.Redis.ValuesStream)
	setString(&c.Redis.LocationStream, fc.Redis.LocationStream)
	setString(&c.Port, fc.Port)

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ParseDuration accepts a Go duration string or a whole number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// envReader reads typed environment variables, keeping the current value
// when a key is unset and recording unparsable values.
type envReader struct {
	errs **multierror.Error
}

func (r envReader) String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r envReader) Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*r.errs = multierror.Append(*r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (r envReader) Float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		*r.errs = multierror.Append(*r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func (r envReader) Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := ParseDuration(v)
	if err != nil {
		*r.errs = multierror.Append(*r.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}
