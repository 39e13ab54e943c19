package weather

import (
	"fmt"
	"math"
	"time"
)

// DefaultForecastHours is the number of hourly samples the Astrospheric API
// returns for every channel.
const DefaultForecastHours = 82

// Channel names one forecast series.
type Channel string

const (
	ChannelCloudCover    Channel = "cloud_cover"
	ChannelTemperature   Channel = "temperature"
	ChannelWindSpeed     Channel = "wind_speed"
	ChannelDewPoint      Channel = "dew_point"
	ChannelWindDirection Channel = "wind_direction"
	ChannelSeeing        Channel = "seeing"
	ChannelTransparency  Channel = "transparency"
)

// Channels lists every channel a ForecastRecord carries, in reporting order.
var Channels = []Channel{
	ChannelCloudCover,
	ChannelTemperature,
	ChannelWindSpeed,
	ChannelDewPoint,
	ChannelWindDirection,
	ChannelSeeing,
	ChannelTransparency,
}

// Location is the monitored site in decimal degrees.
// The zero value means no location has been received yet.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether no usable location is set.
func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0
}

// Validate rejects non-finite coordinates and those outside the accepted
// ranges: latitude in [-90, 90], longitude in [-180, 360].
func (l Location) Validate() error {
	if !inRange(l.Latitude, -90, 90) {
		return fmt.Errorf("latitude %v must be between -90 and 90", l.Latitude)
	}
	if !inRange(l.Longitude, -180, 360) {
		return fmt.Errorf("longitude %v must be between -180 and 360", l.Longitude)
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// Normalized maps longitudes given in [0, 360] onto the [-180, 180] range
// the provider expects.
func (l Location) Normalized() Location {
	if l.Longitude > 180 {
		l.Longitude -= 360
	}
	return l
}

// Key returns a canonical string key for logging and labels.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

// ForecastRecord is an immutable, validated snapshot of one successful fetch.
// Every channel holds exactly Hours() samples, already in consumer units.
type ForecastRecord struct {
	windowStart time.Time
	series      map[Channel][]float64
	hours       int

	usedToday     int
	usageReported bool
}

// NewForecastRecord builds a record from complete series. It fails with
// ErrMissingChannel or ErrLengthMismatch instead of returning a partial record.
func NewForecastRecord(windowStart time.Time, hours int, series map[Channel][]float64) (*ForecastRecord, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: forecast window must have at least one hour", ErrLengthMismatch)
	}

	owned := make(map[Channel][]float64, len(Channels))
	for _, ch := range Channels {
		samples, ok := series[ch]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingChannel, ch)
		}
		if len(samples) != hours {
			return nil, fmt.Errorf("%w: %s has %d samples, want %d", ErrLengthMismatch, ch, len(samples), hours)
		}
		owned[ch] = append([]float64(nil), samples...)
	}

	return &ForecastRecord{
		windowStart: windowStart.UTC(),
		series:      owned,
		hours:       hours,
	}, nil
}

// withUsage returns a copy of r carrying the provider's daily usage counter.
func (r *ForecastRecord) withUsage(used int) *ForecastRecord {
	cp := *r
	cp.usedToday = used
	cp.usageReported = true
	return &cp
}

// WindowStart is the UTC instant of hour offset 0.
func (r *ForecastRecord) WindowStart() time.Time { return r.windowStart }

// Hours is the number of samples in every channel.
func (r *ForecastRecord) Hours() int { return r.hours }

// Usage returns the provider-reported credits used today, if the payload had them.
func (r *ForecastRecord) Usage() (int, bool) { return r.usedToday, r.usageReported }

// Series returns a copy of one channel's samples.
func (r *ForecastRecord) Series(ch Channel) []float64 {
	return append([]float64(nil), r.series[ch]...)
}

// ValuesAt returns the consumer values for an hour offset previously
// validated with IndexFor.
func (r *ForecastRecord) ValuesAt(hour int) Values {
	return Values{
		Hour:          hour,
		ValidAt:       r.windowStart.Add(time.Duration(hour) * time.Hour),
		CloudCover:    r.series[ChannelCloudCover][hour],
		Temperature:   r.series[ChannelTemperature][hour],
		WindSpeed:     r.series[ChannelWindSpeed][hour],
		DewPoint:      r.series[ChannelDewPoint][hour],
		WindDirection: r.series[ChannelWindDirection][hour],
		Seeing:        r.series[ChannelSeeing][hour],
		Transparency:  r.series[ChannelTransparency][hour],
	}
}

// Values are the seven parameters reported to consumers for one forecast hour.
type Values struct {
	Hour    int       `json:"hour"`
	ValidAt time.Time `json:"validAt"`

	CloudCover    float64 `json:"cloudCoverPercent"`
	Temperature   float64 `json:"temperatureC"`
	WindSpeed     float64 `json:"windSpeedKph"`
	DewPoint      float64 `json:"dewPointC"`
	WindDirection float64 `json:"windDirectionDeg"`
	Seeing        float64 `json:"seeing"`
	Transparency  float64 `json:"transparency"`
}

// Get returns the value of one channel.
func (v Values) Get(ch Channel) float64 {
	switch ch {
	case ChannelCloudCover:
		return v.CloudCover
	case ChannelTemperature:
		return v.Temperature
	case ChannelWindSpeed:
		return v.WindSpeed
	case ChannelDewPoint:
		return v.DewPoint
	case ChannelWindDirection:
		return v.WindDirection
	case ChannelSeeing:
		return v.Seeing
	case ChannelTransparency:
		return v.Transparency
	default:
		return math.NaN()
	}
}

// Summary renders the one-line status text shown next to the parameters.
func (v Values) Summary() string {
	return fmt.Sprintf("Cloud: %.2f%%, Temp: %.2fC, Wind: %.2fkph, Dew: %.2fC, Dir: %.2f°, See: %.2f, Trans: %.2f",
		v.CloudCover, v.Temperature, v.WindSpeed, v.DewPoint, v.WindDirection, v.Seeing, v.Transparency)
}

// simulatedValues are reported in simulated mode instead of fetched data.
var simulatedValues = Values{
	CloudCover:    50,
	Temperature:   20,
	WindSpeed:     10,
	DewPoint:      10,
	WindDirection: 180,
	Seeing:        2.5,
	Transparency:  15,
}

// Parameter describes one consumer-facing parameter.
type Parameter struct {
	Name     string  `json:"name"`
	Channel  Channel `json:"channel"`
	Label    string  `json:"label"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Critical bool    `json:"critical"`
}

// Parameters is the table exposed to hosts. Cloud cover drives weather alerts.
var Parameters = []Parameter{
	{Name: "WEATHER_CLOUD_COVER", Channel: ChannelCloudCover, Label: "Cloud Cover (%)", Min: 0, Max: 100, Critical: true},
	{Name: "WEATHER_TEMPERATURE", Channel: ChannelTemperature, Label: "Temperature (C)", Min: -50, Max: 50},
	{Name: "WEATHER_WIND_SPEED", Channel: ChannelWindSpeed, Label: "Wind Speed (kph)", Min: 0, Max: 200},
	{Name: "WEATHER_DEW_POINT", Channel: ChannelDewPoint, Label: "Dew Point (C)", Min: -50, Max: 50},
	{Name: "WEATHER_WIND_DIRECTION", Channel: ChannelWindDirection, Label: "Wind Direction (°)", Min: 0, Max: 360},
	{Name: "WEATHER_SEEING", Channel: ChannelSeeing, Label: "Seeing (0–5)", Min: 0, Max: 5},
	{Name: "WEATHER_TRANSPARENCY", Channel: ChannelTransparency, Label: "Transparency (0–27+)", Min: 0, Max: 30},
}

// Mode selects where values come from.
type Mode string

const (
	ModeAPI       Mode = "api"
	ModeSimulated Mode = "simulated"
)

// ParseMode accepts "api" or "simulated".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAPI, ModeSimulated:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown weather mode %q", s)
	}
}
