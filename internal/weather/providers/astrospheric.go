package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/i474232898/astroforecast/internal/weather"
)

// DefaultAstrosphericEndpoint is the public forecast endpoint.
const DefaultAstrosphericEndpoint = "https://astrosphericpublicaccess.azurewebsites.net/api/GetForecastData_V1"

// AstrosphericProvider implements weather.Client for the Astrospheric API.
type AstrosphericProvider struct {
	name     string
	endpoint string
	client   *http.Client
	circuit  *gobreaker.CircuitBreaker
}

// NewAstrosphericProvider creates a provider posting to endpoint (the public
// endpoint when empty). breakerFailures consecutive failures open the breaker.
func NewAstrosphericProvider(client *http.Client, endpoint string, breakerFailures uint32) *AstrosphericProvider {
	if endpoint == "" {
		endpoint = DefaultAstrosphericEndpoint
	}
	return &AstrosphericProvider{
		name:     "astrospheric",
		endpoint: endpoint,
		client:   client,
		circuit:  NewCircuitBreaker("astrospheric", breakerFailures),
	}
}

func (p *AstrosphericProvider) Name() string {
	return p.name
}

// Fetch posts the coordinates and key and returns the raw forecast payload.
// Longitudes in [0, 360] are sent as [-180, 180].
func (p *AstrosphericProvider) Fetch(ctx context.Context, req weather.FetchRequest) ([]byte, error) {
	if req.APIKey == "" {
		return nil, weather.ErrNoCredential
	}

	loc := weather.Location{Latitude: req.Latitude, Longitude: req.Longitude}.Normalized()
	body, err := json.Marshal(weather.FetchRequest{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		APIKey:    req.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", weather.ErrTransport, err)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Accept", "application/json")
		return r, nil
	}

	return doRequest(ctx, p.client, p.circuit, buildRequest)
}

var _ weather.Client = (*AstrosphericProvider)(nil)
