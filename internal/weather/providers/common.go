package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/astroforecast/internal/common"
	"github.com/i474232898/astroforecast/internal/weather"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 4 << 20

// TimeoutConfig splits the request budget into connect and read phases.
type TimeoutConfig struct {
	Connect time.Duration
	Read    time.Duration
}

// DefaultTimeouts are the connect/read policy for forecast requests.
var DefaultTimeouts = TimeoutConfig{
	Connect: 5 * time.Second,
	Read:    15 * time.Second,
}

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errCircuitOpen = errors.New("circuit breaker open")
	errNoClient    = errors.New("http client not configured")
)

// NewHTTPClient builds the shared client for provider calls. A request that
// exceeds either phase fails as a transport error.
func NewHTTPClient(t TimeoutConfig) *http.Client {
	if t.Connect <= 0 {
		t.Connect = DefaultTimeouts.Connect
	}
	if t.Read <= 0 {
		t.Read = DefaultTimeouts.Read
	}
	return &http.Client{
		Timeout: t.Connect + t.Read,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   t.Connect,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   t.Connect,
			ResponseHeaderTimeout: t.Read,
			MaxIdleConns:          2,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// NewCircuitBreaker trips after maxFailures consecutive failed requests and
// lets a probe through after two minutes. maxFailures == 0 disables tripping.
// Cancelled requests do not count as failures.
func NewCircuitBreaker(name string, maxFailures uint32) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// doRequest executes exactly one attempt through the circuit breaker and
// returns the body of a 2xx response. Every failure wraps weather.ErrTransport.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: %w", weather.ErrTransport, errNoClient)
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", weather.ErrTransport, err)
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, readErr
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %s", errRateLimited, common.SummarizeBody(body))
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %d: %s", errServerError, resp.StatusCode, common.SummarizeBody(body))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: %d: %s", errUnexpected, resp.StatusCode, common.SummarizeBody(body))
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", weather.ErrTransport, errCircuitOpen, err)
		}
		return nil, fmt.Errorf("%w: %w", weather.ErrTransport, err)
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrTransport)
	}
	return body, nil
}
