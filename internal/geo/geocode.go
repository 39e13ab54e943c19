package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/astroforecast/internal/weather"
)

// ErrNoAPIKey is returned when an address lookup is attempted without a geocoding key.
var ErrNoAPIKey = errors.New("geocoder api key not configured")

// ErrBadAddress is returned for addresses that are not "City, Country".
var ErrBadAddress = errors.New("invalid address")

// LookupFunc resolves an address to coordinates.
type LookupFunc func(addr geocoder.Address) (geocoder.Location, error)

// Resolver turns a "City, Country" address into a monitored location.
type Resolver struct {
	apiKey string
	lookup LookupFunc
}

// geocoder keeps its key in a package variable.
var keyMu sync.Mutex

// NewResolver creates a resolver backed by the Google geocoding API.
func NewResolver(apiKey string) *Resolver {
	r := &Resolver{apiKey: apiKey}
	r.lookup = func(addr geocoder.Address) (geocoder.Location, error) {
		keyMu.Lock()
		defer keyMu.Unlock()
		geocoder.ApiKey = r.apiKey
		return geocoder.Geocoding(addr)
	}
	return r
}

// NewResolverWithLookup creates a resolver around a custom lookup.
func NewResolverWithLookup(lookup LookupFunc) *Resolver {
	return &Resolver{apiKey: "custom", lookup: lookup}
}

// ParseAddress splits "City, Country" (or "City, State, Country").
func ParseAddress(s string) (geocoder.Address, error) {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return geocoder.Address{City: parts[0], Country: parts[1]}, nil
	case len(parts) == 3 && parts[0] != "" && parts[2] != "":
		return geocoder.Address{City: parts[0], State: parts[1], Country: parts[2]}, nil
	default:
		return geocoder.Address{}, fmt.Errorf("%w: %q must look like \"City, Country\"", ErrBadAddress, s)
	}
}

// Resolve looks up address and returns its coordinates.
func (r *Resolver) Resolve(ctx context.Context, address string) (weather.Location, error) {
	if r.apiKey == "" {
		return weather.Location{}, ErrNoAPIKey
	}
	addr, err := ParseAddress(address)
	if err != nil {
		return weather.Location{}, err
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := r.lookup(addr)
		done <- result{loc, err}
	}()

	select {
	case <-ctx.Done():
		return weather.Location{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return weather.Location{}, fmt.Errorf("geocode %q: %w", address, res.err)
		}
		loc := weather.Location{Latitude: res.loc.Latitude, Longitude: res.loc.Longitude}
		if loc.IsZero() {
			return weather.Location{}, fmt.Errorf("geocode %q: no coordinates returned", address)
		}
		return loc, nil
	}
}
