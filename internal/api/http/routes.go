package httpapi

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/astroforecast/internal/geo"
	"github.com/i474232898/astroforecast/internal/weather"
)

var validate = validator.New()

// RefreshFunc runs a tick immediately and returns its report.
type RefreshFunc func(ctx context.Context) weather.Report

// Handlers holds what the HTTP routes need.
type Handlers struct {
	Service  *weather.Service
	Refresh  RefreshFunc
	Resolver *geo.Resolver
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h Handlers) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		return c.JSON(h.Service.Report())
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		view, err := h.Service.Forecast()
		if err != nil {
			if errors.Is(err, weather.ErrNoForecast) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast has been fetched yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read forecast")
		}
		return c.JSON(view)
	})

	v1.Get("/weather/parameters", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"parameters": weather.Parameters})
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		if h.Refresh == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "refresh is not available")
		}
		return c.JSON(h.Refresh(c.UserContext()))
	})

	v1.Get("/quota", func(c *fiber.Ctx) error {
		q := h.Service.Quota()
		return c.JSON(fiber.Map{
			"quota":     q,
			"remaining": q.Remaining(),
		})
	})

	cfg := v1.Group("/config")

	cfg.Put("/location", func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		loc, err := req.resolve(c.UserContext(), h.Resolver)
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}

		h.Service.SetLocation(loc)
		return c.JSON(h.Service.Report())
	})

	cfg.Put("/credential", func(c *fiber.Ctx) error {
		var req credentialRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		req.APIKey = strings.TrimSpace(req.APIKey)
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		h.Service.SetCredential(req.APIKey)
		return c.JSON(h.Service.Report())
	})

	cfg.Put("/mode", func(c *fiber.Ctx) error {
		var req modeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		h.Service.SetMode(weather.Mode(req.Mode))
		return c.JSON(h.Service.Report())
	})
}

// RegisterOps adds the health and Prometheus endpoints.
func RegisterOps(app *fiber.App, service *weather.Service) {
	app.Get("/health", func(c *fiber.Ctx) error {
		r := service.Report()
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "astroforecast",
			"weather": r.Status,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// locationRequest accepts coordinates or an address to geocode.
type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

type coordinates struct {
	Latitude  *float64 `validate:"required,gte=-90,lte=90"`
	Longitude *float64 `validate:"required,gte=-180,lte=360"`
}

func (r locationRequest) resolve(ctx context.Context, resolver *geo.Resolver) (weather.Location, error) {
	if addr := strings.TrimSpace(r.Address); addr != "" {
		if resolver == nil {
			return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, "address lookup is not configured")
		}
		loc, err := resolver.Resolve(ctx, addr)
		if errors.Is(err, geo.ErrNoAPIKey) || errors.Is(err, geo.ErrBadAddress) {
			return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return loc, err
	}

	coords := coordinates{Latitude: r.Latitude, Longitude: r.Longitude}
	if err := validate.Struct(coords); err != nil {
		return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return weather.Location{Latitude: *coords.Latitude, Longitude: *coords.Longitude}, nil
}

type credentialRequest struct {
	APIKey string `json:"apiKey" validate:"required"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=api simulated"`
}
