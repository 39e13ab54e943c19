package cli

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/i474232898/astroforecast/internal/api/http"
	"github.com/i474232898/astroforecast/internal/logging"
	"github.com/i474232898/astroforecast/internal/redisbus"
	"github.com/i474232898/astroforecast/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh scheduler and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "astroforecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	if verbose {
		app.Use(logger.New(logger.Config{Output: os.Stderr}))
	}
	app.Use(recover.New())
	return app
}

func runServe(ctx context.Context) error {
	log := logging.FromContext(ctx)
	cfg := loadedConfig

	comps := build(ctx, cfg, log)
	defer comps.Close()

	var sinks []scheduler.Sink
	if comps.redis != nil {
		sinks = append(sinks, redisbus.NewPublisher(comps.redis, cfg.Redis.ValuesStream, log))
	}
	sched := scheduler.New(comps.service, cfg.TickInterval, log, sinks...)

	app := newApp()
	httpapi.RegisterOps(app, comps.service)
	httpapi.RegisterRoutes(app, httpapi.Handlers{
		Service:  comps.service,
		Refresh:  sched.RunOnce,
		Resolver: comps.resolver,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "port", cfg.Port)
		return app.Listen(":" + cfg.Port)
	})

	g.Go(func() error {
		if err := sched.Start(); err != nil {
			return err
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if comps.redis != nil && cfg.Redis.LocationStream != "" {
		listener := redisbus.NewLocationListener(comps.redis, cfg.Redis.LocationStream, comps.service, log)
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}
