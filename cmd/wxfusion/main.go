package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/go-redis/redis/v8"
	"github.com/kelvins/geocoder"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/wxfusion/wxfusion/internal/api/http"
	"github.com/wxfusion/wxfusion/internal/config"
	"github.com/wxfusion/wxfusion/internal/scheduler"
	"github.com/wxfusion/wxfusion/internal/store"
	"github.com/wxfusion/wxfusion/internal/weather"
	"github.com/wxfusion/wxfusion/internal/weather/providers"
)

// logAlertSink is the notification hand-off point: it receives the fused
// alert list after every successful run and logs it. Escalation belongs to
// an external subsystem.
type logAlertSink struct {
	log *zap.SugaredLogger
}

func (s *logAlertSink) HandleAlerts(_ context.Context, loc weather.Location, alerts *weather.AlertList, att weather.FusionAttribution) {
	if alerts == nil || len(alerts.Alerts) == 0 {
		return
	}
	events := make([]string, 0, len(alerts.Alerts))
	for _, a := range alerts.Alerts {
		events = append(events, a.Event)
	}
	s.log.Infow("active weather alerts",
		"key", loc.Key(),
		"events", events,
		"sources", att.ContributingSources)
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	baseLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer baseLogger.Sync()
	logger := baseLogger.Sugar()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Snapshot store backend.
	var snaps weather.SnapshotStore
	switch cfg.StoreBackend {
	case "redis":
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		snaps = store.NewRedisStore(rc, cfg.StoreMaxAge)
		logger.Infof("using redis snapshot store at %s", cfg.RedisAddr)
	default:
		snaps = store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	}

	// Enabled source fetchers.
	var provs []weather.Provider
	if cfg.NWSEnabled {
		provs = append(provs, providers.NewNWSProvider(httpClient))
	}
	if cfg.OpenMeteoEnabled {
		provs = append(provs, providers.NewOpenMeteoProvider(httpClient))
	}
	alertEnrichmentSource := ""
	if cfg.WeatherAPIEnabled && cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
		alertEnrichmentSource = "weatherapi"
	}
	if cfg.VisualCrossingEnabled && cfg.VisualCrossingKey != "" {
		provs = append(provs, providers.NewVisualCrossingProvider(httpClient, cfg.VisualCrossingKey))
	}
	if len(provs) == 0 {
		logger.Fatal("no weather sources enabled")
	}

	// Resolve tracked locations configured by name only.
	if cfg.GeocoderAPIKey != "" {
		geocoder.ApiKey = cfg.GeocoderAPIKey
		g := new(errgroup.Group)
		for i := range cfg.Locations {
			i := i
			loc := cfg.Locations[i]
			if loc.Name == "" || loc.Lat != 0 || loc.Lon != 0 {
				continue
			}
			g.Go(func() error {
				resolved, err := geocoder.Geocoding(geocoder.Address{City: loc.Name, Country: loc.Country})
				if err != nil {
					logger.Warnf("geocoding %q failed: %v", loc.Name, err)
					return nil
				}
				cfg.Locations[i].Lat = resolved.Latitude
				cfg.Locations[i].Lon = resolved.Longitude
				return nil
			})
		}
		_ = g.Wait()
	}

	coord := weather.NewCoordinator(snaps, provs, cfg.Priority, weather.CoordinatorOptions{
		Mode:                  cfg.SourceMode,
		FetchTimeout:          cfg.FetchTimeout,
		TrendsEnabled:         cfg.TrendsEnabled,
		TrendHorizon:          cfg.TrendHorizon,
		AlertEnrichmentSource: alertEnrichmentSource,
	}, &logAlertSink{log: logger}, logger)

	// Scheduler that periodically refreshes tracked locations.
	sched := scheduler.New(cfg.Locations, cfg.SchedulerInterval, coord, logger)
	if err := sched.Start(); err != nil {
		logger.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "wxfusion",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "wxfusion",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, coord, snaps)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Errorf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorf("error during shutdown: %v", err)
	}
}
