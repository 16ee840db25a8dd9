package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/localshop/internal/adapters/http"
	natsadapter "github.com/samirrijal/localshop/internal/adapters/nats"
	"github.com/samirrijal/localshop/internal/adapters/valkey"
	"github.com/samirrijal/localshop/internal/bootstrap"
	"github.com/samirrijal/localshop/internal/core/ports"
	"github.com/samirrijal/localshop/internal/core/usecases"
	"github.com/samirrijal/localshop/internal/pkg/config"
	"github.com/samirrijal/localshop/internal/pkg/logging"
	"github.com/samirrijal/localshop/internal/pkg/metrics"
	"github.com/samirrijal/localshop/internal/pkg/telemetry"
	"github.com/samirrijal/localshop/internal/workflows"
)

var version = "dev"

func main() {
	cfg, err := config.Load("localshop-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Shop store
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	checks := map[string]http.ReadinessCheck{}
	if store.Check != nil {
		checks[cfg.Store.Driver] = store.Check
	}

	// Shared geocode cache
	var shared ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, using in-process caches only", "error", err)
	} else {
		defer cache.Close()
		shared = cache
		checks["valkey"] = cache.Ping
	}

	// NATS
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, shop events disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	// Background geocode retries
	var scheduler ports.GeocodeScheduler
	if cfg.Geocode.AsyncRetry {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			slog.Warn("temporal unavailable, async geocode retry disabled", "error", err)
		} else {
			defer tc.Close()
			scheduler = workflows.NewScheduler(tc, cfg.Temporal.TaskQueue)
		}
	}

	// Use cases
	geocoding := bootstrap.NewGeocoding(cfg, shared, logger)
	search := bootstrap.NewSearch(cfg, store.Repo, geocoding, logger)
	shops := usecases.NewShopService(store.Repo, geocoding, usecases.ShopServiceOptions{
		Publisher:  publisher,
		Scheduler:  scheduler,
		AsyncRetry: cfg.Geocode.AsyncRetry,
		Logger:     logger,
	})

	if store.DB != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					metrics.UpdateDBPoolMetrics(store.DB.Stat())
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	deps := &http.Dependencies{
		Geocoding:         geocoding,
		Search:            search,
		Shops:             shops,
		NATS:              natsConn,
		Checks:            checks,
		JWTSecret:         cfg.Auth.JWTSecret,
		RequestsPerMinute: cfg.RateLimit.Global,
		RequestTimeout:    cfg.RequestBudget(),
		Version:           version,
		SpecPath:          http.DefaultSpecPath,
		Logger:            logger,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: cfg.RequestBudget() + time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "LocalShop API",
		ErrorHandler: http.ErrorHandler,
	})

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "store", cfg.Store.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
