package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/localshop/internal/adapters/nats"
	"github.com/samirrijal/localshop/internal/adapters/valkey"
	"github.com/samirrijal/localshop/internal/bootstrap"
	"github.com/samirrijal/localshop/internal/core/ports"
	"github.com/samirrijal/localshop/internal/core/usecases"
	"github.com/samirrijal/localshop/internal/pkg/config"
	"github.com/samirrijal/localshop/internal/pkg/logging"
	"github.com/samirrijal/localshop/internal/workflows"
)

func main() {
	cfg, err := config.Load("localshop-geoworker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	var shared ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		shared = cache
	}

	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, geocoded events disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	geocoding := bootstrap.NewGeocoding(cfg, shared, logger)
	shops := usecases.NewShopService(store.Repo, geocoding, usecases.ShopServiceOptions{
		Publisher: publisher,
		Logger:    logger,
	})

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.GeocodeShopWorkflow)
	w.RegisterActivity(&workflows.GeocodeActivities{Shops: shops})

	slog.Info("geoworker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
