package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samirrijal/localshop/internal/adapters/elastic"
	natsadapter "github.com/samirrijal/localshop/internal/adapters/nats"
	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/pkg/config"
	"github.com/samirrijal/localshop/internal/pkg/logging"
)

const durable = "shop-indexer"

func main() {
	cfg, err := config.Load("localshop-indexer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := elastic.NewClient(cfg.Elastic.URL, cfg.Elastic.Sniff)
	if err != nil {
		log.Fatalf("elastic: %v", err)
	}
	defer client.Stop()

	repo := elastic.NewShopRepo(client, cfg.Elastic.Index)
	if err := repo.EnsureIndex(ctx); err != nil {
		log.Fatalf("elastic index: %v", err)
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeShopEvents(ctx, durable, func(ctx context.Context, ev *domain.ShopEvent) error {
		if err := repo.Save(ctx, &ev.Shop); err != nil {
			slog.Error("index shop failed", "shop_id", ev.Shop.ID, "type", ev.Type, "error", err)
			return err
		}
		slog.Debug("shop indexed", "shop_id", ev.Shop.ID, "type", ev.Type, "status", ev.Shop.Status)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("indexer started", "index", cfg.Elastic.Index, "durable", durable)
	<-ctx.Done()
	slog.Info("indexer stopped")
}
