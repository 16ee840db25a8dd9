package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/samirrijal/localshop/internal/adapters/cli"
	"github.com/samirrijal/localshop/internal/bootstrap"
	"github.com/samirrijal/localshop/internal/pkg/config"
	"github.com/samirrijal/localshop/internal/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load("localshop-shopctl")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	// Diagnostics go to stderr so --json output stays parseable.
	logger := logging.New(cfg.Log.Level, "text", os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	geocoding := bootstrap.NewGeocoding(cfg, nil, logger)
	search := bootstrap.NewSearch(cfg, store.Repo, geocoding, logger)

	cli.SetServices(geocoding, search)
	cli.SetVersion(version)

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		store.Close()
		os.Exit(1)
	}
}
