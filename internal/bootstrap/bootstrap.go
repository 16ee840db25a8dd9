// Package bootstrap builds the shop store and the geocoding service from
// configuration for the binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/localshop/internal/adapters/elastic"
	"github.com/samirrijal/localshop/internal/adapters/geocoders"
	"github.com/samirrijal/localshop/internal/adapters/memory"
	"github.com/samirrijal/localshop/internal/adapters/postgres"
	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/core/ports"
	"github.com/samirrijal/localshop/internal/core/usecases"
	"github.com/samirrijal/localshop/internal/pkg/cache"
	"github.com/samirrijal/localshop/internal/pkg/config"
	"github.com/samirrijal/localshop/internal/pkg/ratelimit"
)

// Store is an opened shop repository.
type Store struct {
	Repo ports.ShopRepository
	// Check pings the backing service; nil for the memory driver.
	Check func(ctx context.Context) error
	// DB is set for the postgres driver so callers can export pool metrics.
	DB    *postgres.DB
	close func()
}

// Close releases the store's connections.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore opens the repository selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return &Store{
			Repo:  postgres.NewShopRepo(db),
			Check: db.Ping,
			DB:    db,
			close: db.Close,
		}, nil
	case "elastic":
		client, err := elastic.NewClient(cfg.Elastic.URL, cfg.Elastic.Sniff)
		if err != nil {
			return nil, err
		}
		repo := elastic.NewShopRepo(client, cfg.Elastic.Index)
		if err := repo.EnsureIndex(ctx); err != nil {
			client.Stop()
			return nil, err
		}
		return &Store{
			Repo: repo,
			Check: func(ctx context.Context) error {
				_, err := client.IndexExists(cfg.Elastic.Index).Do(ctx)
				return err
			},
			close: client.Stop,
		}, nil
	case "memory":
		return &Store{Repo: memory.NewShopRepo()}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// NewGeocoding builds the provider chain, limiter and caches. shared may be nil.
func NewGeocoding(cfg *config.Config, shared ports.CacheService, logger *slog.Logger) *usecases.GeocodingService {
	limiter := ratelimit.New(ratelimit.Config{
		PerCaller: cfg.RateLimit.PerCaller,
		Global:    cfg.RateLimit.Global,
		Window:    cfg.RateLimit.Window,
	}, nil, logger)

	providers := geocoders.FromConfig(cfg.Geocode, logger)
	if len(geocoders.Available(providers)) == 0 {
		logger.Warn("no geocoding provider has credentials; address lookups will fail")
	}

	return usecases.NewGeocodingService(providers, usecases.GeocodingOptions{
		Limiter:             limiter,
		Detail:              cache.New[domain.AddressCandidate](cfg.Cache.GeocodeSize, nil),
		Suggest:             cache.New[[]domain.AddressCandidate](cfg.Cache.AutocompleteSize, nil),
		Shared:              shared,
		DetailTTL:           cfg.Cache.DetailTTL,
		SuggestTTL:          cfg.Cache.AutocompleteTTL,
		AutocompleteTimeout: cfg.Geocode.AutocompleteTimeout,
		Logger:              logger,
	})
}

// NewSearch builds the proximity search engine over repo.
func NewSearch(cfg *config.Config, repo ports.ShopRepository, resolver ports.LocationResolver, logger *slog.Logger) *usecases.ShopSearchService {
	return usecases.NewShopSearchService(repo, resolver, usecases.SearchOptions{
		DefaultRadius: cfg.Search.DefaultRadius,
		MaxRadius:     cfg.Search.MaxRadius,
		Logger:        logger,
	})
}
