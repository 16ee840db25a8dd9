package ports

import (
	"context"

	"github.com/samirrijal/localshop/internal/core/domain"
)

// GeocodeProvider is one external forward-geocoding backend.
type GeocodeProvider interface {
	Name() string
	// Available is false when credentials are missing or the provider is disabled.
	Available() bool
	Geocode(ctx context.Context, address string) (domain.AddressCandidate, error)
}

// Autocompleter is implemented by providers offering place suggestions.
type Autocompleter interface {
	Autocomplete(ctx context.Context, text string, bias *domain.GeoPoint, limit int) ([]domain.AddressCandidate, error)
}

// ReverseGeocoder is implemented by providers that resolve coordinates to addresses.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (domain.AddressCandidate, error)
}

// LocationResolver turns free text into a single candidate.
type LocationResolver interface {
	Resolve(ctx context.Context, caller domain.Caller, text string) (domain.AddressCandidate, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishShopEvent(ctx context.Context, event *domain.ShopEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeShopEvents(ctx context.Context, durable string, handler func(ctx context.Context, event *domain.ShopEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// GeocodeScheduler queues a background geocode for a shop saved without coordinates.
type GeocodeScheduler interface {
	ScheduleGeocode(ctx context.Context, shopID string) error
}
