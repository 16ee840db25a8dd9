package ports

import (
	"context"

	"github.com/samirrijal/localshop/internal/core/domain"
)

// ShopRepository persists shops and answers proximity and filtered queries.
type ShopRepository interface {
	// FindNear returns shops within maxDistanceMeters of center that match q.
	// Distance on the returned hits is the store's own measurement in km
	// (nil when the store does not expose one).
	FindNear(ctx context.Context, center domain.GeoPoint, maxDistanceMeters float64, q domain.ShopQuery, opts domain.ListOptions) ([]domain.ShopWithDistance, error)
	// Find returns shops matching q. q.Near is ignored.
	Find(ctx context.Context, q domain.ShopQuery, opts domain.ListOptions) ([]domain.Shop, error)
	// CountMatching counts shops matching q, honouring q.Near.
	CountMatching(ctx context.Context, q domain.ShopQuery) (int, error)
	Save(ctx context.Context, shop *domain.Shop) error
	// GetByID returns domain.ErrNotFound for unknown IDs.
	GetByID(ctx context.Context, id string) (*domain.Shop, error)
}
