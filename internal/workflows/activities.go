package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/localshop/internal/core/domain"
)

// ShopGeocoder is the slice of usecases.ShopService the activities need.
type ShopGeocoder interface {
	GeocodeShop(ctx context.Context, id string) (*domain.Shop, error)
}

// GeocodeResult is what the workflow records about a finished geocode.
type GeocodeResult struct {
	ShopID   string
	Lon      float64
	Lat      float64
	CitySlug string
	AreaSlug string
}

// GeocodeActivities holds the activity implementations for GeocodeShopWorkflow.
type GeocodeActivities struct {
	Shops ShopGeocoder
}

// Error types the workflow retry policy refuses to retry.
const (
	ErrTypeShopNotFound = "ShopNotFound"
	ErrTypeInvalidShop  = "InvalidShop"
)

// GeocodeShop resolves the shop's address and saves its coordinates.
// Missing shops and unusable addresses fail permanently; every other error,
// rate limiting included, is retried by Temporal with backoff.
func (a *GeocodeActivities) GeocodeShop(ctx context.Context, shopID string) (GeocodeResult, error) {
	logger := activity.GetLogger(ctx)

	shop, err := a.Shops.GeocodeShop(ctx, shopID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return GeocodeResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("shop %s not found", shopID), ErrTypeShopNotFound, err)
	case errors.Is(err, domain.ErrInvalidInput):
		return GeocodeResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("shop %s has no usable address", shopID), ErrTypeInvalidShop, err)
	default:
		logger.Warn("geocode attempt failed", "shop_id", shopID, "error", err)
		return GeocodeResult{}, err
	}

	res := GeocodeResult{ShopID: shop.ID, CitySlug: shop.CitySlug, AreaSlug: shop.AreaSlug}
	if shop.Location != nil {
		res.Lon, res.Lat = shop.Location.Lon, shop.Location.Lat
	}
	return res, nil
}
