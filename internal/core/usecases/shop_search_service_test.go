package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/core/usecases"
)

var delhi = domain.NewGeoPoint(77.2090, 28.6139)

func pt(lon, lat float64) *domain.GeoPoint {
	p := domain.NewGeoPoint(lon, lat)
	return &p
}

// Offsets due north of delhi: 0.009° ≈ 1.0 km, 0.0225° ≈ 2.5 km, 0.036° ≈ 4.0 km.
func threeShops() []domain.ShopWithDistance {
	return []domain.ShopWithDistance{
		{Shop: domain.Shop{ID: "a", Name: "Chaat Corner", Status: domain.ShopLive, Location: pt(77.2090, 28.6229)}},
		{Shop: domain.Shop{ID: "b", Name: "Paratha Wala", Status: domain.ShopLive, Location: pt(77.2090, 28.6364)}},
		{Shop: domain.Shop{ID: "c", Name: "Far Dhaba", Status: domain.ShopLive, Location: pt(77.2090, 28.6499)}},
	}
}

func TestShopSearchService_ThreeShopRadius(t *testing.T) {
	var gotRadius float64
	var gotQuery domain.ShopQuery
	repo := &mockShopRepo{
		// The store over-returns; the engine enforces the radius.
		findNearFn: func(_ context.Context, _ domain.GeoPoint, maxDistance float64, q domain.ShopQuery, _ domain.ListOptions) ([]domain.ShopWithDistance, error) {
			gotRadius = maxDistance
			return threeShops(), nil
		},
		countMatchingFn: func(_ context.Context, q domain.ShopQuery) (int, error) {
			gotQuery = q
			return 2, nil
		},
	}
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{Logger: quietLogger()})

	res, err := svc.Search(context.Background(), customer, domain.SearchRequest{Center: &delhi, RadiusMeters: 3000})
	require.NoError(t, err)

	assert.Equal(t, 3000.0, gotRadius)
	require.NotNil(t, gotQuery.Near)
	assert.Equal(t, 3000.0, gotQuery.Near.RadiusMeters)
	assert.Equal(t, []domain.ShopStatus{domain.ShopLive}, gotQuery.Statuses)

	assert.Equal(t, domain.ModeGeo, res.Mode)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "a", res.Results[0].ID)
	assert.Equal(t, 1.0, *res.Results[0].Distance)
	assert.Equal(t, "b", res.Results[1].ID)
	assert.Equal(t, 2.5, *res.Results[1].Distance)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Pages)
}

func TestShopSearchService_RadiusDefaultsAndClamps(t *testing.T) {
	var radii []float64
	repo := &mockShopRepo{
		findNearFn: func(_ context.Context, _ domain.GeoPoint, maxDistance float64, _ domain.ShopQuery, _ domain.ListOptions) ([]domain.ShopWithDistance, error) {
			radii = append(radii, maxDistance)
			return nil, nil
		},
	}
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{Logger: quietLogger()})

	_, err := svc.Search(context.Background(), customer, domain.SearchRequest{Center: &delhi})
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), customer, domain.SearchRequest{Center: &delhi, RadiusMeters: 1e6})
	require.NoError(t, err)
	assert.Equal(t, []float64{5000, 50000}, radii)

	_, err = svc.Search(context.Background(), customer, domain.SearchRequest{Center: &delhi, RadiusMeters: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Search(context.Background(), customer, domain.SearchRequest{Center: pt(200, 0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestShopSearchService_Pagination(t *testing.T) {
	var opts domain.ListOptions
	repo := &mockShopRepo{
		findFn: func(_ context.Context, _ domain.ShopQuery, o domain.ListOptions) ([]domain.Shop, error) {
			opts = o
			return nil, nil
		},
		countMatchingFn: func(context.Context, domain.ShopQuery) (int, error) { return 45, nil },
	}
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{Logger: quietLogger()})

	res, err := svc.Search(context.Background(), customer, domain.SearchRequest{Page: 3, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeBrowse, res.Mode)
	assert.Equal(t, 40, opts.Skip)
	assert.Equal(t, domain.SortNewest, opts.Sort)
	assert.Equal(t, 3, res.Pages)

	_, err = svc.Search(context.Background(), customer, domain.SearchRequest{Page: 0, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 0, opts.Skip)
	assert.Equal(t, 100, opts.Limit)
}

func TestShopSearchService_TextFallback_BiryaniHouse(t *testing.T) {
	fixtures := []domain.Shop{
		{ID: "1", Name: "Karim's Biryani", Tags: []string{"house special"}, Status: domain.ShopLive},
		{ID: "2", Name: "Biryani Blues", Status: domain.ShopLive},
		{ID: "3", Name: "Green House Cafe", Status: domain.ShopLive},
		{ID: "4", Name: "Biryani House", Status: domain.ShopPending},
	}
	match := func(q domain.ShopQuery) []domain.Shop {
		var out []domain.Shop
		for i := range fixtures {
			if q.Matches(&fixtures[i]) {
				out = append(out, fixtures[i])
			}
		}
		return out
	}
	repo := &mockShopRepo{
		findFn: func(_ context.Context, q domain.ShopQuery, _ domain.ListOptions) ([]domain.Shop, error) {
			require.NotNil(t, q.Text)
			return match(q), nil
		},
		countMatchingFn: func(_ context.Context, q domain.ShopQuery) (int, error) { return len(match(q)), nil },
	}
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{Logger: quietLogger()})

	res, err := svc.Search(context.Background(), customer, domain.SearchRequest{TextQuery: "biryani house"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeText, res.Mode)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "1", res.Results[0].ID)
	assert.Nil(t, res.Results[0].Distance)
	assert.Equal(t, 1, res.Total)
}

func TestShopSearchService_TextQueryGeocoded(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(_ context.Context, _ domain.Caller, text string) (domain.AddressCandidate, error) {
			assert.Equal(t, "connaught place", text)
			return domain.AddressCandidate{Coordinates: delhi}, nil
		},
	}
	var center domain.GeoPoint
	repo := &mockShopRepo{
		findNearFn: func(_ context.Context, c domain.GeoPoint, _ float64, _ domain.ShopQuery, _ domain.ListOptions) ([]domain.ShopWithDistance, error) {
			center = c
			return threeShops()[:1], nil
		},
	}
	svc := usecases.NewShopSearchService(repo, resolver, usecases.SearchOptions{Logger: quietLogger()})

	res, err := svc.Search(context.Background(), customer, domain.SearchRequest{TextQuery: " connaught place "})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeGeocoded, res.Mode)
	assert.Equal(t, delhi, center)
	assert.Equal(t, &delhi, res.Center)
	require.Len(t, res.Results, 1)
	assert.NotNil(t, res.Results[0].Distance)
}

func TestShopSearchService_RateLimitedDegradesToText(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(context.Context, domain.Caller, string) (domain.AddressCandidate, error) {
			return domain.AddressCandidate{}, &domain.RateLimitedError{RetryAfter: time.Second}
		},
	}
	repo := &mockShopRepo{}
	svc := usecases.NewShopSearchService(repo, resolver, usecases.SearchOptions{Logger: quietLogger()})

	res, err := svc.Search(context.Background(), customer, domain.SearchRequest{TextQuery: "chaat"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeText, res.Mode)
	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestShopSearchService_OwnerSeesAllStatuses(t *testing.T) {
	vendor := domain.Caller{ID: "v1", Role: domain.RoleVendor, Key: "v1"}
	now := time.Now()
	var gotQuery domain.ShopQuery
	var gotOpts domain.ListOptions
	repo := &mockShopRepo{
		findFn: func(_ context.Context, q domain.ShopQuery, o domain.ListOptions) ([]domain.Shop, error) {
			gotQuery, gotOpts = q, o
			return []domain.Shop{
				{ID: "new", OwnerID: "v1", Status: domain.ShopPending, CreatedAt: now, Location: pt(77.2, 28.6)},
				{ID: "old", OwnerID: "v1", Status: domain.ShopSuspended, CreatedAt: now.Add(-time.Hour)},
			}, nil
		},
		countMatchingFn: func(context.Context, domain.ShopQuery) (int, error) { return 2, nil },
		findNearFn: func(context.Context, domain.GeoPoint, float64, domain.ShopQuery, domain.ListOptions) ([]domain.ShopWithDistance, error) {
			return nil, errors.New("owner listing must not use proximity")
		},
	}
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{Logger: quietLogger()})

	res, err := svc.Search(context.Background(), vendor, domain.SearchRequest{
		Center:  &delhi,
		Filters: domain.SearchFilters{OwnerID: "v1"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeOwner, res.Mode)
	assert.Empty(t, gotQuery.Statuses)
	assert.Equal(t, "v1", gotQuery.OwnerID)
	assert.Equal(t, domain.SortNewest, gotOpts.Sort)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "new", res.Results[0].ID)
	for _, r := range res.Results {
		assert.Nil(t, r.Distance)
	}
}

func TestShopSearchService_OwnerFilterFromStranger(t *testing.T) {
	var gotQuery domain.ShopQuery
	repo := &mockShopRepo{
		findFn: func(_ context.Context, q domain.ShopQuery, _ domain.ListOptions) ([]domain.Shop, error) {
			gotQuery = q
			return nil, nil
		},
	}
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{Logger: quietLogger()})

	res, err := svc.Search(context.Background(), customer, domain.SearchRequest{Filters: domain.SearchFilters{OwnerID: "v1"}})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeBrowse, res.Mode)
	assert.Equal(t, []domain.ShopStatus{domain.ShopLive}, gotQuery.Statuses)
	assert.Equal(t, "v1", gotQuery.OwnerID)
}

func TestShopSearchService_FilterAssembly(t *testing.T) {
	var gotQuery domain.ShopQuery
	repo := &mockShopRepo{
		findFn: func(_ context.Context, q domain.ShopQuery, _ domain.ListOptions) ([]domain.Shop, error) {
			gotQuery = q
			return nil, nil
		},
	}
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{Logger: quietLogger()})
	admin := domain.Caller{ID: "root", Role: domain.RoleAdmin}

	four := 4.0
	_, err := svc.Search(context.Background(), admin, domain.SearchRequest{Filters: domain.SearchFilters{
		Category:    "Bakery",
		MinRating:   &four,
		PriceBounds: &domain.PriceBounds{Min: 100},
		Locality:    "Hauz Khas Village",
	}})
	require.NoError(t, err)
	assert.Empty(t, gotQuery.Statuses, "admins see every status")
	assert.Equal(t, "Bakery", gotQuery.Category)
	assert.Equal(t, 4.0, *gotQuery.MinRating)
	assert.Equal(t, 100.0, *gotQuery.PriceMin)
	assert.Nil(t, gotQuery.PriceMax)
	assert.Equal(t, "hauz-khas-village", gotQuery.LocalitySlug)

	_, err = svc.Search(context.Background(), admin, domain.SearchRequest{Filters: domain.SearchFilters{
		PriceBounds: &domain.PriceBounds{Min: 500, Max: 100},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestShopSearchService_NonFiniteInputsRejected(t *testing.T) {
	repo := &mockShopRepo{
		findNearFn: func(context.Context, domain.GeoPoint, float64, domain.ShopQuery, domain.ListOptions) ([]domain.ShopWithDistance, error) {
			t.Fatal("store must not be queried")
			return nil, nil
		},
		findFn: func(context.Context, domain.ShopQuery, domain.ListOptions) ([]domain.Shop, error) {
			t.Fatal("store must not be queried")
			return nil, nil
		},
	}
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{Logger: quietLogger()})
	nan := math.NaN()

	for name, req := range map[string]domain.SearchRequest{
		"nan radius":     {Center: &delhi, RadiusMeters: nan},
		"inf radius":     {Center: &delhi, RadiusMeters: math.Inf(1)},
		"nan min rating": {Filters: domain.SearchFilters{MinRating: &nan}},
		"nan min price":  {Filters: domain.SearchFilters{PriceBounds: &domain.PriceBounds{Min: nan, Max: 500}}},
		"inf max price":  {Filters: domain.SearchFilters{PriceBounds: &domain.PriceBounds{Max: math.Inf(1)}}},
		"page overflow":  {Page: math.MaxInt, Limit: usecases.MaxSearchLimit},
	} {
		_, err := svc.Search(context.Background(), customer, req)
		var ve *domain.ValidationError
		assert.ErrorAs(t, err, &ve, name)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, name)
	}
}

func TestTextQueryPredicate(t *testing.T) {
	s := &domain.Shop{Name: "Sharma Sweets", Address: domain.Address{City: "Old Delhi"}}

	assert.True(t, usecases.TextQueryPredicate("Old Delhi").Matches(s))
	assert.True(t, usecases.TextQueryPredicate("sweets delhi").Matches(s))
	assert.False(t, usecases.TextQueryPredicate("sweets old mumbai").Matches(s))
}
