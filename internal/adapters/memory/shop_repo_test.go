package memory_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/localshop/internal/adapters/memory"
	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/core/usecases"
	"github.com/samirrijal/localshop/internal/pkg/geospatial"
)

var delhi = domain.NewGeoPoint(77.2090, 28.6139)

func at(lon, lat float64) *domain.GeoPoint {
	p := domain.NewGeoPoint(lon, lat)
	return &p
}

func fixtures() []domain.Shop {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Shop{
		{ID: "a", Name: "Chaat Corner", Status: domain.ShopLive, Rating: 3.9, Location: at(77.2090, 28.6229), CreatedAt: base},
		{ID: "b", Name: "Paratha Wala", Status: domain.ShopLive, Rating: 4.6, Location: at(77.2090, 28.6364), CreatedAt: base.Add(time.Hour)},
		{ID: "c", Name: "Far Dhaba", Status: domain.ShopLive, Rating: 4.0, Location: at(77.2090, 28.6499), CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d", Name: "Hidden Kitchen", Status: domain.ShopPending, Location: at(77.2091, 28.6140), CreatedAt: base.Add(3 * time.Hour)},
		{ID: "e", Name: "Unmapped Stall", Status: domain.ShopLive, CreatedAt: base.Add(4 * time.Hour)},
	}
}

func TestShopRepo_FindNear_RadiusAndOrder(t *testing.T) {
	repo := memory.NewShopRepo(fixtures()...)
	q := domain.ShopQuery{Statuses: []domain.ShopStatus{domain.ShopLive}}

	hits, err := repo.FindNear(context.Background(), delhi, 3000, q, domain.ListOptions{Sort: domain.SortProximity, Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)
	assert.Less(t, *hits[0].Distance, *hits[1].Distance)

	q.Near = &domain.Proximity{Center: delhi, RadiusMeters: 3000}
	n, err := repo.CountMatching(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestShopRepo_NativeDistanceAgreesWithEngine(t *testing.T) {
	repo := memory.NewShopRepo(fixtures()...)
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{})

	res, err := svc.Search(context.Background(), domain.Caller{}, domain.SearchRequest{Center: &delhi, RadiusMeters: 5000})
	require.NoError(t, err)

	native, err := repo.FindNear(context.Background(), delhi, 5000,
		domain.ShopQuery{Statuses: []domain.ShopStatus{domain.ShopLive}}, domain.ListOptions{Sort: domain.SortProximity, Limit: 20})
	require.NoError(t, err)
	require.Len(t, res.Results, len(native))

	for i := range native {
		assert.Equal(t, native[i].ID, res.Results[i].ID)
		assert.Equal(t, geospatial.RoundKm(*native[i].Distance*1000), *res.Results[i].Distance)
	}
	assert.Equal(t, []float64{1.0, 2.5, 4.0}, []float64{*res.Results[0].Distance, *res.Results[1].Distance, *res.Results[2].Distance})
}

func TestShopRepo_Find_SortAndPage(t *testing.T) {
	repo := memory.NewShopRepo(fixtures()...)

	newest, err := repo.Find(context.Background(), domain.ShopQuery{}, domain.ListOptions{Sort: domain.SortNewest, Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "e", newest[0].ID)
	assert.Equal(t, "d", newest[1].ID)

	rated, err := repo.Find(context.Background(), domain.ShopQuery{}, domain.ListOptions{Sort: domain.SortRating, Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rated, 1)
	assert.Equal(t, "c", rated[0].ID)

	none, err := repo.Find(context.Background(), domain.ShopQuery{}, domain.ListOptions{Skip: 50, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestShopRepo_SaveIsolatesCopies(t *testing.T) {
	repo := memory.NewShopRepo()
	s := &domain.Shop{ID: "x", Tags: []string{"veg"}, Location: at(77, 28)}
	require.NoError(t, repo.Save(context.Background(), s))

	s.Tags[0] = "mutated"
	s.Location.Lat = 0

	got, err := repo.GetByID(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"veg"}, got.Tags)
	assert.Equal(t, 28.0, got.Location.Lat)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShopRepo_FindNear_AcrossAntimeridian(t *testing.T) {
	// Taveuni straddles 180°: these two points are about 2 km apart.
	east := domain.NewGeoPoint(179.99, -16.8)
	repo := memory.NewShopRepo(
		domain.Shop{ID: "w", Name: "Date Line Store", Status: domain.ShopLive, Location: at(-179.99, -16.8)},
		domain.Shop{ID: "far", Name: "Suva Market", Status: domain.ShopLive, Location: at(178.44, -18.14)},
	)

	hits, err := repo.FindNear(context.Background(), east, 5000, domain.ShopQuery{}, domain.ListOptions{Sort: domain.SortProximity, Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "w", hits[0].ID)
	assert.InDelta(t, 2.1, *hits[0].Distance, 0.1)
}

func TestShopRepo_Find_NegativeSkipStartsAtFirstPage(t *testing.T) {
	repo := memory.NewShopRepo(fixtures()...)

	got, err := repo.Find(context.Background(), domain.ShopQuery{}, domain.ListOptions{Sort: domain.SortNewest, Skip: -200, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e", got[0].ID)
}

func TestShopSearch_NonFiniteRadiusRejected(t *testing.T) {
	repo := memory.NewShopRepo(
		domain.Shop{ID: "near", Name: "Chaat Corner", Status: domain.ShopLive, Location: at(77.2090, 28.6229)},
		domain.Shop{ID: "mumbai", Name: "Vada Pav Stall", Status: domain.ShopLive, Location: at(72.8777, 19.0760)},
	)
	svc := usecases.NewShopSearchService(repo, nil, usecases.SearchOptions{})

	for _, radius := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		res, err := svc.Search(context.Background(), domain.Caller{}, domain.SearchRequest{Center: &delhi, RadiusMeters: radius})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "radius %v", radius)
		assert.Nil(t, res)
	}

	res, err := svc.Search(context.Background(), domain.Caller{}, domain.SearchRequest{Center: &delhi, RadiusMeters: 5000})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "near", res.Results[0].ID)
}

func TestShopSearch_HugePageRejected(t *testing.T) {
	svc := usecases.NewShopSearchService(memory.NewShopRepo(fixtures()...), nil, usecases.SearchOptions{})

	_, err := svc.Search(context.Background(), domain.Caller{}, domain.SearchRequest{Page: math.MaxInt, Limit: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	res, err := svc.Search(context.Background(), domain.Caller{}, domain.SearchRequest{Page: usecases.MaxSearchPage, Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, usecases.MaxSearchPage, res.Page)
}
