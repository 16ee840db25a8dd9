package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/localshop/internal/core/domain"
)

func TestGeoPoint_JSONIsLonLat(t *testing.T) {
	p := domain.NewGeoPoint(77.2090, 28.6139)
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `[77.209, 28.6139]`, string(data))

	var back domain.GeoPoint
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}

func TestGeoPoint_UnmarshalRejectsWrongArity(t *testing.T) {
	var p domain.GeoPoint
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"lat":1,"lon":2}`), &p))
}

func TestGeoPoint_Validate(t *testing.T) {
	assert.NoError(t, domain.NewGeoPoint(-180, 90).Validate())

	err := domain.NewGeoPoint(181, 0).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	assert.Error(t, domain.NewGeoPoint(0, -91).Validate())
}

func biryaniShop() *domain.Shop {
	return &domain.Shop{
		Name:    "Karim's Biryani",
		Address: domain.Address{Raw: "Jama Masjid, Old Delhi", City: "Delhi"},
		Tags:    []string{"mughlai", "house special"},
		Status:  domain.ShopLive,
	}
}

func TestAllTokensMatch_RequiresEveryToken(t *testing.T) {
	s := biryaniShop()

	// "biryani" in name, "house" in tags.
	assert.True(t, domain.AllTokensMatch([]string{"biryani", "house"}, domain.SearchableFields...).Matches(s))
	assert.False(t, domain.AllTokensMatch([]string{"biryani", "pizza"}, domain.SearchableFields...).Matches(s))
}

func TestAnyFieldContains_WholePhrase(t *testing.T) {
	s := biryaniShop()

	assert.True(t, domain.AnyFieldContains("old delhi", domain.SearchableFields...).Matches(s))
	assert.False(t, domain.AnyFieldContains("biryani house", domain.SearchableFields...).Matches(s))
}

func TestEitherText(t *testing.T) {
	s := biryaniShop()
	narrow := domain.AllTokensMatch([]string{"pizza"}, domain.FieldName)
	broad := domain.AnyFieldContains("mughlai", domain.FieldTags)

	assert.True(t, domain.EitherText(narrow, broad).Matches(s))
	assert.False(t, domain.EitherText(narrow).Matches(s))
}

func TestShopQuery_Matches(t *testing.T) {
	four := 4.0
	s := &domain.Shop{
		Status:     domain.ShopPending,
		Category:   "Bakery",
		Rating:     4.5,
		PriceRange: "$$",
		PriceMin:   100,
		PriceMax:   400,
		AreaSlug:   "connaught-place",
		CitySlug:   "new-delhi",
		OwnerID:    "u1",
	}

	assert.True(t, domain.ShopQuery{}.Matches(s))
	assert.False(t, domain.ShopQuery{Statuses: []domain.ShopStatus{domain.ShopLive}}.Matches(s))
	assert.True(t, domain.ShopQuery{Category: "bakery", MinRating: &four}.Matches(s))
	assert.True(t, domain.ShopQuery{LocalitySlug: "new-delhi"}.Matches(s))
	assert.False(t, domain.ShopQuery{OwnerID: "u2"}.Matches(s))

	lo, hi := 450.0, 50.0
	assert.False(t, domain.ShopQuery{PriceMin: &lo}.Matches(s))
	assert.False(t, domain.ShopQuery{PriceMax: &hi}.Matches(s))
}

func TestParseSortOrder(t *testing.T) {
	got, err := domain.ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, domain.SortProximity, got)

	got, err = domain.ParseSortOrder("Rating")
	require.NoError(t, err)
	assert.Equal(t, domain.SortRating, got)

	_, err = domain.ParseSortOrder("price")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRateLimitedError(t *testing.T) {
	err := error(&domain.RateLimitedError{RetryAfter: 1500_000_000})
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	var rl *domain.RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 2, rl.RetryAfterSeconds())
}

func TestResolutionFailedError_Unwrap(t *testing.T) {
	last := &domain.ProviderError{Provider: "google", Reason: "status 500"}
	err := error(&domain.ResolutionFailedError{Attempts: 3, Last: last})

	assert.ErrorIs(t, err, domain.ErrResolutionFailed)
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "google", pe.Provider)
}

func TestListOptions_OffsetNeverNegative(t *testing.T) {
	assert.Equal(t, 0, domain.ListOptions{Skip: -40}.Offset())
	assert.Equal(t, 0, domain.ListOptions{}.Offset())
	assert.Equal(t, 60, domain.ListOptions{Skip: 60}.Offset())
}
