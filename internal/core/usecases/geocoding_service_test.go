package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/core/ports"
	"github.com/samirrijal/localshop/internal/core/usecases"
	"github.com/samirrijal/localshop/internal/pkg/cache"
	"github.com/samirrijal/localshop/internal/pkg/ratelimit"
)

var customer = domain.Caller{ID: "u1", Role: domain.RoleCustomer, Key: "u1"}

func newGeocoder(providers []ports.GeocodeProvider, perCaller int, shared ports.CacheService) *usecases.GeocodingService {
	clock := clockwork.NewFakeClock()
	return usecases.NewGeocodingService(providers, usecases.GeocodingOptions{
		Limiter: ratelimit.New(ratelimit.Config{PerCaller: perCaller, Global: 1000, Window: time.Minute}, clock, quietLogger()),
		Detail:  cache.New[domain.AddressCandidate](100, clock),
		Suggest: cache.New[[]domain.AddressCandidate](100, clock),
		Shared:  shared,
		Logger:  quietLogger(),
	})
}

func TestGeocodingService_Resolve_FallsBackInOrder(t *testing.T) {
	first := &mockProvider{name: "mappls", available: true}
	second := &mockProvider{name: "google", available: true,
		geocodeFn: succeedWith(candidateAt("google", 77.2090, 28.6139, "India Gate"))}
	third := &mockProvider{name: "nominatim", available: true}

	svc := newGeocoder([]ports.GeocodeProvider{first, second, third}, 10, nil)

	got, err := svc.Resolve(context.Background(), customer, "India Gate")
	require.NoError(t, err)
	assert.Equal(t, "google", got.Provider)
	assert.Equal(t, int32(1), first.calls.Load())
	assert.Equal(t, int32(1), second.calls.Load())
	assert.Equal(t, int32(0), third.calls.Load())
}

func TestGeocodingService_Resolve_CachedHitMakesNoCalls(t *testing.T) {
	p := &mockProvider{name: "mappls", available: true,
		geocodeFn: succeedWith(candidateAt("mappls", 77.2090, 28.6139, "Connaught Place"))}

	// One admission per caller per window: a second network attempt would be denied.
	svc := newGeocoder([]ports.GeocodeProvider{p}, 1, nil)

	first, err := svc.Resolve(context.Background(), customer, "Connaught Place")
	require.NoError(t, err)

	second, err := svc.Resolve(context.Background(), customer, "  connaught   PLACE ")
	require.NoError(t, err, "cache hit must not consume admission")
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), p.calls.Load())

	_, err = svc.Resolve(context.Background(), customer, "Karol Bagh")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGeocodingService_Resolve_SkipsUnavailableWithoutAdmission(t *testing.T) {
	off := &mockProvider{name: "mappls", available: false}
	on := &mockProvider{name: "nominatim", available: true,
		geocodeFn: succeedWith(candidateAt("nominatim", 72.8777, 19.076, "Mumbai"))}

	svc := newGeocoder([]ports.GeocodeProvider{off, on}, 1, nil)

	got, err := svc.Resolve(context.Background(), customer, "Mumbai")
	require.NoError(t, err)
	assert.Equal(t, "nominatim", got.Provider)
	assert.Equal(t, int32(0), off.calls.Load())
}

func TestGeocodingService_Resolve_AllFail(t *testing.T) {
	a := &mockProvider{name: "mappls", available: true}
	b := &mockProvider{name: "google", available: true,
		geocodeFn: func(context.Context, string) (domain.AddressCandidate, error) {
			return domain.AddressCandidate{}, &domain.ProviderError{Provider: "google", Reason: "status 500"}
		}}

	svc := newGeocoder([]ports.GeocodeProvider{a, b}, 10, nil)

	_, err := svc.Resolve(context.Background(), customer, "somewhere")
	require.ErrorIs(t, err, domain.ErrResolutionFailed)

	var rf *domain.ResolutionFailedError
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, 2, rf.Attempts)

	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "google", pe.Provider, "last failure is wrapped")
}

func TestGeocodingService_Resolve_NoProviders(t *testing.T) {
	svc := newGeocoder([]ports.GeocodeProvider{&mockProvider{name: "mappls"}}, 10, nil)

	_, err := svc.Resolve(context.Background(), customer, "anywhere")
	require.ErrorIs(t, err, domain.ErrResolutionFailed)
	assert.Contains(t, err.Error(), "no geocoding providers available")
}

func TestGeocodingService_Resolve_RateLimitedBeforeNextProvider(t *testing.T) {
	a := &mockProvider{name: "mappls", available: true}
	b := &mockProvider{name: "google", available: true}

	svc := newGeocoder([]ports.GeocodeProvider{a, b}, 1, nil)

	_, err := svc.Resolve(context.Background(), customer, "Saket")
	var rl *domain.RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, time.Minute, rl.RetryAfter)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestGeocodingService_Resolve_EmptyText(t *testing.T) {
	svc := newGeocoder(nil, 10, nil)
	_, err := svc.Resolve(context.Background(), customer, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGeocodingService_Resolve_SharedTier(t *testing.T) {
	shared := newMockCache()
	want := candidateAt("google", 77.2167, 28.6315, "Janpath")
	data, err := json.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, shared.Set(context.Background(), cache.Key("geocode", "Janpath"), data, 60))

	p := &mockProvider{name: "google", available: true}
	svc := newGeocoder([]ports.GeocodeProvider{p}, 10, shared)

	got, err := svc.Resolve(context.Background(), customer, "Janpath")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(0), p.calls.Load())

	// Fresh resolutions are written through.
	p.geocodeFn = succeedWith(candidateAt("google", 77.1, 28.5, "Saket"))
	_, err = svc.Resolve(context.Background(), customer, "Saket")
	require.NoError(t, err)
	_, err = shared.Get(context.Background(), cache.Key("geocode", "saket"))
	assert.NoError(t, err)
}

func TestGeocodingService_Reverse_SkipsNonReversers(t *testing.T) {
	fwd := &mockProvider{name: "mappls", available: true}
	rev := &mockProvider{name: "nominatim", available: true,
		reverseFn: func(_ context.Context, lat, lon float64) (domain.AddressCandidate, error) {
			return candidateAt("nominatim", lon, lat, "Rajpath"), nil
		}}

	svc := newGeocoder([]ports.GeocodeProvider{geocodeOnly{fwd}, rev}, 1, nil)

	got, err := svc.Reverse(context.Background(), customer, 28.6139, 77.2090)
	require.NoError(t, err)
	assert.Equal(t, "Rajpath", got.FormattedAddress)
	assert.Equal(t, int32(0), fwd.calls.Load())

	_, err = svc.Reverse(context.Background(), customer, 91, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGeocodingService_Autocomplete_MergesDedupesRanks(t *testing.T) {
	a := &mockProvider{name: "mappls", available: true,
		autocompleteFn: func(context.Context, string, *domain.GeoPoint, int) ([]domain.AddressCandidate, error) {
			return []domain.AddressCandidate{
				candidateAt("mappls", 77.2200, 28.6330, "Delhi Cantonment"),
				candidateAt("mappls", 77.2200, 28.6330, "Khan Chacha, Connaught Place"),
			}, nil
		}}
	b := &mockProvider{name: "google", available: true,
		autocompleteFn: func(context.Context, string, *domain.GeoPoint, int) ([]domain.AddressCandidate, error) {
			return []domain.AddressCandidate{
				candidateAt("google", 77.22000001, 28.63300001, "khan chacha,  connaught place"),
				candidateAt("google", 77.2270, 28.6003, "Khan Market"),
			}, nil
		}}
	broken := &mockProvider{name: "nominatim", available: true,
		autocompleteFn: func(context.Context, string, *domain.GeoPoint, int) ([]domain.AddressCandidate, error) {
			return nil, &domain.ProviderError{Provider: "nominatim", Reason: "status 503"}
		}}

	svc := newGeocoder([]ports.GeocodeProvider{a, b, broken}, 10, nil)

	got, err := svc.Autocomplete(context.Background(), customer, "Khan", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Khan Chacha, Connaught Place", got[0].Label())
	assert.Equal(t, "mappls", got[0].Provider, "first seen wins")
	assert.Equal(t, "Khan Market", got[1].Label())
	assert.Equal(t, "Delhi Cantonment", got[2].Label())

	limited, err := svc.Autocomplete(context.Background(), customer, "khan", nil, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGeocodingService_Autocomplete_CachedAndAllFailing(t *testing.T) {
	calls := 0
	p := &mockProvider{name: "google", available: true,
		autocompleteFn: func(context.Context, string, *domain.GeoPoint, int) ([]domain.AddressCandidate, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("boom")
			}
			return []domain.AddressCandidate{candidateAt("google", 77.1, 28.5, "Saket")}, nil
		}}

	svc := newGeocoder([]ports.GeocodeProvider{p}, 10, nil)

	got, err := svc.Autocomplete(context.Background(), customer, "saket", nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	again, err := svc.Autocomplete(context.Background(), customer, "Saket", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, calls)

	empty, err := svc.Autocomplete(context.Background(), customer, "nowhere", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGeocodingService_Autocomplete_CallerCannotCorruptCache(t *testing.T) {
	calls := 0
	p := &mockProvider{name: "google", available: true,
		autocompleteFn: func(context.Context, string, *domain.GeoPoint, int) ([]domain.AddressCandidate, error) {
			calls++
			return []domain.AddressCandidate{candidateAt("google", 77.2, 28.55, "Lajpat Nagar")}, nil
		}}
	svc := newGeocoder([]ports.GeocodeProvider{p}, 10, nil)

	first, err := svc.Autocomplete(context.Background(), customer, "lajpat", nil, 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	first[0].FormattedAddress = "tampered"

	second, err := svc.Autocomplete(context.Background(), customer, "lajpat", nil, 5)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, calls)
	assert.NotEqual(t, "tampered", second[0].FormattedAddress)
	second[0].FormattedAddress = "tampered again"

	third, err := svc.Autocomplete(context.Background(), customer, "lajpat", nil, 5)
	require.NoError(t, err)
	assert.NotEqual(t, "tampered again", third[0].FormattedAddress)
}

func TestGeocodingService_Autocomplete_SlowProviderTimesOut(t *testing.T) {
	slow := &mockProvider{name: "mappls", available: true,
		autocompleteFn: func(ctx context.Context, _ string, _ *domain.GeoPoint, _ int) ([]domain.AddressCandidate, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
	fast := &mockProvider{name: "nominatim", available: true,
		autocompleteFn: func(context.Context, string, *domain.GeoPoint, int) ([]domain.AddressCandidate, error) {
			return []domain.AddressCandidate{candidateAt("nominatim", 77.19, 28.55, "Hauz Khas")}, nil
		}}

	svc := usecases.NewGeocodingService([]ports.GeocodeProvider{slow, fast}, usecases.GeocodingOptions{
		AutocompleteTimeout: 20 * time.Millisecond,
		Logger:              quietLogger(),
	})

	start := time.Now()
	got, err := svc.Autocomplete(context.Background(), customer, "hauz", nil, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGeocodingService_Autocomplete_RateLimited(t *testing.T) {
	p := &mockProvider{name: "google", available: true}
	svc := newGeocoder([]ports.GeocodeProvider{p}, 1, nil)

	_, err := svc.Autocomplete(context.Background(), customer, "a", nil, 5)
	require.NoError(t, err)
	_, err = svc.Autocomplete(context.Background(), customer, "b", nil, 5)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
