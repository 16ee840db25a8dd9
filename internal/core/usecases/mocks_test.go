package usecases_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/localshop/internal/core/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock geocoding provider ---

type mockProvider struct {
	name           string
	available      bool
	geocodeFn      func(ctx context.Context, address string) (domain.AddressCandidate, error)
	autocompleteFn func(ctx context.Context, text string, bias *domain.GeoPoint, limit int) ([]domain.AddressCandidate, error)
	reverseFn      func(ctx context.Context, lat, lon float64) (domain.AddressCandidate, error)
	calls          atomic.Int32
}

func (m *mockProvider) Name() string    { return m.name }
func (m *mockProvider) Available() bool { return m.available }

func (m *mockProvider) Geocode(ctx context.Context, address string) (domain.AddressCandidate, error) {
	m.calls.Add(1)
	if m.geocodeFn != nil {
		return m.geocodeFn(ctx, address)
	}
	return domain.AddressCandidate{}, &domain.ProviderError{Provider: m.name, Reason: "no results"}
}

func (m *mockProvider) Autocomplete(ctx context.Context, text string, bias *domain.GeoPoint, limit int) ([]domain.AddressCandidate, error) {
	m.calls.Add(1)
	if m.autocompleteFn != nil {
		return m.autocompleteFn(ctx, text, bias, limit)
	}
	return nil, nil
}

func (m *mockProvider) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.AddressCandidate, error) {
	m.calls.Add(1)
	if m.reverseFn != nil {
		return m.reverseFn(ctx, lat, lon)
	}
	return domain.AddressCandidate{}, &domain.ProviderError{Provider: m.name, Reason: "no results"}
}

// geocodeOnly exposes just ports.GeocodeProvider.
type geocodeOnly struct{ p *mockProvider }

func (g geocodeOnly) Name() string    { return g.p.Name() }
func (g geocodeOnly) Available() bool { return g.p.Available() }
func (g geocodeOnly) Geocode(ctx context.Context, address string) (domain.AddressCandidate, error) {
	return g.p.Geocode(ctx, address)
}

func candidateAt(provider string, lon, lat float64, label string) domain.AddressCandidate {
	return domain.AddressCandidate{
		Coordinates:      domain.NewGeoPoint(lon, lat),
		FormattedAddress: label,
		Provider:         provider,
		Confidence:       0.5,
	}
}

func succeedWith(c domain.AddressCandidate) func(context.Context, string) (domain.AddressCandidate, error) {
	return func(context.Context, string) (domain.AddressCandidate, error) { return c, nil }
}

// --- Mock shared cache ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock ShopRepository ---

type mockShopRepo struct {
	findNearFn      func(ctx context.Context, center domain.GeoPoint, maxDistance float64, q domain.ShopQuery, opts domain.ListOptions) ([]domain.ShopWithDistance, error)
	findFn          func(ctx context.Context, q domain.ShopQuery, opts domain.ListOptions) ([]domain.Shop, error)
	countMatchingFn func(ctx context.Context, q domain.ShopQuery) (int, error)
	saveFn          func(ctx context.Context, shop *domain.Shop) error
	getByIDFn       func(ctx context.Context, id string) (*domain.Shop, error)
}

func (m *mockShopRepo) FindNear(ctx context.Context, center domain.GeoPoint, maxDistance float64, q domain.ShopQuery, opts domain.ListOptions) ([]domain.ShopWithDistance, error) {
	if m.findNearFn != nil {
		return m.findNearFn(ctx, center, maxDistance, q, opts)
	}
	return nil, nil
}

func (m *mockShopRepo) Find(ctx context.Context, q domain.ShopQuery, opts domain.ListOptions) ([]domain.Shop, error) {
	if m.findFn != nil {
		return m.findFn(ctx, q, opts)
	}
	return nil, nil
}

func (m *mockShopRepo) CountMatching(ctx context.Context, q domain.ShopQuery) (int, error) {
	if m.countMatchingFn != nil {
		return m.countMatchingFn(ctx, q)
	}
	return 0, nil
}

func (m *mockShopRepo) Save(ctx context.Context, shop *domain.Shop) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, shop)
	}
	return nil
}

func (m *mockShopRepo) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

// --- Mock resolver ---

type mockResolver struct {
	resolveFn func(ctx context.Context, caller domain.Caller, text string) (domain.AddressCandidate, error)
	calls     atomic.Int32
}

func (m *mockResolver) Resolve(ctx context.Context, caller domain.Caller, text string) (domain.AddressCandidate, error) {
	m.calls.Add(1)
	if m.resolveFn != nil {
		return m.resolveFn(ctx, caller, text)
	}
	return domain.AddressCandidate{}, &domain.ResolutionFailedError{}
}
