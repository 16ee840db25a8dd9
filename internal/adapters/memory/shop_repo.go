// Package memory is an in-process shop store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/pkg/geospatial"
)

// ShopRepo implements ports.ShopRepository over a map. Distances are
// haversine, reported in km without rounding.
type ShopRepo struct {
	mu    sync.RWMutex
	shops map[string]domain.Shop
}

// NewShopRepo creates an empty store seeded with shops.
func NewShopRepo(seed ...domain.Shop) *ShopRepo {
	r := &ShopRepo{shops: make(map[string]domain.Shop, len(seed))}
	for i := range seed {
		r.shops[seed[i].ID] = clone(seed[i])
	}
	return r
}

func (r *ShopRepo) Save(_ context.Context, s *domain.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shops[s.ID] = clone(*s)
	return nil
}

func (r *ShopRepo) GetByID(_ context.Context, id string) (*domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := clone(s)
	return &c, nil
}

func (r *ShopRepo) FindNear(_ context.Context, center domain.GeoPoint, maxDistanceMeters float64, q domain.ShopQuery, opts domain.ListOptions) ([]domain.ShopWithDistance, error) {
	q.Near = &domain.Proximity{Center: center, RadiusMeters: maxDistanceMeters}

	r.mu.RLock()
	hits := r.collect(q)
	r.mu.RUnlock()

	sortHits(hits, opts.Sort)
	return page(hits, opts), nil
}

func (r *ShopRepo) Find(_ context.Context, q domain.ShopQuery, opts domain.ListOptions) ([]domain.Shop, error) {
	q.Near = nil

	r.mu.RLock()
	hits := r.collect(q)
	r.mu.RUnlock()

	sortHits(hits, opts.Sort)
	paged := page(hits, opts)
	out := make([]domain.Shop, len(paged))
	for i := range paged {
		out[i] = paged[i].Shop
	}
	return out, nil
}

func (r *ShopRepo) CountMatching(_ context.Context, q domain.ShopQuery) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collect(q)), nil
}

// collect returns clones of every shop matching q. Callers hold r.mu.
func (r *ShopRepo) collect(q domain.ShopQuery) []domain.ShopWithDistance {
	var (
		minLat, minLon, maxLat, maxLon float64
		wraps                          bool
		near                           = q.Near
	)
	if near != nil {
		minLat, minLon, maxLat, maxLon = geospatial.BoundingBox(near.Center.Lat, near.Center.Lon, near.RadiusMeters)
		wraps = minLon < -180 || maxLon > 180
	}

	var out []domain.ShopWithDistance
	for _, s := range r.shops {
		if !q.Matches(&s) {
			continue
		}
		hit := domain.ShopWithDistance{Shop: clone(s)}
		if near != nil {
			loc := s.Location
			if loc == nil || loc.Lat < minLat || loc.Lat > maxLat {
				continue
			}
			// A box crossing the antimeridian cannot be tested on raw longitude.
			if !wraps && (loc.Lon < minLon || loc.Lon > maxLon) {
				continue
			}
			meters := geospatial.Haversine(near.Center.Lat, near.Center.Lon, loc.Lat, loc.Lon)
			if meters > near.RadiusMeters {
				continue
			}
			km := meters / 1000
			hit.Distance = &km
		}
		out = append(out, hit)
	}
	return out
}

func sortHits(hits []domain.ShopWithDistance, order domain.SortOrder) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		switch {
		case order == domain.SortProximity && a.Distance != nil && b.Distance != nil && *a.Distance != *b.Distance:
			return *a.Distance < *b.Distance
		case order == domain.SortRating && a.Rating != b.Rating:
			return a.Rating > b.Rating
		case order != domain.SortProximity && !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func page(hits []domain.ShopWithDistance, opts domain.ListOptions) []domain.ShopWithDistance {
	skip := opts.Offset()
	if skip >= len(hits) {
		return nil
	}
	hits = hits[skip:]
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits
}

func clone(s domain.Shop) domain.Shop {
	if s.Tags != nil {
		s.Tags = append([]string(nil), s.Tags...)
	}
	if s.Location != nil {
		p := *s.Location
		s.Location = &p
	}
	return s
}
