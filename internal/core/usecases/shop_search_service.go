package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/core/ports"
	"github.com/samirrijal/localshop/internal/pkg/address"
	"github.com/samirrijal/localshop/internal/pkg/geospatial"
	"github.com/samirrijal/localshop/internal/pkg/metrics"
	"github.com/samirrijal/localshop/internal/pkg/telemetry"
)

const (
	DefaultSearchLimit  = 20
	MaxSearchLimit      = 100
	DefaultSearchRadius = 5000.0
	MaxSearchRadius     = 50000.0
	// MaxSearchPage keeps (page-1)*limit far from int overflow.
	MaxSearchPage = 100_000
)

// SearchOptions configures a ShopSearchService. Zero values take defaults.
type SearchOptions struct {
	DefaultRadius float64
	MaxRadius     float64
	Logger        *slog.Logger
}

// ShopSearchService answers proximity, text and browse searches over shops.
type ShopSearchService struct {
	shops         ports.ShopRepository
	resolver      ports.LocationResolver
	defaultRadius float64
	maxRadius     float64
	logger        *slog.Logger
	tracer        trace.Tracer
}

// NewShopSearchService creates a ShopSearchService. resolver may be nil, in
// which case text queries always use the tokenized text search.
func NewShopSearchService(shops ports.ShopRepository, resolver ports.LocationResolver, opts SearchOptions) *ShopSearchService {
	if opts.DefaultRadius <= 0 {
		opts.DefaultRadius = DefaultSearchRadius
	}
	if opts.MaxRadius <= 0 {
		opts.MaxRadius = MaxSearchRadius
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ShopSearchService{
		shops:         shops,
		resolver:      resolver,
		defaultRadius: opts.DefaultRadius,
		maxRadius:     opts.MaxRadius,
		logger:        opts.Logger,
		tracer:        telemetry.Tracer("search"),
	}
}

// Search dispatches req to the owner, geospatial, text or browse branch.
func (s *ShopSearchService) Search(ctx context.Context, caller domain.Caller, req domain.SearchRequest) (*domain.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "ShopSearchService.Search")
	defer span.End()

	page, limit, err := normalizePage(req.Page, req.Limit)
	if err != nil {
		return nil, err
	}
	if req.Sort == "" {
		req.Sort = domain.SortProximity
	}

	q, err := buildQuery(caller, req.Filters)
	if err != nil {
		return nil, err
	}

	var res *domain.SearchResult
	text := strings.TrimSpace(req.TextQuery)
	switch {
	case req.Filters.OwnerID != "" && (caller.IsAdmin() || caller.Owns(req.Filters.OwnerID)):
		res, err = s.list(ctx, q, domain.SortNewest, page, limit, domain.ModeOwner)
	case req.Center != nil:
		res, err = s.near(ctx, *req.Center, req.RadiusMeters, q, req.Sort, page, limit, domain.ModeGeo)
	case text != "":
		res, err = s.byText(ctx, caller, text, req, q, page, limit)
	default:
		sortBy := domain.SortNewest
		if req.Sort == domain.SortRating {
			sortBy = domain.SortRating
		}
		res, err = s.list(ctx, q, sortBy, page, limit, domain.ModeBrowse)
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("mode", string(res.Mode)),
		attribute.Int("total", res.Total),
	)
	metrics.SearchRequests.WithLabelValues(string(res.Mode)).Inc()
	return res, nil
}

func (s *ShopSearchService) byText(ctx context.Context, caller domain.Caller, text string, req domain.SearchRequest, q domain.ShopQuery, page, limit int) (*domain.SearchResult, error) {
	if s.resolver != nil {
		cand, err := s.resolver.Resolve(ctx, caller, text)
		if err == nil {
			return s.near(ctx, cand.Coordinates, req.RadiusMeters, q, req.Sort, page, limit, domain.ModeGeocoded)
		}
		s.logger.InfoContext(ctx, "geocoding failed, falling back to text search", "query", text, "error", err)
	} else {
		s.logger.InfoContext(ctx, "no resolver, using text search", "query", text)
	}
	metrics.SearchFallbacks.Inc()

	pred := TextQueryPredicate(text)
	q.Text = &pred

	sortBy := domain.SortNewest
	if req.Sort == domain.SortRating {
		sortBy = domain.SortRating
	}
	return s.list(ctx, q, sortBy, page, limit, domain.ModeText)
}

// TextQueryPredicate narrows on every token and, for queries of at most two
// tokens, also accepts the whole phrase in any single field.
func TextQueryPredicate(text string) domain.TextPredicate {
	tokens := address.Tokenize(text)
	narrow := domain.AllTokensMatch(tokens, domain.SearchableFields...)
	if len(tokens) > 2 {
		return narrow
	}
	return domain.EitherText(narrow, domain.AnyFieldContains(address.NormalizeQuery(text), domain.SearchableFields...))
}

func (s *ShopSearchService) near(ctx context.Context, center domain.GeoPoint, radius float64, q domain.ShopQuery, sortBy domain.SortOrder, page, limit int, mode domain.SearchMode) (*domain.SearchResult, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	switch {
	case !finite(radius):
		return nil, &domain.ValidationError{Field: "radius", Reason: "must be a finite number"}
	case radius < 0:
		return nil, &domain.ValidationError{Field: "radius", Reason: "must not be negative"}
	case radius == 0:
		radius = s.defaultRadius
	case radius > s.maxRadius:
		radius = s.maxRadius
	}

	q.Near = &domain.Proximity{Center: center, RadiusMeters: radius}
	opts := domain.ListOptions{Sort: sortBy, Skip: (page - 1) * limit, Limit: limit}

	hits, err := s.shops.FindNear(ctx, center, radius, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find near: %w", err)
	}
	total, err := s.shops.CountMatching(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count near: %w", err)
	}

	results := make([]domain.ShopWithDistance, 0, len(hits))
	for _, h := range hits {
		if h.Location == nil {
			continue
		}
		meters := geospatial.Haversine(center.Lat, center.Lon, h.Location.Lat, h.Location.Lon)
		if meters > radius {
			continue
		}
		km := geospatial.RoundKm(meters)
		h.Distance = &km
		results = append(results, h)
	}

	c := center
	return &domain.SearchResult{
		Results: results,
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pageCount(total, limit),
		Mode:    mode,
		Center:  &c,
	}, nil
}

func (s *ShopSearchService) list(ctx context.Context, q domain.ShopQuery, sortBy domain.SortOrder, page, limit int, mode domain.SearchMode) (*domain.SearchResult, error) {
	opts := domain.ListOptions{Sort: sortBy, Skip: (page - 1) * limit, Limit: limit}

	shops, err := s.shops.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find shops: %w", err)
	}
	total, err := s.shops.CountMatching(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count shops: %w", err)
	}

	results := make([]domain.ShopWithDistance, len(shops))
	for i := range shops {
		results[i] = domain.ShopWithDistance{Shop: shops[i]}
	}
	return &domain.SearchResult{
		Results: results,
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pageCount(total, limit),
		Mode:    mode,
	}, nil
}

// buildQuery turns caller filters into a store predicate. Only admins and
// the owner named in the filter see shops that are not live.
func buildQuery(caller domain.Caller, f domain.SearchFilters) (domain.ShopQuery, error) {
	q := domain.ShopQuery{
		Category:   strings.TrimSpace(f.Category),
		CategoryID: strings.TrimSpace(f.CategoryID),
		PriceRange: strings.TrimSpace(f.PriceRange),
		OwnerID:    strings.TrimSpace(f.OwnerID),
	}

	privileged := caller.IsAdmin() || (q.OwnerID != "" && caller.Owns(q.OwnerID))
	if !privileged {
		q.Statuses = []domain.ShopStatus{domain.ShopLive}
	}

	if f.MinRating != nil {
		if !finite(*f.MinRating) || *f.MinRating < 0 || *f.MinRating > 5 {
			return q, &domain.ValidationError{Field: "minRating", Reason: "must be between 0 and 5"}
		}
		r := *f.MinRating
		q.MinRating = &r
	}
	if b := f.PriceBounds; b != nil {
		if !finite(b.Min) || !finite(b.Max) {
			return q, &domain.ValidationError{Field: "price", Reason: "must be finite numbers"}
		}
		if b.Min < 0 || b.Max < 0 || (b.Max > 0 && b.Min > b.Max) {
			return q, &domain.ValidationError{Field: "price", Reason: "minPrice must not exceed maxPrice"}
		}
		if b.Min > 0 {
			lo := b.Min
			q.PriceMin = &lo
		}
		if b.Max > 0 {
			hi := b.Max
			q.PriceMax = &hi
		}
	}
	if f.Locality != "" {
		q.LocalitySlug = address.Slugify(f.Locality)
	}
	return q, nil
}

func normalizePage(page, limit int) (int, int, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxSearchPage {
		return 0, 0, &domain.ValidationError{Field: "page", Reason: fmt.Sprintf("must not exceed %d", MaxSearchPage)}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return page, limit, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func pageCount(total, limit int) int {
	if total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
