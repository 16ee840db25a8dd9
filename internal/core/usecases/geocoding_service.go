package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/core/ports"
	"github.com/samirrijal/localshop/internal/pkg/address"
	"github.com/samirrijal/localshop/internal/pkg/cache"
	"github.com/samirrijal/localshop/internal/pkg/metrics"
	"github.com/samirrijal/localshop/internal/pkg/ratelimit"
	"github.com/samirrijal/localshop/internal/pkg/telemetry"
)

const (
	DefaultAutocompleteLimit = 5
	MaxAutocompleteLimit     = 20
)

// GeocodingOptions configures a GeocodingService. Zero values take defaults.
type GeocodingOptions struct {
	Limiter *ratelimit.Limiter
	// Detail caches Resolve and Reverse results.
	Detail *cache.LRU[domain.AddressCandidate]
	// Suggest caches Autocomplete results.
	Suggest *cache.LRU[[]domain.AddressCandidate]
	// Shared is an optional second cache tier.
	Shared              ports.CacheService
	DetailTTL           time.Duration
	SuggestTTL          time.Duration
	AutocompleteTimeout time.Duration
	Logger              *slog.Logger
}

// GeocodingService resolves free text and coordinates through an ordered
// chain of providers, with caching and admission control.
type GeocodingService struct {
	providers  []ports.GeocodeProvider
	limiter    *ratelimit.Limiter
	detail     *cache.LRU[domain.AddressCandidate]
	suggest    *cache.LRU[[]domain.AddressCandidate]
	shared     ports.CacheService
	detailTTL  time.Duration
	suggestTTL time.Duration
	acTimeout  time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewGeocodingService creates a GeocodingService over providers, which are
// tried in slice order.
func NewGeocodingService(providers []ports.GeocodeProvider, opts GeocodingOptions) *GeocodingService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(ratelimit.DefaultConfig(), nil, opts.Logger)
	}
	if opts.Detail == nil {
		opts.Detail = cache.New[domain.AddressCandidate](1000, nil)
	}
	if opts.Suggest == nil {
		opts.Suggest = cache.New[[]domain.AddressCandidate](200, nil)
	}
	if opts.DetailTTL <= 0 {
		opts.DetailTTL = 30 * time.Minute
	}
	if opts.SuggestTTL <= 0 {
		opts.SuggestTTL = 5 * time.Minute
	}
	if opts.AutocompleteTimeout <= 0 {
		opts.AutocompleteTimeout = 3 * time.Second
	}
	return &GeocodingService{
		providers:  providers,
		limiter:    opts.Limiter,
		detail:     opts.Detail,
		suggest:    opts.Suggest,
		shared:     opts.Shared,
		detailTTL:  opts.DetailTTL,
		suggestTTL: opts.SuggestTTL,
		acTimeout:  opts.AutocompleteTimeout,
		logger:     opts.Logger,
		tracer:     telemetry.Tracer("geocoding"),
	}
}

// Resolve returns the first successful forward geocode for text.
// A cache hit consumes no admission.
func (s *GeocodingService) Resolve(ctx context.Context, caller domain.Caller, text string) (domain.AddressCandidate, error) {
	if address.NormalizeQuery(text) == "" {
		return domain.AddressCandidate{}, &domain.ValidationError{Field: "address", Reason: "must not be empty"}
	}

	ctx, span := s.tracer.Start(ctx, "GeocodingService.Resolve")
	defer span.End()

	key := cache.Key("geocode", text)
	if cand, ok := s.cachedDetail(ctx, "geocode", key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return cand, nil
	}

	cand, err := s.chain(ctx, caller, "geocode", s.providers, func(ctx context.Context, p ports.GeocodeProvider) (domain.AddressCandidate, error) {
		return p.Geocode(ctx, text)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.AddressCandidate{}, err
	}

	s.storeDetail(ctx, key, cand)
	return cand, nil
}

// Reverse resolves coordinates to the nearest address with the same
// fallback, admission and caching rules as Resolve.
func (s *GeocodingService) Reverse(ctx context.Context, caller domain.Caller, lat, lon float64) (domain.AddressCandidate, error) {
	if err := domain.NewGeoPoint(lon, lat).Validate(); err != nil {
		return domain.AddressCandidate{}, err
	}

	ctx, span := s.tracer.Start(ctx, "GeocodingService.Reverse")
	defer span.End()

	key := cache.Key("reverse", lat, lon)
	if cand, ok := s.cachedDetail(ctx, "reverse", key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return cand, nil
	}

	var reversers []ports.GeocodeProvider
	for _, p := range s.providers {
		if _, ok := p.(ports.ReverseGeocoder); ok {
			reversers = append(reversers, p)
		}
	}

	cand, err := s.chain(ctx, caller, "reverse", reversers, func(ctx context.Context, p ports.GeocodeProvider) (domain.AddressCandidate, error) {
		return p.(ports.ReverseGeocoder).ReverseGeocode(ctx, lat, lon)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.AddressCandidate{}, err
	}

	s.storeDetail(ctx, key, cand)
	return cand, nil
}

type attemptFunc func(ctx context.Context, p ports.GeocodeProvider) (domain.AddressCandidate, error)

// chain tries each available provider in order, admitting the caller before
// every attempt.
func (s *GeocodingService) chain(ctx context.Context, caller domain.Caller, op string, providers []ports.GeocodeProvider, attempt attemptFunc) (domain.AddressCandidate, error) {
	attempts := 0
	var last error

	for _, p := range providers {
		if !p.Available() {
			continue
		}

		if d := s.limiter.Admit(caller.RateKey()); !d.Allowed {
			metrics.RateLimitDenials.WithLabelValues(op).Inc()
			metrics.GeocodeResolutions.WithLabelValues(op, "rate_limited").Inc()
			return domain.AddressCandidate{}, &domain.RateLimitedError{RetryAfter: d.RetryAfter}
		}

		cand, err := s.try(ctx, p, op, attempt)
		if errors.Is(err, domain.ErrProviderUnavailable) {
			continue
		}
		attempts++
		if err != nil {
			s.logger.WarnContext(ctx, "geocoding provider failed",
				"provider", p.Name(),
				"operation", op,
				"attempt", attempts,
				"error", err,
			)
			last = err
			continue
		}

		metrics.GeocodeResolutions.WithLabelValues(op, "resolved").Inc()
		return cand, nil
	}

	metrics.GeocodeResolutions.WithLabelValues(op, "failed").Inc()
	if attempts == 0 {
		return domain.AddressCandidate{}, &domain.ResolutionFailedError{Last: errors.New("no geocoding providers available")}
	}
	return domain.AddressCandidate{}, &domain.ResolutionFailedError{Attempts: attempts, Last: last}
}

func (s *GeocodingService) try(ctx context.Context, p ports.GeocodeProvider, op string, attempt attemptFunc) (domain.AddressCandidate, error) {
	ctx, span := s.tracer.Start(ctx, "provider."+op, trace.WithAttributes(
		attribute.String("provider", p.Name()),
	))
	defer span.End()

	cand, err := attempt(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return cand, err
}

// Autocomplete fans text out to every available provider concurrently and
// merges the suggestions. Provider failures are logged and ignored, so the
// worst case is an empty list.
func (s *GeocodingService) Autocomplete(ctx context.Context, caller domain.Caller, text string, bias *domain.GeoPoint, limit int) ([]domain.AddressCandidate, error) {
	query := address.NormalizeQuery(text)
	if query == "" {
		return nil, &domain.ValidationError{Field: "q", Reason: "must not be empty"}
	}
	if bias != nil {
		if err := bias.Validate(); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = DefaultAutocompleteLimit
	}
	if limit > MaxAutocompleteLimit {
		limit = MaxAutocompleteLimit
	}

	ctx, span := s.tracer.Start(ctx, "GeocodingService.Autocomplete")
	defer span.End()

	var biasLat, biasLon *float64
	if bias != nil {
		biasLat, biasLon = &bias.Lat, &bias.Lon
	}
	key := cache.Key("autocomplete", query, biasLat, biasLon, limit)
	if hit, ok := s.suggest.Get(key); ok {
		metrics.CacheHits.WithLabelValues("autocomplete").Inc()
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return slices.Clone(hit), nil
	}
	metrics.CacheMisses.WithLabelValues("autocomplete").Inc()

	type source struct {
		name string
		ac   ports.Autocompleter
	}
	var sources []source
	for _, p := range s.providers {
		if ac, ok := p.(ports.Autocompleter); ok && p.Available() {
			sources = append(sources, source{name: p.Name(), ac: ac})
		}
	}
	if len(sources) == 0 {
		return []domain.AddressCandidate{}, nil
	}

	if d := s.limiter.Admit(caller.RateKey()); !d.Allowed {
		metrics.RateLimitDenials.WithLabelValues("autocomplete").Inc()
		return nil, &domain.RateLimitedError{RetryAfter: d.RetryAfter}
	}

	results := make([][]domain.AddressCandidate, len(sources))
	errs := make([]error, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src source) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.acTimeout)
			defer cancel()
			results[i], errs[i] = src.ac.Autocomplete(pctx, text, bias, limit)
		}(i, src)
	}
	wg.Wait()

	succeeded := false
	for i, err := range errs {
		if err != nil {
			s.logger.WarnContext(ctx, "autocomplete provider failed", "provider", sources[i].name, "error", err)
			continue
		}
		succeeded = true
	}

	merged := rankSuggestions(query, results, limit)
	if succeeded {
		s.suggest.Set(key, slices.Clone(merged), s.suggestTTL)
		metrics.GeocodeResolutions.WithLabelValues("autocomplete", "resolved").Inc()
	} else {
		metrics.GeocodeResolutions.WithLabelValues("autocomplete", "failed").Inc()
	}
	return merged, nil
}

// rankSuggestions concatenates per-provider results in priority order,
// drops duplicates keeping the first seen, and orders by exact substring
// match, then provider priority, then label length.
func rankSuggestions(query string, perProvider [][]domain.AddressCandidate, limit int) []domain.AddressCandidate {
	type ranked struct {
		cand     domain.AddressCandidate
		label    string
		priority int
		exact    bool
	}

	seen := make(map[string]struct{})
	var all []ranked
	for priority, cands := range perProvider {
		for _, c := range cands {
			label := address.NormalizeQuery(c.Label())
			k := fmt.Sprintf("%.5f|%.5f|%s", c.Coordinates.Lat, c.Coordinates.Lon, label)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			all = append(all, ranked{
				cand:     c,
				label:    label,
				priority: priority,
				exact:    strings.Contains(label, query),
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.exact != b.exact {
			return a.exact
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return len(a.label) < len(b.label)
	})

	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]domain.AddressCandidate, len(all))
	for i, r := range all {
		out[i] = r.cand
	}
	return out
}

func (s *GeocodingService) cachedDetail(ctx context.Context, op, key string) (domain.AddressCandidate, bool) {
	if cand, ok := s.detail.Get(key); ok {
		metrics.CacheHits.WithLabelValues(op).Inc()
		metrics.GeocodeResolutions.WithLabelValues(op, "cached").Inc()
		return cand, true
	}
	if s.shared != nil {
		if data, err := s.shared.Get(ctx, key); err == nil {
			var cand domain.AddressCandidate
			if err := json.Unmarshal(data, &cand); err == nil {
				s.detail.Set(key, cand, s.detailTTL)
				metrics.CacheHits.WithLabelValues(op).Inc()
				metrics.GeocodeResolutions.WithLabelValues(op, "cached").Inc()
				return cand, true
			}
		}
	}
	metrics.CacheMisses.WithLabelValues(op).Inc()
	return domain.AddressCandidate{}, false
}

func (s *GeocodingService) storeDetail(ctx context.Context, key string, cand domain.AddressCandidate) {
	s.detail.Set(key, cand, s.detailTTL)
	if s.shared != nil {
		if data, err := json.Marshal(cand); err == nil {
			_ = s.shared.Set(ctx, key, data, int(s.detailTTL.Seconds()))
		}
	}
}
