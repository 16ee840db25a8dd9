package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/core/ports"
	"github.com/samirrijal/localshop/internal/pkg/address"
	"github.com/samirrijal/localshop/internal/pkg/metrics"
)

// systemCaller is the identity background geocoding runs under.
var systemCaller = domain.Caller{ID: "system", Role: domain.RoleAdmin, Key: "system:geoworker"}

// ShopServiceOptions configures a ShopService.
type ShopServiceOptions struct {
	Publisher ports.EventPublisher
	Scheduler ports.GeocodeScheduler
	// AsyncRetry saves rate-limited shops without coordinates and queues a
	// background geocode instead of failing the request.
	AsyncRetry bool
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// ShopService creates and updates shops, resolving their addresses.
type ShopService struct {
	shops      ports.ShopRepository
	resolver   ports.LocationResolver
	publisher  ports.EventPublisher
	scheduler  ports.GeocodeScheduler
	asyncRetry bool
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewShopService creates a new ShopService.
func NewShopService(shops ports.ShopRepository, resolver ports.LocationResolver, opts ShopServiceOptions) *ShopService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ShopService{
		shops:      shops,
		resolver:   resolver,
		publisher:  opts.Publisher,
		scheduler:  opts.Scheduler,
		asyncRetry: opts.AsyncRetry && opts.Scheduler != nil,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
}

// Get returns a single shop.
func (s *ShopService) Get(ctx context.Context, id string) (*domain.Shop, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &domain.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	return s.shops.GetByID(ctx, id)
}

// Create registers a new pending shop owned by caller. When no coordinates
// are supplied the address is geocoded; a shop is never saved with
// coordinates that did not come from a successful resolve.
func (s *ShopService) Create(ctx context.Context, caller domain.Caller, in domain.ShopInput) (*domain.Shop, error) {
	if caller.Role != domain.RoleVendor && !caller.IsAdmin() {
		return nil, fmt.Errorf("create shop: %w", domain.ErrForbidden)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	shop := &domain.Shop{
		ID:        uuid.NewString(),
		OwnerID:   caller.ID,
		Status:    domain.ShopPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(shop, in)

	queued, err := s.locate(ctx, caller, shop, in.Location)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, shop, domain.EventShopUpdated); err != nil {
		return nil, err
	}
	if queued {
		s.queue(ctx, shop.ID)
	}
	return shop, nil
}

// Update edits a shop. Only its owner or an admin may do so. The address is
// re-geocoded only when it changed and no explicit coordinates were given.
func (s *ShopService) Update(ctx context.Context, caller domain.Caller, id string, in domain.ShopInput) (*domain.Shop, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	shop, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.Owns(shop.OwnerID) {
		return nil, fmt.Errorf("update shop %s: %w", id, domain.ErrForbidden)
	}

	changed := addressChanged(shop.Address, in.Address)
	if !changed {
		in.Address = mergeAddress(in.Address, shop.Address)
	}
	applyInput(shop, in)
	shop.UpdatedAt = s.clock.Now()

	queued := false
	switch {
	case in.Location != nil || changed:
		queued, err = s.locate(ctx, caller, shop, in.Location)
		if err != nil {
			return nil, err
		}
	default:
		setSlugs(shop, domain.AddressCandidate{})
	}

	if err := s.save(ctx, shop, domain.EventShopUpdated); err != nil {
		return nil, err
	}
	if queued {
		s.queue(ctx, shop.ID)
	}
	return shop, nil
}

// GeocodeShop resolves the address of a shop saved without coordinates.
// It is idempotent: a shop that already has a location is left alone.
func (s *ShopService) GeocodeShop(ctx context.Context, id string) (*domain.Shop, error) {
	shop, err := s.shops.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if shop.Location != nil {
		return shop, nil
	}
	if s.resolver == nil {
		return nil, fmt.Errorf("geocode shop %s: %w", id, domain.ErrLocationUnresolved)
	}

	cand, err := s.resolver.Resolve(ctx, systemCaller, shop.Address.String())
	if err != nil {
		return nil, fmt.Errorf("geocode shop %s: %w", id, err)
	}
	applyCandidate(shop, cand)
	shop.UpdatedAt = s.clock.Now()

	if err := s.save(ctx, shop, domain.EventShopGeocoded); err != nil {
		return nil, err
	}
	return shop, nil
}

// QueueGeocode schedules a background geocode for a shop.
func (s *ShopService) QueueGeocode(ctx context.Context, id string) error {
	if s.scheduler == nil {
		return errors.New("no geocode scheduler configured")
	}
	return s.scheduler.ScheduleGeocode(ctx, id)
}

// locate fills the shop's coordinates and slugs. It reports true when the
// shop is to be saved without coordinates and geocoded in the background.
func (s *ShopService) locate(ctx context.Context, caller domain.Caller, shop *domain.Shop, explicit *domain.GeoPoint) (bool, error) {
	if explicit != nil {
		p := *explicit
		shop.Location = &p
		setSlugs(shop, domain.AddressCandidate{})
		return false, nil
	}
	if s.resolver == nil {
		return false, domain.ErrLocationUnresolved
	}

	cand, err := s.resolver.Resolve(ctx, caller, shop.Address.String())
	if err == nil {
		applyCandidate(shop, cand)
		return false, nil
	}

	if s.asyncRetry && errors.Is(err, domain.ErrRateLimited) {
		s.logger.InfoContext(ctx, "geocoding deferred", "shop_id", shop.ID, "error", err)
		shop.Location = nil
		shop.Status = domain.ShopPending
		setSlugs(shop, domain.AddressCandidate{})
		return true, nil
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return false, err
	}
	return false, fmt.Errorf("%w: %w", domain.ErrLocationUnresolved, err)
}

func (s *ShopService) queue(ctx context.Context, id string) {
	if err := s.QueueGeocode(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to queue geocode", "shop_id", id, "error", err)
	}
}

func (s *ShopService) save(ctx context.Context, shop *domain.Shop, eventType string) error {
	if err := s.shops.Save(ctx, shop); err != nil {
		return fmt.Errorf("save shop: %w", err)
	}
	if s.publisher == nil {
		return nil
	}
	event := &domain.ShopEvent{Type: eventType, Shop: *shop, OccurredAt: s.clock.Now()}
	if err := s.publisher.PublishShopEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish shop event", "shop_id", shop.ID, "type", eventType, "error", err)
		return nil
	}
	metrics.ShopEventsPublished.WithLabelValues("out", eventType).Inc()
	return nil
}

func validateInput(in domain.ShopInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.Address.IsEmpty() {
		return &domain.ValidationError{Field: "address", Reason: "must not be empty"}
	}
	if in.Location != nil {
		if err := in.Location.Validate(); err != nil {
			return err
		}
	}
	if in.PriceMin < 0 || in.PriceMax < 0 || (in.PriceMax > 0 && in.PriceMin > in.PriceMax) {
		return &domain.ValidationError{Field: "price", Reason: "price_min must not exceed price_max"}
	}
	return nil
}

func applyInput(shop *domain.Shop, in domain.ShopInput) {
	shop.Name = strings.TrimSpace(in.Name)
	shop.Description = in.Description
	shop.Category = in.Category
	shop.CategoryID = in.CategoryID
	shop.Tags = in.Tags
	shop.PriceRange = in.PriceRange
	shop.PriceMin = in.PriceMin
	shop.PriceMax = in.PriceMax
	shop.Address = in.Address
}

// applyCandidate attaches resolved coordinates and fills address parts the
// vendor left blank.
func applyCandidate(shop *domain.Shop, cand domain.AddressCandidate) {
	p := cand.Coordinates
	shop.Location = &p

	a := &shop.Address
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	fill(&a.Street, cand.Street)
	fill(&a.Locality, cand.Locality)
	fill(&a.City, cand.City)
	fill(&a.State, cand.State)
	fill(&a.PostalCode, cand.PostalCode)
	fill(&a.Country, cand.Country)

	setSlugs(shop, cand)
}

func setSlugs(shop *domain.Shop, cand domain.AddressCandidate) {
	shop.CitySlug = address.Slugify(firstNonBlank(shop.Address.City, cand.City))
	shop.AreaSlug = address.Slugify(firstNonBlank(shop.Address.Locality, cand.Locality))
}

// addressChanged reports whether in names a different place than stored.
// Parts left blank in the input do not count, since the stored address
// carries parts filled in from the geocoder.
func addressChanged(stored, in domain.Address) bool {
	pairs := [][2]string{
		{stored.Raw, in.Raw},
		{stored.Street, in.Street},
		{stored.Locality, in.Locality},
		{stored.City, in.City},
		{stored.State, in.State},
		{stored.PostalCode, in.PostalCode},
		{stored.Country, in.Country},
	}
	for _, p := range pairs {
		want := address.NormalizeQuery(p[1])
		if want != "" && want != address.NormalizeQuery(p[0]) {
			return true
		}
	}
	return false
}

// mergeAddress keeps the parts of in and fills the blanks from stored.
func mergeAddress(in, stored domain.Address) domain.Address {
	return domain.Address{
		Raw:        firstNonBlank(in.Raw, stored.Raw),
		Street:     firstNonBlank(in.Street, stored.Street),
		Locality:   firstNonBlank(in.Locality, stored.Locality),
		City:       firstNonBlank(in.City, stored.City),
		State:      firstNonBlank(in.State, stored.State),
		PostalCode: firstNonBlank(in.PostalCode, stored.PostalCode),
		Country:    firstNonBlank(in.Country, stored.Country),
	}
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
