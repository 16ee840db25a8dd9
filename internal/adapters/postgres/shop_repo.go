package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/localshop/internal/core/domain"
)

const shopColumns = `id, owner_id, name, description, category, category_id, tags,
	rating, price_range, price_min, price_max,
	ST_Y(location::geometry) AS lat, ST_X(location::geometry) AS lon,
	address_raw, street, locality, city, state, postal_code, country,
	city_slug, area_slug, status, created_at, updated_at`

// ShopRepo implements ports.ShopRepository on PostGIS.
type ShopRepo struct {
	db *DB
}

// NewShopRepo creates a new ShopRepo.
func NewShopRepo(db *DB) *ShopRepo {
	return &ShopRepo{db: db}
}

// Save inserts or replaces a shop.
func (r *ShopRepo) Save(ctx context.Context, s *domain.Shop) error {
	var lon, lat *float64
	if s.Location != nil {
		lon, lat = &s.Location.Lon, &s.Location.Lat
	}
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO shops (id, owner_id, name, description, category, category_id, tags,
		                   rating, price_range, price_min, price_max, location,
		                   address_raw, street, locality, city, state, postal_code, country,
		                   city_slug, area_slug, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        CASE WHEN $12::float8 IS NULL THEN NULL
		             ELSE ST_SetSRID(ST_MakePoint($12, $13), 4326)::geography END,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
		    category = EXCLUDED.category, category_id = EXCLUDED.category_id,
		    tags = EXCLUDED.tags, rating = EXCLUDED.rating,
		    price_range = EXCLUDED.price_range, price_min = EXCLUDED.price_min,
		    price_max = EXCLUDED.price_max, location = EXCLUDED.location,
		    address_raw = EXCLUDED.address_raw, street = EXCLUDED.street,
		    locality = EXCLUDED.locality, city = EXCLUDED.city, state = EXCLUDED.state,
		    postal_code = EXCLUDED.postal_code, country = EXCLUDED.country,
		    city_slug = EXCLUDED.city_slug, area_slug = EXCLUDED.area_slug,
		    status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`, s.ID, s.OwnerID, s.Name, s.Description, s.Category, s.CategoryID, tags,
		s.Rating, s.PriceRange, s.PriceMin, s.PriceMax, lon, lat,
		s.Address.Raw, s.Address.Street, s.Address.Locality, s.Address.City,
		s.Address.State, s.Address.PostalCode, s.Address.Country,
		s.CitySlug, s.AreaSlug, string(s.Status), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert shop %s: %w", s.ID, err)
	}
	return nil
}

// GetByID returns a shop by UUID.
func (r *ShopRepo) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.db.Pool.QueryRow(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = $1`, id)
	s, err := scanShop(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindNear returns shops within maxDistanceMeters using ST_DWithin, with the
// spherical ST_Distance in km.
func (r *ShopRepo) FindNear(ctx context.Context, center domain.GeoPoint, maxDistanceMeters float64, q domain.ShopQuery, opts domain.ListOptions) ([]domain.ShopWithDistance, error) {
	q.Near = &domain.Proximity{Center: center, RadiusMeters: maxDistanceMeters}

	var b sqlBuilder
	where := b.where(q, true)
	point := b.pointExpr(center)
	sql := fmt.Sprintf(`
		SELECT %s, ST_Distance(location, %s, false) / 1000.0 AS distance_km
		FROM shops
		WHERE %s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		shopColumns, point, where, orderBy(opts.Sort, true), b.arg(opts.Limit), b.arg(opts.Offset()))

	rows, err := r.db.Pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("find near: %w", err)
	}
	defer rows.Close()

	var out []domain.ShopWithDistance
	for rows.Next() {
		var km float64
		s, err := scanShop(rows, &km)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ShopWithDistance{Shop: *s, Distance: &km})
	}
	return out, rows.Err()
}

// Find returns shops matching q, ignoring q.Near.
func (r *ShopRepo) Find(ctx context.Context, q domain.ShopQuery, opts domain.ListOptions) ([]domain.Shop, error) {
	var b sqlBuilder
	where := b.where(q, false)
	sql := fmt.Sprintf(`SELECT %s FROM shops WHERE %s ORDER BY %s LIMIT %s OFFSET %s`,
		shopColumns, where, orderBy(opts.Sort, false), b.arg(opts.Limit), b.arg(opts.Offset()))

	rows, err := r.db.Pool.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("find shops: %w", err)
	}
	defer rows.Close()

	var out []domain.Shop
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CountMatching counts shops matching q, honouring q.Near.
func (r *ShopRepo) CountMatching(ctx context.Context, q domain.ShopQuery) (int, error) {
	var b sqlBuilder
	where := b.where(q, true)

	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM shops WHERE `+where, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count shops: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShop(row scanner, extra ...any) (*domain.Shop, error) {
	var (
		s        domain.Shop
		lat, lon *float64
		status   string
	)
	dest := []any{
		&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.Category, &s.CategoryID, &s.Tags,
		&s.Rating, &s.PriceRange, &s.PriceMin, &s.PriceMax,
		&lat, &lon,
		&s.Address.Raw, &s.Address.Street, &s.Address.Locality, &s.Address.City,
		&s.Address.State, &s.Address.PostalCode, &s.Address.Country,
		&s.CitySlug, &s.AreaSlug, &status, &s.CreatedAt, &s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		p := domain.NewGeoPoint(*lon, *lat)
		s.Location = &p
	}
	s.Status = domain.ShopStatus(status)
	return &s, nil
}
