package postgres

import (
	"fmt"
	"strings"

	"github.com/samirrijal/localshop/internal/core/domain"
)

// sqlBuilder accumulates positional arguments while rendering predicates.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// pointExpr renders a geography point for center, lon first.
func (b *sqlBuilder) pointExpr(center domain.GeoPoint) string {
	return fmt.Sprintf("ST_SetSRID(ST_MakePoint(%s, %s), 4326)::geography", b.arg(center.Lon), b.arg(center.Lat))
}

// where renders q as a SQL boolean expression. Near is rendered only when
// withNear is set.
func (b *sqlBuilder) where(q domain.ShopQuery, withNear bool) string {
	var conds []string

	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+b.arg(statuses)+")")
	}
	if q.Category != "" {
		conds = append(conds, "lower(category) = lower("+b.arg(q.Category)+")")
	}
	if q.CategoryID != "" {
		conds = append(conds, "category_id = "+b.arg(q.CategoryID))
	}
	if q.MinRating != nil {
		conds = append(conds, "rating >= "+b.arg(*q.MinRating))
	}
	if q.PriceRange != "" {
		conds = append(conds, "price_range = "+b.arg(q.PriceRange))
	}
	if q.PriceMin != nil {
		conds = append(conds, "price_max >= "+b.arg(*q.PriceMin))
	}
	if q.PriceMax != nil {
		conds = append(conds, "price_min <= "+b.arg(*q.PriceMax))
	}
	if q.LocalitySlug != "" {
		p := b.arg(q.LocalitySlug)
		conds = append(conds, "(area_slug = "+p+" OR city_slug = "+p+")")
	}
	if q.OwnerID != "" {
		conds = append(conds, "owner_id = "+b.arg(q.OwnerID))
	}
	if q.Text != nil {
		conds = append(conds, b.text(*q.Text))
	}
	if withNear && q.Near != nil {
		conds = append(conds, fmt.Sprintf("location IS NOT NULL AND ST_DWithin(location, %s, %s, false)",
			b.pointExpr(q.Near.Center), b.arg(q.Near.RadiusMeters)))
	}

	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, " AND ")
}

func (b *sqlBuilder) text(p domain.TextPredicate) string {
	switch p.Op {
	case domain.OpAllTokens:
		if len(p.Terms) == 0 {
			return "FALSE"
		}
		parts := make([]string, len(p.Terms))
		for i, term := range p.Terms {
			parts[i] = b.fieldsContain(p.Fields, term)
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	case domain.OpAnyField:
		if len(p.Terms) == 0 || p.Terms[0] == "" {
			return "FALSE"
		}
		return b.fieldsContain(p.Fields, p.Terms[0])
	case domain.OpEither:
		if len(p.Children) == 0 {
			return "FALSE"
		}
		parts := make([]string, len(p.Children))
		for i, c := range p.Children {
			parts[i] = b.text(c)
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	}
	return "FALSE"
}

func (b *sqlBuilder) fieldsContain(fields []domain.TextField, term string) string {
	if len(fields) == 0 {
		return "FALSE"
	}
	p := b.arg("%" + escapeLike(term) + "%")
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		switch f {
		case domain.FieldName:
			parts = append(parts, "name ILIKE "+p)
		case domain.FieldAddress:
			parts = append(parts, "address_raw ILIKE "+p, "street ILIKE "+p)
		case domain.FieldLocality:
			parts = append(parts, "locality ILIKE "+p)
		case domain.FieldCity:
			parts = append(parts, "city ILIKE "+p)
		case domain.FieldTags:
			parts = append(parts, "EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE "+p+")")
		}
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// escapeLike escapes LIKE wildcards using the default backslash escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orderBy(sort domain.SortOrder, hasDistance bool) string {
	switch {
	case sort == domain.SortRating:
		return "rating DESC, created_at DESC, id"
	case sort == domain.SortProximity && hasDistance:
		return "distance_km ASC, id"
	default:
		return "created_at DESC, id"
	}
}
