package domain

import (
	"strings"
)

// PriceBounds is an inclusive price window. Zero means unbounded on that side.
type PriceBounds struct {
	Min float64 `json:"min,omitempty"`
	Max float64 `json:"max,omitempty"`
}

// SearchFilters are the caller-supplied narrowing options for a search.
type SearchFilters struct {
	Category    string       `json:"category,omitempty"`
	CategoryID  string       `json:"category_id,omitempty"`
	MinRating   *float64     `json:"min_rating,omitempty"`
	PriceRange  string       `json:"price_range,omitempty"`
	PriceBounds *PriceBounds `json:"price_bounds,omitempty"`
	Locality    string       `json:"locality,omitempty"`
	OwnerID     string       `json:"owner_id,omitempty"`
}

// SortOrder selects the ordering of search results.
type SortOrder string

const (
	SortProximity SortOrder = "proximity"
	SortRating    SortOrder = "rating"
	SortNewest    SortOrder = "newest"
)

// ParseSortOrder maps user input to a SortOrder; unknown values are rejected.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortProximity:
		return SortProximity, nil
	case SortRating:
		return SortRating, nil
	case SortNewest:
		return SortNewest, nil
	}
	return "", &ValidationError{Field: "sort", Reason: "must be one of proximity, rating, newest"}
}

// SearchMode records which branch answered a search.
type SearchMode string

const (
	ModeGeo      SearchMode = "geo"
	ModeGeocoded SearchMode = "geocoded"
	ModeText     SearchMode = "text"
	ModeBrowse   SearchMode = "browse"
	ModeOwner    SearchMode = "owner"
)

// SearchRequest is the input of a proximity search.
type SearchRequest struct {
	Center       *GeoPoint
	RadiusMeters float64
	Filters      SearchFilters
	TextQuery    string
	Sort         SortOrder
	Page         int
	Limit        int
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Results []ShopWithDistance `json:"results"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
	Pages   int                `json:"pages"`
	Mode    SearchMode         `json:"mode"`
	Center  *GeoPoint          `json:"center,omitempty"`
}

// Proximity restricts a query to shops within RadiusMeters of Center.
type Proximity struct {
	Center       GeoPoint
	RadiusMeters float64
}

// ShopQuery is the store-level predicate assembled from filters.
// Every non-zero field is AND-ed.
type ShopQuery struct {
	// Statuses limits the allowed statuses; empty means any status.
	Statuses     []ShopStatus
	Category     string
	CategoryID   string
	MinRating    *float64
	PriceRange   string
	PriceMin     *float64
	PriceMax     *float64
	LocalitySlug string
	OwnerID      string
	Text         *TextPredicate
	Near         *Proximity
}

// ListOptions controls ordering and paging of a store query.
type ListOptions struct {
	Sort  SortOrder
	Skip  int
	Limit int
}

// Offset is Skip clamped at zero.
func (o ListOptions) Offset() int {
	return max(o.Skip, 0)
}

// Matches evaluates every predicate except Near against s.
func (q ShopQuery) Matches(s *Shop) bool {
	if len(q.Statuses) > 0 {
		ok := false
		for _, st := range q.Statuses {
			if s.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if q.Category != "" && !strings.EqualFold(s.Category, q.Category) {
		return false
	}
	if q.CategoryID != "" && s.CategoryID != q.CategoryID {
		return false
	}
	if q.MinRating != nil && s.Rating < *q.MinRating {
		return false
	}
	if q.PriceRange != "" && s.PriceRange != q.PriceRange {
		return false
	}
	// Price bounds test for overlap between the shop's band and the window.
	if q.PriceMin != nil && s.PriceMax < *q.PriceMin {
		return false
	}
	if q.PriceMax != nil && s.PriceMin > *q.PriceMax {
		return false
	}
	if q.LocalitySlug != "" && s.AreaSlug != q.LocalitySlug && s.CitySlug != q.LocalitySlug {
		return false
	}
	if q.OwnerID != "" && s.OwnerID != q.OwnerID {
		return false
	}
	if q.Text != nil && !q.Text.Matches(s) {
		return false
	}
	return true
}

// TextField names a shop attribute searchable by text predicates.
type TextField string

const (
	FieldName     TextField = "name"
	FieldAddress  TextField = "address"
	FieldLocality TextField = "locality"
	FieldCity     TextField = "city"
	FieldTags     TextField = "tags"
)

// SearchableFields are the fields scanned by the tokenized text fallback.
var SearchableFields = []TextField{FieldName, FieldAddress, FieldLocality, FieldCity, FieldTags}

// TextValues returns the values of field f on s.
func (s *Shop) TextValues(f TextField) []string {
	switch f {
	case FieldName:
		return []string{s.Name}
	case FieldAddress:
		return []string{s.Address.Raw, s.Address.Street}
	case FieldLocality:
		return []string{s.Address.Locality}
	case FieldCity:
		return []string{s.Address.City}
	case FieldTags:
		return s.Tags
	}
	return nil
}

// TextOp is the combinator of a TextPredicate.
type TextOp string

const (
	// OpAllTokens requires every term to appear in at least one field.
	OpAllTokens TextOp = "all_tokens"
	// OpAnyField requires the single phrase to appear in at least one field.
	OpAnyField TextOp = "any_field"
	// OpEither is satisfied when any child predicate is.
	OpEither TextOp = "either"
)

// TextPredicate is a case-insensitive substring predicate tree.
// Stores translate it to their native query language; Matches is the
// reference evaluation.
type TextPredicate struct {
	Op       TextOp
	Terms    []string
	Fields   []TextField
	Children []TextPredicate
}

// AllTokensMatch narrows: every token must occur somewhere across fields.
func AllTokensMatch(tokens []string, fields ...TextField) TextPredicate {
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return TextPredicate{Op: OpAllTokens, Terms: terms, Fields: fields}
}

// AnyFieldContains broadens: the whole phrase occurs in any one field.
func AnyFieldContains(phrase string, fields ...TextField) TextPredicate {
	return TextPredicate{
		Op:     OpAnyField,
		Terms:  []string{strings.ToLower(strings.TrimSpace(phrase))},
		Fields: fields,
	}
}

// EitherText ORs the given predicates.
func EitherText(preds ...TextPredicate) TextPredicate {
	return TextPredicate{Op: OpEither, Children: preds}
}

// Matches evaluates the predicate against s.
func (p TextPredicate) Matches(s *Shop) bool {
	switch p.Op {
	case OpAllTokens:
		if len(p.Terms) == 0 {
			return false
		}
		for _, term := range p.Terms {
			if !fieldsContain(s, p.Fields, term) {
				return false
			}
		}
		return true
	case OpAnyField:
		if len(p.Terms) == 0 || p.Terms[0] == "" {
			return false
		}
		return fieldsContain(s, p.Fields, p.Terms[0])
	case OpEither:
		for _, c := range p.Children {
			if c.Matches(s) {
				return true
			}
		}
	}
	return false
}

func fieldsContain(s *Shop, fields []TextField, term string) bool {
	for _, f := range fields {
		for _, v := range s.TextValues(f) {
			if v != "" && strings.Contains(strings.ToLower(v), term) {
				return true
			}
		}
	}
	return false
}
