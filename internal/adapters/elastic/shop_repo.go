// Package elastic is a shop store on Elasticsearch, used as a search replica
// fed by the indexer or as the primary store for read-heavy deployments.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/olivere/elastic/v7"

	"github.com/samirrijal/localshop/internal/core/domain"
)

// ShopRepo implements ports.ShopRepository on an Elasticsearch index.
type ShopRepo struct {
	client *elastic.Client
	index  string
}

// NewClient connects to url. Sniffing is off by default since clusters behind
// a load balancer advertise unreachable node addresses.
func NewClient(url string, sniff bool) (*elastic.Client, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(sniff),
		elastic.SetHealthcheckInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("elastic connect: %w", err)
	}
	return client, nil
}

// NewShopRepo creates a ShopRepo over index.
func NewShopRepo(client *elastic.Client, index string) *ShopRepo {
	return &ShopRepo{client: client, index: index}
}

// EnsureIndex creates the index with its mapping if it does not exist.
func (r *ShopRepo) EnsureIndex(ctx context.Context) error {
	exists, err := r.client.IndexExists(r.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.index, err)
	}
	if exists {
		return nil
	}
	res, err := r.client.CreateIndex(r.index).BodyString(shopMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", r.index, err)
	}
	if !res.Acknowledged {
		return fmt.Errorf("create index %s: not acknowledged", r.index)
	}
	return nil
}

// Save indexes the shop under its ID.
func (r *ShopRepo) Save(ctx context.Context, s *domain.Shop) error {
	_, err := r.client.Index().
		Index(r.index).
		Id(s.ID).
		BodyJson(toDoc(s)).
		Refresh("wait_for").
		Do(ctx)
	if err != nil {
		return fmt.Errorf("index shop %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes a shop document; a missing document is not an error.
func (r *ShopRepo) Delete(ctx context.Context, id string) error {
	_, err := r.client.Delete().Index(r.index).Id(id).Do(ctx)
	if err != nil && !elastic.IsNotFound(err) {
		return fmt.Errorf("delete shop %s: %w", id, err)
	}
	return nil
}

func (r *ShopRepo) GetByID(ctx context.Context, id string) (*domain.Shop, error) {
	res, err := r.client.Get().Index(r.index).Id(id).Do(ctx)
	if elastic.IsNotFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shop %s: %w", id, err)
	}
	if !res.Found {
		return nil, domain.ErrNotFound
	}
	return decode(res.Source)
}

// FindNear filters with geo_distance and sorts by arc distance, reporting the
// sort value as the distance in km.
func (r *ShopRepo) FindNear(ctx context.Context, center domain.GeoPoint, maxDistanceMeters float64, q domain.ShopQuery, opts domain.ListOptions) ([]domain.ShopWithDistance, error) {
	q.Near = &domain.Proximity{Center: center, RadiusMeters: maxDistanceMeters}

	search := r.client.Search().
		Index(r.index).
		Query(buildQuery(q, true)).
		From(opts.Offset()).
		Size(opts.Limit)
	distanceFirst := opts.Sort == domain.SortProximity || opts.Sort == ""
	for _, s := range sorters(opts.Sort, &center) {
		search = search.SortBy(s)
	}

	res, err := search.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search near: %w", err)
	}

	out := make([]domain.ShopWithDistance, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		s, err := decode(hit.Source)
		if err != nil {
			return nil, err
		}
		h := domain.ShopWithDistance{Shop: *s}
		if distanceFirst && len(hit.Sort) > 0 {
			if km, ok := hit.Sort[0].(float64); ok {
				h.Distance = &km
			}
		}
		out = append(out, h)
	}
	return out, nil
}

func (r *ShopRepo) Find(ctx context.Context, q domain.ShopQuery, opts domain.ListOptions) ([]domain.Shop, error) {
	search := r.client.Search().
		Index(r.index).
		Query(buildQuery(q, false)).
		From(opts.Offset()).
		Size(opts.Limit)
	for _, s := range sorters(opts.Sort, nil) {
		search = search.SortBy(s)
	}

	res, err := search.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search shops: %w", err)
	}

	out := make([]domain.Shop, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		s, err := decode(hit.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *ShopRepo) CountMatching(ctx context.Context, q domain.ShopQuery) (int, error) {
	n, err := r.client.Count(r.index).Query(buildQuery(q, true)).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count shops: %w", err)
	}
	return int(n), nil
}

// buildQuery renders q as a filter-only bool query.
func buildQuery(q domain.ShopQuery, withNear bool) *elastic.BoolQuery {
	b := elastic.NewBoolQuery()

	if len(q.Statuses) > 0 {
		vals := make([]interface{}, len(q.Statuses))
		for i, s := range q.Statuses {
			vals[i] = string(s)
		}
		b.Filter(elastic.NewTermsQuery("status", vals...))
	}
	if q.Category != "" {
		b.Filter(elastic.NewTermQuery("search.category", strings.ToLower(q.Category)))
	}
	if q.CategoryID != "" {
		b.Filter(elastic.NewTermQuery("category_id", q.CategoryID))
	}
	if q.MinRating != nil {
		b.Filter(elastic.NewRangeQuery("rating").Gte(*q.MinRating))
	}
	if q.PriceRange != "" {
		b.Filter(elastic.NewTermQuery("price_range", q.PriceRange))
	}
	if q.PriceMin != nil {
		b.Filter(elastic.NewRangeQuery("price_max").Gte(*q.PriceMin))
	}
	if q.PriceMax != nil {
		b.Filter(elastic.NewRangeQuery("price_min").Lte(*q.PriceMax))
	}
	if q.LocalitySlug != "" {
		b.Filter(elastic.NewBoolQuery().
			Should(
				elastic.NewTermQuery("area_slug", q.LocalitySlug),
				elastic.NewTermQuery("city_slug", q.LocalitySlug),
			).
			MinimumNumberShouldMatch(1))
	}
	if q.OwnerID != "" {
		b.Filter(elastic.NewTermQuery("owner_id", q.OwnerID))
	}
	if q.Text != nil {
		b.Filter(textQuery(*q.Text))
	}
	if withNear && q.Near != nil {
		b.Filter(elastic.NewGeoDistanceQuery("location").
			Lat(q.Near.Center.Lat).
			Lon(q.Near.Center.Lon).
			Distance(fmt.Sprintf("%.1fm", q.Near.RadiusMeters)).
			DistanceType("arc"))
	}
	return b
}

func textQuery(p domain.TextPredicate) elastic.Query {
	switch p.Op {
	case domain.OpAllTokens:
		if len(p.Terms) == 0 {
			return elastic.NewMatchNoneQuery()
		}
		b := elastic.NewBoolQuery()
		for _, term := range p.Terms {
			b.Must(fieldsContain(p.Fields, term))
		}
		return b
	case domain.OpAnyField:
		if len(p.Terms) == 0 || p.Terms[0] == "" {
			return elastic.NewMatchNoneQuery()
		}
		return fieldsContain(p.Fields, p.Terms[0])
	case domain.OpEither:
		if len(p.Children) == 0 {
			return elastic.NewMatchNoneQuery()
		}
		b := elastic.NewBoolQuery().MinimumNumberShouldMatch(1)
		for _, c := range p.Children {
			b.Should(textQuery(c))
		}
		return b
	}
	return elastic.NewMatchNoneQuery()
}

func fieldsContain(fields []domain.TextField, term string) elastic.Query {
	pattern := "*" + escapeWildcard(strings.ToLower(term)) + "*"
	b := elastic.NewBoolQuery().MinimumNumberShouldMatch(1)
	for _, f := range fields {
		b.Should(elastic.NewWildcardQuery("search."+string(f), pattern))
	}
	return b
}

func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}

func sorters(order domain.SortOrder, center *domain.GeoPoint) []elastic.Sorter {
	switch {
	case order == domain.SortRating:
		return []elastic.Sorter{
			elastic.NewFieldSort("rating").Desc(),
			elastic.NewFieldSort("created_at").Desc(),
			elastic.NewFieldSort("id").Asc(),
		}
	case (order == domain.SortProximity || order == "") && center != nil:
		return []elastic.Sorter{
			elastic.NewGeoDistanceSort("location").
				Point(center.Lat, center.Lon).
				Asc().
				Unit("km").
				DistanceType("arc"),
			elastic.NewFieldSort("id").Asc(),
		}
	default:
		return []elastic.Sorter{
			elastic.NewFieldSort("created_at").Desc(),
			elastic.NewFieldSort("id").Asc(),
		}
	}
}

// shopDoc is the indexed form of a shop.
type shopDoc struct {
	domain.Shop
	Location *elastic.GeoPoint `json:"location,omitempty"`
	Search   searchFields      `json:"search"`
}

type searchFields struct {
	Category string   `json:"category,omitempty"`
	Name     string   `json:"name,omitempty"`
	Address  []string `json:"address,omitempty"`
	Locality string   `json:"locality,omitempty"`
	City     string   `json:"city,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func toDoc(s *domain.Shop) shopDoc {
	doc := shopDoc{Shop: *s}
	doc.Shop.Location = nil
	if s.Location != nil {
		doc.Location = elastic.GeoPointFromLatLon(s.Location.Lat, s.Location.Lon)
	}

	lower := func(vals ...string) []string {
		var out []string
		for _, v := range vals {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	doc.Search = searchFields{
		Category: strings.ToLower(s.Category),
		Name:     strings.ToLower(s.Name),
		Address:  lower(s.Address.Raw, s.Address.Street),
		Locality: strings.ToLower(s.Address.Locality),
		City:     strings.ToLower(s.Address.City),
		Tags:     lower(s.Tags...),
	}
	return doc
}

func decode(src json.RawMessage) (*domain.Shop, error) {
	var doc shopDoc
	if err := json.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("decode shop document: %w", err)
	}
	s := doc.Shop
	if doc.Location != nil {
		p := domain.NewGeoPoint(doc.Location.Lon, doc.Location.Lat)
		s.Location = &p
	}
	return &s, nil
}
