package http

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/pkg/address"
)

// maxQueryLen bounds free-text query parameters.
const maxQueryLen = 300

// AddressComponents is the structured part of a geocoding answer.
type AddressComponents struct {
	Street     string `json:"street,omitempty"`
	Locality   string `json:"locality,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// CandidateResponse is the wire shape of an address candidate.
type CandidateResponse struct {
	Coordinates      domain.GeoPoint   `json:"coordinates"`
	FormattedAddress string            `json:"formattedAddress"`
	Components       AddressComponents `json:"components"`
	Provider         string            `json:"provider"`
	Confidence       float64           `json:"confidence"`
}

func toCandidateResponse(c domain.AddressCandidate) CandidateResponse {
	return CandidateResponse{
		Coordinates:      c.Coordinates,
		FormattedAddress: c.Label(),
		Components: AddressComponents{
			Street:     c.Street,
			Locality:   c.Locality,
			City:       c.City,
			State:      c.State,
			PostalCode: c.PostalCode,
			Country:    c.Country,
		},
		Provider:   c.Provider,
		Confidence: c.Confidence,
	}
}

// GeocodeHandler resolves a free-text address to one candidate.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		text := strings.TrimSpace(c.Query("address"))
		if text == "" {
			return errBadRequest(c, "address query parameter is required")
		}
		if len(text) > maxQueryLen {
			return errBadRequest(c, "address too long (max 300 characters)")
		}

		cand, err := deps.Geocoding.Resolve(c.UserContext(), callerFrom(c), text)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(toCandidateResponse(cand))
	}
}

// ReverseGeocodeHandler resolves coordinates to an address.
func ReverseGeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		point, ok, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if !ok {
			return errBadRequest(c, "lat and lon are required")
		}

		cand, err := deps.Geocoding.Reverse(c.UserContext(), callerFrom(c), point.Lat, point.Lon)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(toCandidateResponse(cand))
	}
}

// AutocompleteHandler returns merged place suggestions from every provider.
func AutocompleteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		text := strings.TrimSpace(c.Query("q"))
		if text == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(text) > maxQueryLen {
			return errBadRequest(c, "query too long (max 300 characters)")
		}
		bias, ok, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		var biasPtr *domain.GeoPoint
		if ok {
			biasPtr = &bias
		}

		cands, err := deps.Geocoding.Autocomplete(c.UserContext(), callerFrom(c), text, biasPtr, c.QueryInt("limit", 0))
		if err != nil {
			return writeError(c, err)
		}

		out := make([]CandidateResponse, 0, len(cands))
		for _, cand := range cands {
			out = append(out, toCandidateResponse(cand))
		}
		return c.JSON(fiber.Map{"suggestions": out})
	}
}

// SearchResponse is one page of shop search results.
type SearchResponse struct {
	Results    []domain.ShopWithDistance `json:"results"`
	Pagination Pagination                `json:"pagination"`
	Mode       domain.SearchMode         `json:"mode"`
	Center     *domain.GeoPoint          `json:"center,omitempty"`
}

// SearchShopsHandler runs a proximity, text or browse search.
func SearchShopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseSearchRequest(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := deps.Search.Search(c.UserContext(), callerFrom(c), req)
		if err != nil {
			return writeError(c, err)
		}

		pg := Pagination{Page: res.Page, Limit: res.Limit, Total: res.Total, Pages: res.Pages}
		SetLinkHeaders(c, pg)
		results := res.Results
		if results == nil {
			results = []domain.ShopWithDistance{}
		}
		return c.JSON(SearchResponse{Results: results, Pagination: pg, Mode: res.Mode, Center: res.Center})
	}
}

func parseSearchRequest(c *fiber.Ctx) (domain.SearchRequest, error) {
	var req domain.SearchRequest

	center, ok, err := queryPoint(c)
	if err != nil {
		return req, err
	}
	if ok {
		req.Center = &center
	}

	if req.RadiusMeters, err = queryFloat(c, "radius"); err != nil {
		return req, err
	}
	req.TextQuery = strings.TrimSpace(c.Query("q"))
	if len(req.TextQuery) > maxQueryLen {
		return req, &domain.ValidationError{Field: "q", Reason: "too long (max 300 characters)"}
	}
	if req.Sort, err = domain.ParseSortOrder(c.Query("sort")); err != nil {
		return req, err
	}
	if req.Page, err = queryInt(c, "page"); err != nil {
		return req, err
	}
	if req.Limit, err = queryInt(c, "limit"); err != nil {
		return req, err
	}

	f := &req.Filters
	f.Category = c.Query("category")
	f.CategoryID = c.Query("categoryId")
	f.PriceRange = c.Query("priceRange")
	f.Locality = c.Query("locality")
	f.OwnerID = c.Query("ownerId")
	if raw := c.Query("minRating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, &domain.ValidationError{Field: "minRating", Reason: "must be a number"}
		}
		f.MinRating = &v
	}
	minPrice, err := queryFloat(c, "minPrice")
	if err != nil {
		return req, err
	}
	maxPrice, err := queryFloat(c, "maxPrice")
	if err != nil {
		return req, err
	}
	if minPrice != 0 || maxPrice != 0 {
		f.PriceBounds = &domain.PriceBounds{Min: minPrice, Max: maxPrice}
	}
	return req, nil
}

// GetShopHandler returns a single shop by ID.
func GetShopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		shop, err := deps.Shops.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		caller := callerFrom(c)
		if shop.Status != domain.ShopLive && !caller.IsAdmin() && !caller.Owns(shop.OwnerID) {
			return writeError(c, domain.ErrNotFound)
		}
		return c.JSON(shop)
	}
}

// CreateShopHandler registers a new shop for the calling vendor.
func CreateShopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in domain.ShopInput
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		shop, err := deps.Shops.Create(c.UserContext(), callerFrom(c), in)
		if err != nil {
			return writeError(c, err)
		}
		c.Location("/v1/shops/" + shop.ID)
		return c.Status(fiber.StatusCreated).JSON(shop)
	}
}

// UpdateShopHandler edits a shop owned by the caller.
func UpdateShopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in domain.ShopInput
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		shop, err := deps.Shops.Update(c.UserContext(), callerFrom(c), c.Params("id"), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(shop)
	}
}

// SlugHandler returns the URL slug for a name.
func SlugHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Query("name")
		if strings.TrimSpace(name) == "" {
			return errBadRequest(c, "name query parameter is required")
		}
		return c.JSON(fiber.Map{"slug": address.Slugify(name)})
	}
}

// queryPoint reads lat/lon. ok is false when neither is present.
func queryPoint(c *fiber.Ctx) (domain.GeoPoint, bool, error) {
	rawLat, rawLon := c.Query("lat"), c.Query("lon")
	if rawLat == "" && rawLon == "" {
		return domain.GeoPoint{}, false, nil
	}
	if rawLat == "" || rawLon == "" {
		return domain.GeoPoint{}, false, &domain.ValidationError{Field: "coordinates", Reason: "lat and lon must be given together"}
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return domain.GeoPoint{}, false, &domain.ValidationError{Field: "lat", Reason: "must be a number"}
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return domain.GeoPoint{}, false, &domain.ValidationError{Field: "lon", Reason: "must be a number"}
	}
	p := domain.NewGeoPoint(lon, lat)
	if err := p.Validate(); err != nil {
		return domain.GeoPoint{}, false, err
	}
	return p, true, nil
}

func queryFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &domain.ValidationError{Field: name, Reason: "must be a finite number"}
	}
	return v, nil
}

func queryInt(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return v, nil
}
