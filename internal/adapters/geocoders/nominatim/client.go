// Package nominatim adapts the OpenStreetMap Nominatim API, the keyless
// last-resort provider. The public instance allows one request per second,
// which the client enforces itself.
package nominatim

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/samirrijal/localshop/internal/adapters/geocoders/upstream"
	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/pkg/geospatial"
)

const Name = "nominatim"

// viewboxRadius is the half-size of the autocomplete bias box, in meters.
const viewboxRadius = 25000

type Config struct {
	Enabled   bool
	BaseURL   string
	UserAgent string
	// Countries restricts results, e.g. "in". Comma-separated ISO codes.
	Countries string
	Timeout   time.Duration
	// RequestsPerSecond defaults to the public-instance policy of 1.
	RequestsPerSecond float64
}

// Client implements ports.GeocodeProvider, ports.Autocompleter and
// ports.ReverseGeocoder.
type Client struct {
	enabled    bool
	baseURL    string
	userAgent  string
	countries  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "localshop/1.0"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		enabled:    cfg.Enabled,
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		countries:  cfg.Countries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:     logger.With("provider", Name),
	}
}

func (c *Client) Name() string { return Name }

// Available needs no credentials, only the enabled flag.
func (c *Client) Available() bool { return c.enabled }

func (c *Client) Geocode(ctx context.Context, address string) (domain.AddressCandidate, error) {
	if !c.Available() {
		return domain.AddressCandidate{}, upstream.Unavailable(Name)
	}
	params := c.params()
	params.Set("q", address)
	params.Set("limit", "1")

	var places []place
	if err := c.get(ctx, "geocode", "/search", params, &places); err != nil {
		return domain.AddressCandidate{}, err
	}
	if len(places) == 0 {
		return domain.AddressCandidate{}, upstream.Fail(Name, "no results", nil)
	}
	return places[0].candidate()
}

func (c *Client) Autocomplete(ctx context.Context, text string, bias *domain.GeoPoint, limit int) ([]domain.AddressCandidate, error) {
	if !c.Available() {
		return nil, upstream.Unavailable(Name)
	}
	params := c.params()
	params.Set("q", text)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if bias != nil {
		minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(bias.Lat, bias.Lon, viewboxRadius)
		params.Set("viewbox", fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", minLon, maxLat, maxLon, minLat))
	}

	var places []place
	if err := c.get(ctx, "autocomplete", "/search", params, &places); err != nil {
		return nil, err
	}

	out := make([]domain.AddressCandidate, 0, len(places))
	for _, p := range places {
		cand, err := p.candidate()
		if err != nil {
			c.logger.Debug("skipping place", "place_id", p.PlaceID, "error", err)
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.AddressCandidate, error) {
	if !c.Available() {
		return domain.AddressCandidate{}, upstream.Unavailable(Name)
	}
	params := url.Values{
		"format":         {"jsonv2"},
		"addressdetails": {"1"},
		"lat":            {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', 6, 64)},
	}

	var p place
	if err := c.get(ctx, "reverse", "/reverse", params, &p); err != nil {
		return domain.AddressCandidate{}, err
	}
	if p.Error != "" {
		return domain.AddressCandidate{}, upstream.Fail(Name, p.Error, nil)
	}
	return p.candidate()
}

func (c *Client) params() url.Values {
	params := url.Values{
		"format":         {"jsonv2"},
		"addressdetails": {"1"},
	}
	if c.countries != "" {
		params.Set("countrycodes", c.countries)
	}
	return params
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return upstream.Fail(Name, "request throttle", err)
	}
	return upstream.FetchJSON(ctx, c.httpClient, upstream.Request{
		Provider:  Name,
		Operation: op,
		URL:       c.baseURL + path + "?" + params.Encode(),
		Header:    http.Header{"User-Agent": {c.userAgent}},
	}, out)
}

// Nominatim jsonv2 response types.

type place struct {
	PlaceID     int64          `json:"place_id"`
	Lat         upstream.Float `json:"lat"`
	Lon         upstream.Float `json:"lon"`
	DisplayName string         `json:"display_name"`
	Importance  upstream.Float `json:"importance"`
	Address     placeAddress   `json:"address"`
	Error       string         `json:"error"`
}

type placeAddress struct {
	HouseNumber   string `json:"house_number"`
	Road          string `json:"road"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	CityDistrict  string `json:"city_district"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	County        string `json:"county"`
	StateDistrict string `json:"state_district"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country"`
}

func (p place) candidate() (domain.AddressCandidate, error) {
	pt, err := upstream.Point(Name, p.Lat, p.Lon)
	if err != nil {
		return domain.AddressCandidate{}, err
	}
	a := p.Address
	return domain.AddressCandidate{
		Coordinates:      pt,
		FormattedAddress: p.DisplayName,
		Street:           upstream.JoinNonEmpty(" ", a.HouseNumber, a.Road),
		Locality:         upstream.FirstNonEmpty(a.Suburb, a.Neighbourhood, a.CityDistrict),
		City:             upstream.FirstNonEmpty(a.City, a.Town, a.Village, a.County, a.StateDistrict),
		State:            a.State,
		PostalCode:       a.Postcode,
		Country:          a.Country,
		Provider:         Name,
		Confidence:       upstream.Clamp01(float64(p.Importance)),
		Raw:              strconv.FormatInt(p.PlaceID, 10),
	}, nil
}
