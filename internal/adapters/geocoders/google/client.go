// Package google adapts the Google Maps Geocoding and Places text search APIs.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/samirrijal/localshop/internal/adapters/geocoders/upstream"
	"github.com/samirrijal/localshop/internal/core/domain"
)

const Name = "google"

// autocompleteRadius biases text search results around the caller, in meters.
const autocompleteRadius = 50000

type Config struct {
	Enabled bool
	APIKey  string
	BaseURL string
	Region  string
	Timeout time.Duration
}

// Client implements ports.GeocodeProvider, ports.Autocompleter and
// ports.ReverseGeocoder.
type Client struct {
	enabled    bool
	apiKey     string
	baseURL    string
	region     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://maps.googleapis.com"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		enabled:    cfg.Enabled,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		region:     cfg.Region,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("provider", Name),
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) Available() bool { return c.enabled && c.apiKey != "" }

func (c *Client) Geocode(ctx context.Context, address string) (domain.AddressCandidate, error) {
	if !c.Available() {
		return domain.AddressCandidate{}, upstream.Unavailable(Name)
	}
	params := url.Values{"address": {address}}
	if c.region != "" {
		params.Set("region", c.region)
	}

	var resp geocodeResponse
	if err := c.get(ctx, "geocode", "/maps/api/geocode/json", params, &resp); err != nil {
		return domain.AddressCandidate{}, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return domain.AddressCandidate{}, err
	}
	if len(resp.Results) == 0 {
		return domain.AddressCandidate{}, upstream.Fail(Name, "no results", nil)
	}
	return resp.Results[0].candidate()
}

// Autocomplete uses Places text search, which returns coordinates inline
// and saves a details round trip per suggestion.
func (c *Client) Autocomplete(ctx context.Context, text string, bias *domain.GeoPoint, limit int) ([]domain.AddressCandidate, error) {
	if !c.Available() {
		return nil, upstream.Unavailable(Name)
	}
	params := url.Values{"query": {text}}
	if c.region != "" {
		params.Set("region", c.region)
	}
	if bias != nil {
		params.Set("location", fmt.Sprintf("%.6f,%.6f", bias.Lat, bias.Lon))
		params.Set("radius", strconv.Itoa(autocompleteRadius))
	}

	var resp placesResponse
	if err := c.get(ctx, "autocomplete", "/maps/api/place/textsearch/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "ZERO_RESULTS" {
		return nil, nil
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}

	out := make([]domain.AddressCandidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		p, err := upstream.Point(Name, r.Geometry.Location.Lat, r.Geometry.Location.Lng)
		if err != nil {
			c.logger.Debug("skipping place", "place", r.Name, "error", err)
			continue
		}
		out = append(out, domain.AddressCandidate{
			Coordinates:      p,
			FormattedAddress: upstream.JoinNonEmpty(", ", r.Name, r.FormattedAddress),
			Locality:         r.Name,
			Provider:         Name,
			Confidence:       0.6,
			Raw:              r.PlaceID,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.AddressCandidate, error) {
	if !c.Available() {
		return domain.AddressCandidate{}, upstream.Unavailable(Name)
	}
	params := url.Values{"latlng": {fmt.Sprintf("%.6f,%.6f", lat, lon)}}

	var resp geocodeResponse
	if err := c.get(ctx, "reverse", "/maps/api/geocode/json", params, &resp); err != nil {
		return domain.AddressCandidate{}, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return domain.AddressCandidate{}, err
	}
	if len(resp.Results) == 0 {
		return domain.AddressCandidate{}, upstream.Fail(Name, "no results", nil)
	}
	return resp.Results[0].candidate()
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	params.Set("key", c.apiKey)
	return upstream.FetchJSON(ctx, c.httpClient, upstream.Request{
		Provider:  Name,
		Operation: op,
		URL:       c.baseURL + path + "?" + params.Encode(),
	}, out)
}

// checkStatus maps the API-level status field, which is reported with HTTP 200.
func checkStatus(status, message string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS":
		return upstream.Fail(Name, "no results", nil)
	case "":
		return upstream.Fail(Name, "missing status", nil)
	}
	if message != "" {
		return upstream.Fail(Name, status+": "+message, nil)
	}
	return upstream.Fail(Name, status, nil)
}

// Google API response types.

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	FormattedAddress  string      `json:"formatted_address"`
	PlaceID           string      `json:"place_id"`
	AddressComponents []component `json:"address_components"`
	Geometry          geometry    `json:"geometry"`
}

type component struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type geometry struct {
	Location struct {
		Lat upstream.Float `json:"lat"`
		Lng upstream.Float `json:"lng"`
	} `json:"location"`
	LocationType string `json:"location_type"`
}

type placesResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	PlaceID          string   `json:"place_id"`
	Geometry         geometry `json:"geometry"`
}

func (r geocodeResult) candidate() (domain.AddressCandidate, error) {
	p, err := upstream.Point(Name, r.Geometry.Location.Lat, r.Geometry.Location.Lng)
	if err != nil {
		return domain.AddressCandidate{}, err
	}
	parts := make(map[string]string)
	for _, comp := range r.AddressComponents {
		for _, t := range comp.Types {
			if _, seen := parts[t]; !seen {
				parts[t] = comp.LongName
			}
		}
	}
	return domain.AddressCandidate{
		Coordinates:      p,
		FormattedAddress: r.FormattedAddress,
		Street:           upstream.JoinNonEmpty(" ", parts["street_number"], parts["route"]),
		Locality:         upstream.FirstNonEmpty(parts["sublocality_level_1"], parts["sublocality"], parts["neighborhood"]),
		City:             upstream.FirstNonEmpty(parts["locality"], parts["administrative_area_level_2"]),
		State:            parts["administrative_area_level_1"],
		PostalCode:       parts["postal_code"],
		Country:          parts["country"],
		Provider:         Name,
		Confidence:       confidence(r.Geometry.LocationType),
		Raw:              r.PlaceID,
	}, nil
}

func confidence(locationType string) float64 {
	switch locationType {
	case "ROOFTOP":
		return 1.0
	case "RANGE_INTERPOLATED":
		return 0.8
	case "GEOMETRIC_CENTER":
		return 0.6
	default:
		return 0.4
	}
}
