// Package mappls adapts the Mappls (MapmyIndia) places API, the regional
// primary provider.
package mappls

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/samirrijal/localshop/internal/adapters/geocoders/upstream"
	"github.com/samirrijal/localshop/internal/core/domain"
)

// Name identifies this provider in candidates, logs and metrics.
const Name = "mappls"

// Config configures the client. An empty APIKey leaves it unavailable.
type Config struct {
	Enabled bool
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements ports.GeocodeProvider, ports.Autocompleter and
// ports.ReverseGeocoder.
type Client struct {
	enabled    bool
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Mappls client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://atlas.mappls.com"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		enabled:    cfg.Enabled,
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("provider", Name),
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) Available() bool { return c.enabled && c.apiKey != "" }

// Geocode resolves a free-text address to its best match.
func (c *Client) Geocode(ctx context.Context, address string) (domain.AddressCandidate, error) {
	if !c.Available() {
		return domain.AddressCandidate{}, upstream.Unavailable(Name)
	}
	params := url.Values{
		"address":   {address},
		"itemCount": {"1"},
	}

	var resp geocodeResponse
	if err := c.get(ctx, "geocode", "/api/places/geocode", params, &resp); err != nil {
		return domain.AddressCandidate{}, err
	}

	results, err := resp.results()
	if err != nil {
		return domain.AddressCandidate{}, upstream.Fail(Name, "unexpected copResults shape", err)
	}
	if len(results) == 0 {
		return domain.AddressCandidate{}, upstream.Fail(Name, "no results", nil)
	}
	return results[0].candidate()
}

// Autocomplete returns place suggestions, optionally biased towards a point.
func (c *Client) Autocomplete(ctx context.Context, text string, bias *domain.GeoPoint, limit int) ([]domain.AddressCandidate, error) {
	if !c.Available() {
		return nil, upstream.Unavailable(Name)
	}
	params := url.Values{
		"query":     {text},
		"itemCount": {strconv.Itoa(limit)},
	}
	if bias != nil {
		params.Set("location", fmt.Sprintf("%.6f,%.6f", bias.Lat, bias.Lon))
	}

	var resp searchResponse
	if err := c.get(ctx, "autocomplete", "/api/places/search/json", params, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.AddressCandidate, 0, len(resp.SuggestedLocations))
	for _, s := range resp.SuggestedLocations {
		cand, err := s.candidate()
		if err != nil {
			c.logger.Debug("skipping suggestion", "place", s.PlaceName, "error", err)
			continue
		}
		out = append(out, cand)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ReverseGeocode resolves coordinates to the nearest address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.AddressCandidate, error) {
	if !c.Available() {
		return domain.AddressCandidate{}, upstream.Unavailable(Name)
	}
	params := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lng": {strconv.FormatFloat(lon, 'f', 6, 64)},
	}

	var resp reverseResponse
	if err := c.get(ctx, "reverse", "/api/places/rev_geocode", params, &resp); err != nil {
		return domain.AddressCandidate{}, err
	}
	if resp.ResponseCode != 0 && resp.ResponseCode != http.StatusOK {
		return domain.AddressCandidate{}, upstream.Fail(Name, fmt.Sprintf("response code %d", resp.ResponseCode), nil)
	}
	if len(resp.Results) == 0 {
		return domain.AddressCandidate{}, upstream.Fail(Name, "no results", nil)
	}
	return resp.Results[0].candidate(lat, lon)
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	return upstream.FetchJSON(ctx, c.httpClient, upstream.Request{
		Provider:  Name,
		Operation: op,
		URL:       c.baseURL + path + "?" + params.Encode(),
		Header:    http.Header{"Authorization": {"bearer " + c.apiKey}},
	}, out)
}

// Mappls API response types.

type geocodeResponse struct {
	// copResults is a single object for itemCount=1 and an array otherwise.
	CopResults json.RawMessage `json:"copResults"`
}

func (r geocodeResponse) results() ([]copResult, error) {
	if len(r.CopResults) == 0 || string(r.CopResults) == "null" {
		return nil, nil
	}
	var many []copResult
	if err := json.Unmarshal(r.CopResults, &many); err == nil {
		return many, nil
	}
	var one copResult
	if err := json.Unmarshal(r.CopResults, &one); err != nil {
		return nil, err
	}
	return []copResult{one}, nil
}

type copResult struct {
	HouseNumber      string         `json:"houseNumber"`
	HouseName        string         `json:"houseName"`
	Street           string         `json:"street"`
	SubLocality      string         `json:"subLocality"`
	Locality         string         `json:"locality"`
	City             string         `json:"city"`
	District         string         `json:"district"`
	State            string         `json:"state"`
	Pincode          string         `json:"pincode"`
	FormattedAddress string         `json:"formattedAddress"`
	ELoc             string         `json:"eLoc"`
	Latitude         upstream.Float `json:"latitude"`
	Longitude        upstream.Float `json:"longitude"`
	ConfidenceScore  upstream.Float `json:"confidenceScore"`
}

func (r copResult) candidate() (domain.AddressCandidate, error) {
	p, err := upstream.Point(Name, r.Latitude, r.Longitude)
	if err != nil {
		return domain.AddressCandidate{}, err
	}
	return domain.AddressCandidate{
		Coordinates:      p,
		FormattedAddress: r.FormattedAddress,
		Street:           upstream.JoinNonEmpty(" ", r.HouseNumber, r.HouseName, r.Street),
		Locality:         upstream.FirstNonEmpty(r.SubLocality, r.Locality),
		City:             upstream.FirstNonEmpty(r.City, r.District),
		State:            r.State,
		PostalCode:       r.Pincode,
		Country:          "India",
		Provider:         Name,
		Confidence:       upstream.Clamp01(float64(r.ConfidenceScore)),
		Raw:              r.ELoc,
	}, nil
}

type searchResponse struct {
	SuggestedLocations []suggestion `json:"suggestedLocations"`
}

type suggestion struct {
	PlaceName    string         `json:"placeName"`
	PlaceAddress string         `json:"placeAddress"`
	ELoc         string         `json:"eLoc"`
	Type         string         `json:"type"`
	Latitude     upstream.Float `json:"latitude"`
	Longitude    upstream.Float `json:"longitude"`
}

func (s suggestion) candidate() (domain.AddressCandidate, error) {
	p, err := upstream.Point(Name, s.Latitude, s.Longitude)
	if err != nil {
		return domain.AddressCandidate{}, err
	}
	return domain.AddressCandidate{
		Coordinates:      p,
		FormattedAddress: upstream.JoinNonEmpty(", ", s.PlaceName, s.PlaceAddress),
		Locality:         s.PlaceName,
		Country:          "India",
		Provider:         Name,
		Confidence:       0.5,
		Raw:              s.ELoc,
	}, nil
}

type reverseResponse struct {
	ResponseCode int             `json:"responseCode"`
	Results      []reverseResult `json:"results"`
}

type reverseResult struct {
	HouseNumber      string         `json:"houseNumber"`
	Street           string         `json:"street"`
	SubLocality      string         `json:"subLocality"`
	Locality         string         `json:"locality"`
	City             string         `json:"city"`
	District         string         `json:"district"`
	State            string         `json:"state"`
	Pincode          string         `json:"pincode"`
	FormattedAddress string         `json:"formatted_address"`
	Lat              upstream.Float `json:"lat"`
	Lng              upstream.Float `json:"lng"`
}

func (r reverseResult) candidate(lat, lon float64) (domain.AddressCandidate, error) {
	// Some responses omit the snapped point; fall back to the query point.
	if r.Lat == 0 && r.Lng == 0 {
		r.Lat, r.Lng = upstream.Float(lat), upstream.Float(lon)
	}
	p, err := upstream.Point(Name, r.Lat, r.Lng)
	if err != nil {
		return domain.AddressCandidate{}, err
	}
	return domain.AddressCandidate{
		Coordinates:      p,
		FormattedAddress: r.FormattedAddress,
		Street:           upstream.JoinNonEmpty(" ", r.HouseNumber, r.Street),
		Locality:         upstream.FirstNonEmpty(r.SubLocality, r.Locality),
		City:             upstream.FirstNonEmpty(r.City, r.District),
		State:            r.State,
		PostalCode:       r.Pincode,
		Country:          "India",
		Provider:         Name,
		Confidence:       0.8,
	}, nil
}
