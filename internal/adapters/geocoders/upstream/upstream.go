// Package upstream holds the HTTP plumbing shared by geocoding provider adapters.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/localshop/internal/core/domain"
	"github.com/samirrijal/localshop/internal/pkg/metrics"
)

// maxErrorBody caps how much of a failed response is echoed into the reason.
const maxErrorBody = 256

// Request describes one upstream GET.
type Request struct {
	Provider  string
	Operation string
	URL       string
	Header    http.Header
}

// FetchJSON performs req and decodes a 200 response into out. Every failure
// is returned as a *domain.ProviderError; the call is recorded in metrics.
func FetchJSON(ctx context.Context, client *http.Client, req Request, out any) error {
	start := time.Now()
	err := fetch(ctx, client, req, out)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	metrics.GeocodeProviderRequests.WithLabelValues(req.Provider, req.Operation, outcome).Inc()
	metrics.GeocodeProviderDuration.WithLabelValues(req.Provider, req.Operation).Observe(time.Since(start).Seconds())
	return err
}

func fetch(ctx context.Context, client *http.Client, req Request, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Fail(req.Provider, "create request", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return Fail(req.Provider, req.Operation+" request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Fail(req.Provider, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Fail(req.Provider, "decode response", err)
	}
	return nil
}

// Fail builds a provider failure.
func Fail(provider, reason string, err error) error {
	return &domain.ProviderError{Provider: provider, Reason: reason, Err: err}
}

// Unavailable is returned by adapters without credentials, without network I/O.
func Unavailable(provider string) error {
	return &domain.ProviderError{Provider: provider, Reason: "not configured", Err: domain.ErrProviderUnavailable}
}

// Float decodes a JSON number, a numeric string, or null.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = Float(v)
	return nil
}

// Point validates lat/lon decoded from an upstream payload.
func Point(provider string, lat, lon Float) (domain.GeoPoint, error) {
	p := domain.NewGeoPoint(float64(lon), float64(lat))
	if p.IsZero() {
		return p, Fail(provider, "response has no coordinates", nil)
	}
	if err := p.Validate(); err != nil {
		return p, Fail(provider, "response has invalid coordinates", err)
	}
	return p, nil
}

// Clamp01 bounds a confidence value to [0, 1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// JoinNonEmpty joins the non-blank parts with sep.
func JoinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// FirstNonEmpty returns the first non-blank value.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
