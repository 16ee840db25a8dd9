package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/localshop/internal/core/usecases"
)

// DefaultRequestTimeout exceeds the default mappls, google and nominatim
// timeouts combined.
const DefaultRequestTimeout = 30 * time.Second

// ReadinessCheck pings one backing service for /v1/ready.
type ReadinessCheck func(ctx context.Context) error

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Geocoding *usecases.GeocodingService
	Search    *usecases.ShopSearchService
	Shops     *usecases.ShopService
	// NATS feeds the /ws relay; nil disables it.
	NATS *nats.Conn
	// Checks are keyed by the name reported in the readiness body.
	Checks map[string]ReadinessCheck
	// JWTSecret verifies HS256 caller tokens. Empty means every caller is anonymous.
	JWTSecret string
	// RequestsPerMinute bounds requests per client IP; zero disables the limiter.
	RequestsPerMinute int
	// RequestTimeout bounds each REST handler; zero means DefaultRequestTimeout.
	RequestTimeout time.Duration
	Version        string
	SpecPath       string
	Logger         *slog.Logger
}
