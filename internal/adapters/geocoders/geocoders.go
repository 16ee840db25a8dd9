// Package geocoders builds the ordered provider chain from configuration.
package geocoders

import (
	"log/slog"

	"github.com/samirrijal/localshop/internal/adapters/geocoders/google"
	"github.com/samirrijal/localshop/internal/adapters/geocoders/mappls"
	"github.com/samirrijal/localshop/internal/adapters/geocoders/nominatim"
	"github.com/samirrijal/localshop/internal/core/ports"
	"github.com/samirrijal/localshop/internal/pkg/config"
)

// FromConfig returns the providers in priority order: the regional provider
// first, then the global commercial one, then the keyless fallback.
// Providers without credentials are still returned and report Available() == false.
func FromConfig(cfg config.GeocodeConfig, logger *slog.Logger) []ports.GeocodeProvider {
	return []ports.GeocodeProvider{
		mappls.NewClient(mappls.Config{
			Enabled: cfg.Mappls.Enabled,
			APIKey:  cfg.Mappls.APIKey,
			BaseURL: cfg.Mappls.BaseURL,
			Timeout: cfg.Mappls.Timeout,
		}, logger),
		google.NewClient(google.Config{
			Enabled: cfg.Google.Enabled,
			APIKey:  cfg.Google.APIKey,
			BaseURL: cfg.Google.BaseURL,
			Region:  cfg.Google.Region,
			Timeout: cfg.Google.Timeout,
		}, logger),
		nominatim.NewClient(nominatim.Config{
			Enabled:   cfg.Nominatim.Enabled,
			BaseURL:   cfg.Nominatim.BaseURL,
			UserAgent: cfg.UserAgent,
			Countries: cfg.Nominatim.Region,
			Timeout:   cfg.Nominatim.Timeout,
		}, logger),
	}
}

// Available filters to the providers that can currently be called.
func Available(providers []ports.GeocodeProvider) []ports.GeocodeProvider {
	out := make([]ports.GeocodeProvider, 0, len(providers))
	for _, p := range providers {
		if p.Available() {
			out = append(out, p)
		}
	}
	return out
}
