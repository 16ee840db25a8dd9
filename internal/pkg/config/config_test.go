package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("localshop-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "localshop-test", cfg.Telemetry.ServiceName)
	assert.Equal(t, 120, cfg.RateLimit.PerCaller)
	assert.Equal(t, 600, cfg.RateLimit.Global)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 1000, cfg.Cache.GeocodeSize)
	assert.Equal(t, 200, cfg.Cache.AutocompleteSize)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DetailTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.AutocompleteTTL)
	assert.Equal(t, 15*time.Second, cfg.Geocode.Google.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Geocode.Mappls.Timeout)
	assert.Empty(t, cfg.Geocode.Google.APIKey)
	assert.Equal(t, 5000.0, cfg.Search.DefaultRadius)
	assert.Equal(t, 50000.0, cfg.Search.MaxRadius)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("LOCALSHOP_SERVER_PORT", "9090")
	t.Setenv("LOCALSHOP_STORE_DRIVER", "memory")
	t.Setenv("LOCALSHOP_GEOCODE_GOOGLE_API_KEY", "g-key")
	t.Setenv("LOCALSHOP_GEOCODE_MAPPLS_TIMEOUT", "2s")
	t.Setenv("LOCALSHOP_RATELIMIT_PER_CALLER", "10")
	t.Setenv("LOCALSHOP_CACHE_DETAIL_TTL", "10m")

	cfg, err := Load("localshop-test")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "g-key", cfg.Geocode.Google.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Geocode.Mappls.Timeout)
	assert.Equal(t, 10, cfg.RateLimit.PerCaller)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DetailTTL)
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("LOCALSHOP_STORE_DRIVER", "mongo")
	_, err := Load("localshop-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: "memory"}}
	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "server.port")
	assert.Contains(t, msg, "nats.url")
	assert.Contains(t, msg, "ratelimit.window")
	assert.Contains(t, msg, "search.default_radius")
}

func TestValidate_PerCallerAboveGlobal(t *testing.T) {
	t.Setenv("LOCALSHOP_RATELIMIT_PER_CALLER", "700")
	_, err := Load("localshop-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot exceed")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "db", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", d.DSN())
}

func TestRequestBudget_CoversProviderChain(t *testing.T) {
	cfg, err := Load("localshop-test")
	require.NoError(t, err)

	assert.Equal(t, 25*time.Second, cfg.Geocode.ChainTimeout())
	assert.Equal(t, 26*time.Second, cfg.RequestBudget())
	assert.Greater(t, cfg.RequestBudget(), cfg.Geocode.Google.Timeout)

	cfg.Geocode.Google.Enabled = false
	assert.Equal(t, 10*time.Second, cfg.Geocode.ChainTimeout())
	assert.Equal(t, 20*time.Second, cfg.RequestBudget(), "write timeout wins when it is longer")

	cfg.Server.WriteTimeout = 5
	assert.Equal(t, 11*time.Second, cfg.RequestBudget())
}
