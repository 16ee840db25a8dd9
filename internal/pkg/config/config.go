package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Elastic   ElasticConfig   `mapstructure:"elastic"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Geocode   GeocodeConfig   `mapstructure:"geocode"`
	Search    SearchConfig    `mapstructure:"search"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects the shop store driver: postgres, elastic or memory.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type ElasticConfig struct {
	URL   string `mapstructure:"url"`
	Index string `mapstructure:"index"`
	Sniff bool   `mapstructure:"sniff"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// AuthConfig holds the HS256 secret used to verify caller tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RateLimitConfig struct {
	PerCaller int           `mapstructure:"per_caller"`
	Global    int           `mapstructure:"global"`
	Window    time.Duration `mapstructure:"window"`
}

type CacheConfig struct {
	GeocodeSize      int           `mapstructure:"geocode_size"`
	AutocompleteSize int           `mapstructure:"autocomplete_size"`
	DetailTTL        time.Duration `mapstructure:"detail_ttl"`
	AutocompleteTTL  time.Duration `mapstructure:"autocomplete_ttl"`
}

// ProviderConfig configures one geocoding backend. An empty APIKey disables
// providers that require one.
type ProviderConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Region  string        `mapstructure:"region"`
}

type GeocodeConfig struct {
	Mappls              ProviderConfig `mapstructure:"mappls"`
	Google              ProviderConfig `mapstructure:"google"`
	Nominatim           ProviderConfig `mapstructure:"nominatim"`
	UserAgent           string         `mapstructure:"user_agent"`
	AutocompleteTimeout time.Duration  `mapstructure:"autocomplete_timeout"`
	AsyncRetry          bool           `mapstructure:"async_retry"`
}

// ChainTimeout is the longest one resolve can spend walking every enabled
// provider in turn.
func (g GeocodeConfig) ChainTimeout() time.Duration {
	var total time.Duration
	for _, p := range []ProviderConfig{g.Mappls, g.Google, g.Nominatim} {
		if p.Enabled {
			total += p.Timeout
		}
	}
	return total
}

// RequestBudget bounds one REST handler. It is the write timeout, raised
// when needed so a full provider chain still fits with a second to spare.
func (c *Config) RequestBudget() time.Duration {
	budget := time.Duration(c.Server.WriteTimeout) * time.Second
	if chain := c.Geocode.ChainTimeout() + time.Second; chain > budget {
		budget = chain
	}
	return budget
}

type SearchConfig struct {
	DefaultRadius float64 `mapstructure:"default_radius"`
	MaxRadius     float64 `mapstructure:"max_radius"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: LOCALSHOP_GEOCODE_GOOGLE_API_KEY → geocode.google.api_key
	v.SetEnvPrefix("LOCALSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "localshop")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "localshop")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.index", "shops")
	v.SetDefault("elastic.sniff", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "geocode-queue")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("ratelimit.per_caller", 120)
	v.SetDefault("ratelimit.global", 600)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("cache.geocode_size", 1000)
	v.SetDefault("cache.autocomplete_size", 200)
	v.SetDefault("cache.detail_ttl", 30*time.Minute)
	v.SetDefault("cache.autocomplete_ttl", 5*time.Minute)
	v.SetDefault("geocode.mappls.enabled", true)
	v.SetDefault("geocode.mappls.api_key", "")
	v.SetDefault("geocode.mappls.base_url", "https://atlas.mappls.com")
	v.SetDefault("geocode.mappls.timeout", 5*time.Second)
	v.SetDefault("geocode.google.enabled", true)
	v.SetDefault("geocode.google.api_key", "")
	v.SetDefault("geocode.google.base_url", "https://maps.googleapis.com")
	v.SetDefault("geocode.google.timeout", 15*time.Second)
	v.SetDefault("geocode.google.region", "in")
	v.SetDefault("geocode.nominatim.enabled", true)
	v.SetDefault("geocode.nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.nominatim.timeout", 5*time.Second)
	v.SetDefault("geocode.nominatim.region", "in")
	v.SetDefault("geocode.user_agent", "localshop/1.0")
	v.SetDefault("geocode.autocomplete_timeout", 3*time.Second)
	v.SetDefault("geocode.async_retry", false)
	v.SetDefault("search.default_radius", 5000.0)
	v.SetDefault("search.max_radius", 50000.0)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case "elastic":
		if c.Elastic.URL == "" {
			errs = append(errs, "elastic.url is required")
		}
		if c.Elastic.Index == "" {
			errs = append(errs, "elastic.index is required")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres, elastic or memory, got %q", c.Store.Driver))
	}

	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.RateLimit.PerCaller <= 0 || c.RateLimit.Global <= 0 {
		errs = append(errs, "ratelimit.per_caller and ratelimit.global must be positive")
	}
	if c.RateLimit.PerCaller > c.RateLimit.Global {
		errs = append(errs, "ratelimit.per_caller cannot exceed ratelimit.global")
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, "ratelimit.window must be positive")
	}
	if c.Cache.GeocodeSize <= 0 || c.Cache.AutocompleteSize <= 0 {
		errs = append(errs, "cache sizes must be positive")
	}
	if c.Search.DefaultRadius <= 0 || c.Search.MaxRadius < c.Search.DefaultRadius {
		errs = append(errs, "search.default_radius must be positive and not exceed search.max_radius")
	}
	providers := []struct {
		name string
		cfg  ProviderConfig
	}{
		{"mappls", c.Geocode.Mappls},
		{"google", c.Geocode.Google},
		{"nominatim", c.Geocode.Nominatim},
	}
	for _, p := range providers {
		if p.cfg.Enabled && p.cfg.Timeout <= 0 {
			errs = append(errs, fmt.Sprintf("geocode.%s.timeout must be positive", p.name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
