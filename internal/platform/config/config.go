// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (1MB).
	DefaultMaxRequestSize = 1 << 20

	DefaultClientRetryMaxAttempts     = 3
	DefaultClientRetryMultiplier      = 2.0
	DefaultClientRetryJitterFactor    = 0.25
	DefaultClientCircuitMaxFailures   = 5
	DefaultClientCircuitHalfOpenLimit = 3

	DefaultTransportMaxIdleConns        = 100
	DefaultTransportMaxIdleConnsPerHost = 10

	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 3
	DefaultLogFileMaxAgeDays = 28

	// DefaultMarketDataRatePerMinute matches the free tier of the market data API.
	DefaultMarketDataRatePerMinute = 5

	// DefaultCompetitorsClientID is the public client id of the secondary source's login form.
	DefaultCompetitorsClientID = "5hssEAdMy0mJTICnJNvC9TXEw3Va7jfO"

	DefaultCacheTTLMinutes  = 15
	DefaultCacheMaxEntries  = 10000
	DefaultUpstreamRetries  = 1
	DefaultBatchConcurrency = 4
	DefaultMaxBatchSymbols  = 20

	// DefaultQuoteFetchTimeout bounds one cache miss: rate limit waits, the
	// provider calls and enrichment together.
	DefaultQuoteFetchTimeout = 20 * time.Second
)

// envPrefix is the prefix of environment overrides. Nesting uses a double
// underscore so keys that contain underscores stay addressable:
// APP_SERVICES__MARKET_DATA__API_KEY -> services.market_data.api_key.
const envPrefix = "APP_"

// Well-known secret variables, honoured for compatibility with .env files
// shared with other tooling.
const (
	EnvMarketDataAPIKey    = "POLYGON_API_KEY"
	EnvCompetitorsUser     = "MARKETWATCH_USER"
	EnvCompetitorsPassword = "MARKETWATCH_PWD"
	EnvCompetitorsClientID = "MARKETWATCH_ID"
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Auth      AuthConfig      `koanf:"auth"`
	Client    ClientConfig    `koanf:"client"    validate:"required"`
	Services  ServicesConfig  `koanf:"services"  validate:"required"`
	Quotes    QuotesConfig    `koanf:"quotes"    validate:"required"`
	Cache     CacheConfig     `koanf:"cache"     validate:"required"`

	// Features holds static feature flag values keyed by flag name.
	Features map[string]any `koanf:"features"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Endpoint       string        `koanf:"endpoint"        validate:"required_if=Enabled true"`
	ServiceName    string        `koanf:"service_name"    validate:"required_if=Enabled true"`
	SamplingRate   float64       `koanf:"sampling_rate"   validate:"min=0,max=1"`
	Insecure       bool          `koanf:"insecure"`
	ExportInterval time.Duration `koanf:"export_interval" validate:"omitempty,min=1s"`
}

// AuthConfig describes the identity headers set by the API gateway.
// Tokens are verified upstream; this service only reads the headers.
type AuthConfig struct {
	Enabled       bool   `koanf:"enabled"`
	SubjectHeader string `koanf:"subject_header"`
	ScopesHeader  string `koanf:"scopes_header"`

	// RequiredScope, when set, must be granted to call /api/v1/stocks.
	RequiredScope string `koanf:"required_scope"`
}

// ClientConfig contains HTTP client settings shared by downstream services.
type ClientConfig struct {
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
}

// RetryConfig contains retry settings for HTTP clients.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig contains circuit breaker settings for HTTP clients.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"          validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"       validate:"required,min=1s"`
}

// ServicesConfig contains configuration for the two upstream sources.
type ServicesConfig struct {
	MarketData  MarketDataConfig  `koanf:"market_data" validate:"required"`
	Competitors CompetitorsConfig `koanf:"competitors"`
}

// MarketDataConfig configures the paid quote provider.
type MarketDataConfig struct {
	Name               string        `koanf:"name"                  validate:"required"`
	BaseURL            string        `koanf:"base_url"              validate:"required,url"`
	APIKey             string        `koanf:"api_key"`
	Timeout            time.Duration `koanf:"timeout"               validate:"required,min=100ms"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute" validate:"min=0"`

	// MinDate is the earliest day the provider has data for (YYYY-MM-DD).
	MinDate string `koanf:"min_date" validate:"omitempty,datetime=2006-01-02"`
}

// CompetitorsConfig configures the scraped secondary source.
type CompetitorsConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Name            string        `koanf:"name"             validate:"required_if=Enabled true"`
	BaseURL         string        `koanf:"base_url"         validate:"required_if=Enabled true,omitempty,url"`
	LoginURL        string        `koanf:"login_url"        validate:"omitempty,url"`
	PagePath        string        `koanf:"page_path"        validate:"required_if=Enabled true"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	ClientID        string        `koanf:"client_id"`
	ProxyURL        string        `koanf:"proxy_url"        validate:"omitempty,url"`
	UserAgent       string        `koanf:"user_agent"`
	Timeout         time.Duration `koanf:"timeout"          validate:"required_if=Enabled true,omitempty,min=100ms"`
	SessionTTL      time.Duration `koanf:"session_ttl"      validate:"omitempty,min=1m"`
	DefaultCurrency string        `koanf:"default_currency" validate:"omitempty,len=3,uppercase"`
}

// HasCredentials reports whether a login can be attempted.
func (c CompetitorsConfig) HasCredentials() bool {
	return c.LoginURL != "" && c.Username != "" && c.Password != ""
}

// QuotesConfig tunes the quote service.
type QuotesConfig struct {
	// UpstreamRetries is how many times an UpstreamError is retried.
	UpstreamRetries  int `koanf:"upstream_retries"  validate:"min=0,max=3"`
	BatchConcurrency int `koanf:"batch_concurrency" validate:"required,min=1,max=32"`
	MaxBatchSymbols  int `koanf:"max_batch_symbols" validate:"required,min=1,max=100"`

	// FetchTimeout bounds the shared fetch behind a cache miss. It outlives
	// any single caller but never runs unbounded.
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"required,min=100ms"`
}

// CacheConfig selects and tunes the quote cache backend.
type CacheConfig struct {
	Backend       string `koanf:"backend"        validate:"required,oneof=memory sqlite"`
	TTLMinutes    int    `koanf:"ttl_minutes"    validate:"required,min=1"`
	MaxEntries    int    `koanf:"max_entries"    validate:"min=0"`
	SQLitePath    string `koanf:"sqlite_path"    validate:"required_if=Backend sqlite"`
	SweepSchedule string `koanf:"sweep_schedule" validate:"omitempty,cron"`
}

// TTL returns the entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "stockquote-service",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "25s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":         false,
		"telemetry.endpoint":        "",
		"telemetry.service_name":    "stockquote-service",
		"telemetry.sampling_rate":   1.0,
		"telemetry.export_interval": "30s",

		"auth.enabled":        false,
		"auth.subject_header": "X-User-ID",
		"auth.scopes_header":  "X-User-Scopes",

		"client.retry.max_attempts":                DefaultClientRetryMaxAttempts,
		"client.retry.initial_interval":            "100ms",
		"client.retry.max_interval":                "5s",
		"client.retry.multiplier":                  DefaultClientRetryMultiplier,
		"client.retry.jitter_factor":               DefaultClientRetryJitterFactor,
		"client.circuit_breaker.max_failures":      DefaultClientCircuitMaxFailures,
		"client.circuit_breaker.timeout":           "30s",
		"client.circuit_breaker.half_open_limit":   DefaultClientCircuitHalfOpenLimit,
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",

		"services.market_data.name":                  "market-data",
		"services.market_data.base_url":              "https://api.polygon.io",
		"services.market_data.api_key":               "",
		"services.market_data.timeout":               "10s",
		"services.market_data.rate_limit_per_minute": DefaultMarketDataRatePerMinute,
		"services.market_data.min_date":              "2003-09-10",

		"services.competitors.enabled":          true,
		"services.competitors.name":             "competitor-source",
		"services.competitors.base_url":         "https://www.marketwatch.com",
		"services.competitors.login_url":        "https://sso.accounts.dowjones.com/usernamepassword/login",
		"services.competitors.page_path":        "/investing/stock/%s",
		"services.competitors.client_id":        DefaultCompetitorsClientID,
		"services.competitors.timeout":          "8s",
		"services.competitors.session_ttl":      "30m",
		"services.competitors.default_currency": "USD",

		"quotes.upstream_retries":  DefaultUpstreamRetries,
		"quotes.batch_concurrency": DefaultBatchConcurrency,
		"quotes.max_batch_symbols": DefaultMaxBatchSymbols,
		"quotes.fetch_timeout":     DefaultQuoteFetchTimeout,

		"cache.backend":        "memory",
		"cache.ttl_minutes":    DefaultCacheTTLMinutes,
		"cache.max_entries":    DefaultCacheMaxEntries,
		"cache.sqlite_path":    "./data/quotes.db",
		"cache.sweep_schedule": "@every 5m",

		"features.competitor-enrichment": true,
		"features.performance-data":      true,
	}
}

// LoadDotEnv loads variables from .env files that exist, never overriding
// variables already set in the process environment.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading dotenv: %w", err)
	}

	return nil
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Well-known secret variables (POLYGON_API_KEY, MARKETWATCH_*)
//  2. Environment variables (APP_ prefix, __ for nesting)
//  3. Profile config file (configs/{profile}.yaml)
//  4. Base config file (configs/base.yaml)
//  5. Default values
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	err = k.Load(env.Provider(envPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applySecretEnv(&cfg)

	return &cfg, nil
}

// envKey maps APP_SERVICES__MARKET_DATA__API_KEY to services.market_data.api_key.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

func applySecretEnv(cfg *Config) {
	set := func(dst *string, name string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}

	set(&cfg.Services.MarketData.APIKey, EnvMarketDataAPIKey)
	set(&cfg.Services.Competitors.Username, EnvCompetitorsUser)
	set(&cfg.Services.Competitors.Password, EnvCompetitorsPassword)
	set(&cfg.Services.Competitors.ClientID, EnvCompetitorsClientID)
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
