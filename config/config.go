package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Shopify    ShopifyConfig
	Matching   MatchingConfig
	PriceSync  PriceSyncConfig
	Benchmarks BenchmarkConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// ShopifyConfig holds platform credentials. Empty credentials are allowed at
// startup: matching against explicit product lists works without the
// platform, and platform-dependent endpoints fail fast instead.
type ShopifyConfig struct {
	ShopDomain  string `mapstructure:"shop_domain"`
	AccessToken string `mapstructure:"access_token"`
	APIVersion  string `mapstructure:"api_version"`
}

// MatchingConfig holds matching engine configuration
type MatchingConfig struct {
	AcceptanceThreshold float64 `mapstructure:"acceptance_threshold"`
	CandidateLimit      int     `mapstructure:"candidate_limit"`
}

// PriceSyncConfig holds bulk price adjustment and metafield push pacing
type PriceSyncConfig struct {
	WriteInterval time.Duration `mapstructure:"write_interval"`
}

// BenchmarkConfig holds benchmark cache configuration
type BenchmarkConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RateLimitConfig holds HTTP rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per second per client IP
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// Environment variable settings
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pricelens")
	v.SetDefault("database.name", "pricelens")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_idle", 5)

	v.SetDefault("database.password", "")

	// Shopify defaults. Empty defaults keep the keys visible to Unmarshal
	// when the values arrive via environment variables.
	v.SetDefault("shopify.shop_domain", "")
	v.SetDefault("shopify.access_token", "")
	v.SetDefault("shopify.api_version", "2024-01")

	// Matching defaults
	v.SetDefault("matching.acceptance_threshold", 0.25)
	v.SetDefault("matching.candidate_limit", 10)

	// Price sync defaults
	v.SetDefault("pricesync.write_interval", "600ms")

	// Benchmark defaults
	v.SetDefault("benchmarks.cache_ttl", "1h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 20)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required (set PRICELENS_DATABASE_HOST)")
	}
	if config.Database.Name == "" {
		return fmt.Errorf("database name is required (set PRICELENS_DATABASE_NAME)")
	}

	if config.Matching.AcceptanceThreshold < 0 || config.Matching.AcceptanceThreshold >= 1 {
		return fmt.Errorf("matching acceptance threshold must be in [0, 1), got: %g",
			config.Matching.AcceptanceThreshold)
	}

	if (config.Shopify.ShopDomain == "") != (config.Shopify.AccessToken == "") {
		return fmt.Errorf("shopify shop_domain and access_token must be set together")
	}

	return nil
}
