package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	OpenFoodFacts OpenFoodFactsConfig `mapstructure:"openfoodfacts"`
	Cache         CacheConfig         `mapstructure:"cache"`
	History       HistoryConfig       `mapstructure:"history"`
	Scoring       ScoringConfig       `mapstructure:"scoring"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	Log           LogConfig           `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// OpenFoodFactsConfig holds the upstream sources.
// MirrorURLs are tried after PrimaryURL; entries equal to the primary are skipped.
type OpenFoodFactsConfig struct {
	PrimaryURL string        `mapstructure:"primary_url"`
	MirrorURLs []string      `mapstructure:"mirror_urls"`
	SearchURL  string        `mapstructure:"search_url"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // "memory"
	TTL  time.Duration `mapstructure:"ttl"`
}

// HistoryConfig holds scan history configuration
type HistoryConfig struct {
	Backend    string `mapstructure:"backend"` // "memory" or "pebble"
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// ScoringConfig selects the score weighting
type ScoringConfig struct {
	Profile string `mapstructure:"profile"` // "standard" or "strict"
}

// RateLimitConfig holds rate limiting configuration, all per minute
type RateLimitConfig struct {
	PerIP        int `mapstructure:"per_ip"`
	ProductReads int `mapstructure:"product_reads"`
	Searches     int `mapstructure:"searches"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"; empty picks by environment
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/freshcheck/")

	// Environment variable settings: FRESHCHECK_SERVER_PORT -> server.port
	v.SetEnvPrefix("FRESHCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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

// loadEnvFile exports variables from ./.env without overriding the environment.
// A missing file is not an error.
func loadEnvFile() error {
	err := gotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Open Food Facts defaults
	v.SetDefault("openfoodfacts.primary_url", "https://world.openfoodfacts.org/api/v2")
	v.SetDefault("openfoodfacts.mirror_urls", []string{
		"https://world.openfoodfacts.org/api/v2",
		"https://us.openfoodfacts.org/api/v2",
		"https://au.openfoodfacts.org/api/v2",
		"https://uk.openfoodfacts.org/api/v2",
	})
	v.SetDefault("openfoodfacts.search_url", "https://world.openfoodfacts.org/cgi/search.pl")
	v.SetDefault("openfoodfacts.user_agent", "FreshCheck/1.0 (nutrition-scanner)")
	v.SetDefault("openfoodfacts.timeout", "5s")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// History defaults
	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.path", "data/history")
	v.SetDefault("history.max_entries", 50)

	// Scoring defaults
	v.SetDefault("scoring.profile", "standard")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.product_reads", 100)
	v.SetDefault("ratelimit.searches", 10)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
}

// validate validates the configuration
func validate(config *Config) error {
	if err := validateURL("openfoodfacts.primary_url", config.OpenFoodFacts.PrimaryURL); err != nil {
		return err
	}
	for _, mirror := range config.OpenFoodFacts.MirrorURLs {
		if err := validateURL("openfoodfacts.mirror_urls", mirror); err != nil {
			return err
		}
	}
	if err := validateURL("openfoodfacts.search_url", config.OpenFoodFacts.SearchURL); err != nil {
		return err
	}

	if config.OpenFoodFacts.Timeout <= 0 {
		return fmt.Errorf("openfoodfacts timeout must be positive, got: %s", config.OpenFoodFacts.Timeout)
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}

	switch config.History.Backend {
	case "memory":
	case "pebble":
		if config.History.Path == "" {
			return fmt.Errorf("history path is required when history backend is 'pebble'")
		}
	default:
		return fmt.Errorf("history backend must be 'memory' or 'pebble', got: %s", config.History.Backend)
	}

	if config.History.MaxEntries <= 0 {
		return fmt.Errorf("history max_entries must be positive, got: %d", config.History.MaxEntries)
	}

	if config.Scoring.Profile != "standard" && config.Scoring.Profile != "strict" {
		return fmt.Errorf("scoring profile must be 'standard' or 'strict', got: %s", config.Scoring.Profile)
	}

	if config.Log.Format != "" && config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got: %q", key, raw)
	}
	return nil
}
