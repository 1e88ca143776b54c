package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is built once in main and
// passed down explicitly; no package reads the environment on its own.
type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Upstream    UpstreamConfig    `json:"upstream" yaml:"upstream"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	Database    DatabaseConfig    `json:"database" yaml:"database"`
	Security    SecurityConfig    `json:"security" yaml:"security"`
	RateLimit   RateLimitConfig   `json:"rate_limit" yaml:"rate_limit"`
	Tracing     TracingConfig     `json:"tracing" yaml:"tracing"`
	Leaderboard LeaderboardConfig `json:"leaderboard" yaml:"leaderboard"`
	Features    FeaturesConfig    `json:"features" yaml:"features"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port      string `json:"port" yaml:"port"`
	Host      string `json:"host" yaml:"host"`
	EnableTLS bool   `json:"enable_tls" yaml:"enable_tls"`
	CertFile  string `json:"cert_file" yaml:"cert_file"`
	KeyFile   string `json:"key_file" yaml:"key_file"`
}

// UpstreamConfig points at the Sheger Walk REST API.
type UpstreamConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	Token          string `json:"token" yaml:"token"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// CacheConfig selects where fetched collections are cached.
type CacheConfig struct {
	Backend       string `json:"backend" yaml:"backend"` // memory | redis | none
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
	TTLSeconds    int    `json:"ttl_seconds" yaml:"ttl_seconds"`
}

// DatabaseConfig holds the audit log location.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 10MB)
	MaxRequestBodySize int64 `json:"max_request_body_size" yaml:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins" yaml:"allowed_origins"`
	// Upload ceilings in bytes
	MaxChallengeImageSize int64 `json:"max_challenge_image_size" yaml:"max_challenge_image_size"`
	MaxProviderLogoSize   int64 `json:"max_provider_logo_size" yaml:"max_provider_logo_size"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Rate    int  `json:"rate" yaml:"rate"`
	Window  int  `json:"window" yaml:"window"` // in seconds
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	ServiceName string `json:"service_name" yaml:"service_name"`
	Environment string `json:"environment" yaml:"environment"`
}

// LeaderboardConfig controls the background leaderboard refresh.
type LeaderboardConfig struct {
	RefreshSeconds int `json:"refresh_seconds" yaml:"refresh_seconds"`
}

// FeaturesConfig seeds the feature flag manager.
type FeaturesConfig struct {
	ServerSideFiltering bool `json:"server_side_filtering" yaml:"server_side_filtering"`
	EventHooks          bool `json:"event_hooks" yaml:"event_hooks"`
	WithdrawalReview    bool `json:"withdrawal_review" yaml:"withdrawal_review"`
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values. Files ending
// in .yaml or .yml are parsed as YAML, anything else as JSON.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnv("SERVER_PORT", "8080"),
			Host:      getEnv("SERVER_HOST", ""),
			EnableTLS: getEnvBool("SERVER_ENABLE_TLS", false),
			CertFile:  getEnv("SERVER_CERT_FILE", ""),
			KeyFile:   getEnv("SERVER_KEY_FILE", ""),
		},
		Upstream: UpstreamConfig{
			BaseURL:        getEnv("API_URL", "http://localhost:5000"),
			Token:          getEnv("API_TOKEN", ""),
			TimeoutSeconds: getEnvInt("API_TIMEOUT_SECONDS", 15),
		},
		Cache: CacheConfig{
			Backend:       getEnv("CACHE_BACKEND", "memory"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			TTLSeconds:    getEnvInt("CACHE_TTL_SECONDS", 30),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./sheger_walk_admin.db"),
		},
		Security: SecurityConfig{
			MaxRequestBodySize:    getEnvInt64("MAX_REQUEST_BODY_SIZE", 10<<20), // 10MB default
			AllowedOrigins:        getEnv("ALLOWED_ORIGINS", "*"),
			MaxChallengeImageSize: getEnvInt64("MAX_CHALLENGE_IMAGE_SIZE", 5<<20),
			MaxProviderLogoSize:   getEnvInt64("MAX_PROVIDER_LOGO_SIZE", 2<<20),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getEnvInt("RATE_LIMIT_RATE", 100),
			Window:  getEnvInt("RATE_LIMIT_WINDOW", 60),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", "http://localhost:14268/api/traces"),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "sheger-walk-admin"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Leaderboard: LeaderboardConfig{
			RefreshSeconds: getEnvInt("LEADERBOARD_REFRESH_SECONDS", 60),
		},
		Features: FeaturesConfig{
			ServerSideFiltering: getEnvBool("FEATURE_SERVER_SIDE_FILTERING", false),
			EventHooks:          getEnvBool("FEATURE_EVENT_HOOKS", true),
			WithdrawalReview:    getEnvBool("FEATURE_WITHDRAWAL_REVIEW", true),
		},
	}

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables (they take precedence)
	overrideFromEnv(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a JSON or YAML file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	strs := map[string]*string{
		"SERVER_PORT":          &cfg.Server.Port,
		"SERVER_HOST":          &cfg.Server.Host,
		"SERVER_CERT_FILE":     &cfg.Server.CertFile,
		"SERVER_KEY_FILE":      &cfg.Server.KeyFile,
		"API_URL":              &cfg.Upstream.BaseURL,
		"API_TOKEN":            &cfg.Upstream.Token,
		"CACHE_BACKEND":        &cfg.Cache.Backend,
		"REDIS_ADDR":           &cfg.Cache.RedisAddr,
		"REDIS_PASSWORD":       &cfg.Cache.RedisPassword,
		"DATABASE_PATH":        &cfg.Database.Path,
		"ALLOWED_ORIGINS":      &cfg.Security.AllowedOrigins,
		"TRACING_ENDPOINT":     &cfg.Tracing.Endpoint,
		"TRACING_SERVICE_NAME": &cfg.Tracing.ServiceName,
		"APP_ENV":              &cfg.Tracing.Environment,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"API_TIMEOUT_SECONDS":         &cfg.Upstream.TimeoutSeconds,
		"REDIS_DB":                    &cfg.Cache.RedisDB,
		"CACHE_TTL_SECONDS":           &cfg.Cache.TTLSeconds,
		"RATE_LIMIT_RATE":             &cfg.RateLimit.Rate,
		"RATE_LIMIT_WINDOW":           &cfg.RateLimit.Window,
		"LEADERBOARD_REFRESH_SECONDS": &cfg.Leaderboard.RefreshSeconds,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*dst = i
			}
		}
	}

	int64s := map[string]*int64{
		"MAX_REQUEST_BODY_SIZE":    &cfg.Security.MaxRequestBodySize,
		"MAX_CHALLENGE_IMAGE_SIZE": &cfg.Security.MaxChallengeImageSize,
		"MAX_PROVIDER_LOGO_SIZE":   &cfg.Security.MaxProviderLogoSize,
	}
	for key, dst := range int64s {
		if v := os.Getenv(key); v != "" {
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = i
			}
		}
	}

	bools := map[string]*bool{
		"SERVER_ENABLE_TLS":             &cfg.Server.EnableTLS,
		"RATE_LIMIT_ENABLED":            &cfg.RateLimit.Enabled,
		"TRACING_ENABLED":               &cfg.Tracing.Enabled,
		"FEATURE_SERVER_SIDE_FILTERING": &cfg.Features.ServerSideFiltering,
		"FEATURE_EVENT_HOOKS":           &cfg.Features.EventHooks,
		"FEATURE_WITHDRAWAL_REVIEW":     &cfg.Features.WithdrawalReview,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			*dst = strings.ToLower(v) == "true" || v == "1"
		}
	}
}

// getEnv gets an environment variable or returns the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64 gets an int64 environment variable or returns the default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("API_URL is required")
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_URL must be an absolute URL, got %q", c.Upstream.BaseURL)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Server.EnableTLS && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("cert and key files are required when TLS is enabled")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.Leaderboard.RefreshSeconds < 0 {
		return fmt.Errorf("leaderboard refresh interval cannot be negative")
	}
	return nil
}
