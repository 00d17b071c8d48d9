// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty means the server runs on in-memory stores, which is
	// only useful for local development and tests.
	DatabaseURL string `koanf:"database_url"`

	// Redis. Empty disables the Redis-backed rate limit store and the
	// readiness check for Redis.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// Search
	MaxSearchRadiusKm float64 `koanf:"max_search_radius_km"`

	// Reputation
	VoteCooldown time.Duration `koanf:"vote_cooldown"`

	// Decay scheduler
	DecayCheckInterval time.Duration `koanf:"decay_check_interval"`
	DecayCycleTimeout  time.Duration `koanf:"decay_cycle_timeout"`

	// Rate limiting for the vote endpoints, requests per minute per IP.
	VoteRateLimitPerMinute int `koanf:"vote_rate_limit_per_minute"`

	// CORSAllowedOrigins lists browser origins permitted to call the API.
	// Empty disables CORS handling entirely.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// Configuration validation errors.
var (
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrInvalidRadius       = errors.New("MAX_SEARCH_RADIUS_KM must be greater than zero")
	ErrInvalidCooldown     = errors.New("VOTE_COOLDOWN must not be negative")
	ErrInvalidSampleRate   = errors.New("TRACING_SAMPLE_RATE must be between 0.0 and 1.0")
	ErrInvalidRateLimit    = errors.New("VOTE_RATE_LIMIT_PER_MINUTE must be greater than zero")
	ErrInvalidCheckInterval = errors.New("DECAY_CHECK_INTERVAL must be greater than zero")
)

// Default values for non-secret configuration.
const (
	DefaultPort                   = 8080
	DefaultEnv                    = "development"
	DefaultMaxSearchRadiusKm      = 500.0
	DefaultVoteCooldown           = 7 * 24 * time.Hour
	DefaultDecayCheckInterval     = time.Hour
	DefaultDecayCycleTimeout      = 2 * time.Minute
	DefaultVoteRateLimitPerMinute = 10
	DefaultTracingExporter        = "otlp-http"
	DefaultTracingSampleRate      = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try NEARLIST_PORT first, then PORT for container platforms that
	// inject the plain name.
	port, portErr := getEnvIntOrDefaultMulti([]string{"NEARLIST_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	maxRadius, radiusErr := getEnvFloatOrDefault("MAX_SEARCH_RADIUS_KM", k.Float64("max_search_radius_km"), DefaultMaxSearchRadiusKm)
	if radiusErr != nil {
		loadErrs = append(loadErrs, radiusErr)
	}

	voteCooldown, cooldownErr := getEnvDurationOrDefault("VOTE_COOLDOWN", k.Duration("vote_cooldown"), DefaultVoteCooldown)
	if cooldownErr != nil {
		loadErrs = append(loadErrs, cooldownErr)
	}

	decayInterval, intervalErr := getEnvDurationOrDefault("DECAY_CHECK_INTERVAL", k.Duration("decay_check_interval"), DefaultDecayCheckInterval)
	if intervalErr != nil {
		loadErrs = append(loadErrs, intervalErr)
	}

	decayTimeout, timeoutErr := getEnvDurationOrDefault("DECAY_CYCLE_TIMEOUT", k.Duration("decay_cycle_timeout"), DefaultDecayCycleTimeout)
	if timeoutErr != nil {
		loadErrs = append(loadErrs, timeoutErr)
	}

	voteRateLimit, rateErr := getEnvIntOrDefault("VOTE_RATE_LIMIT_PER_MINUTE", k.Int("vote_rate_limit_per_minute"), DefaultVoteRateLimitPerMinute)
	if rateErr != nil {
		loadErrs = append(loadErrs, rateErr)
	}

	sampleRate, sampleErr := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultTracingSampleRate)
	if sampleErr != nil {
		loadErrs = append(loadErrs, sampleErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"NEARLIST_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:              getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword:          getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		MaxSearchRadiusKm:      maxRadius,
		VoteCooldown:           voteCooldown,
		DecayCheckInterval:     decayInterval,
		DecayCycleTimeout:      decayTimeout,
		VoteRateLimitPerMinute: voteRateLimit,
		CORSAllowedOrigins:     getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:         getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:        getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:           getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingSampleRate:      sampleRate,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvListOrKoanf returns a comma-separated environment list if set,
// otherwise the koanf string slice.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if raw := os.Getenv(envKey); raw != "" {
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable parsed as a
// duration if set, otherwise the koanf value, or default. Accepts Go
// duration syntax such as "30m" or "168h".
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBoolOrDefault returns the environment variable as bool if set,
// otherwise the koanf value, or default. Accepts the usual truthy and
// falsy spellings.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
		return defaultVal
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey)
	}
	return defaultVal
}

// Validate checks that all configuration values are within bounds.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.MaxSearchRadiusKm <= 0 {
		errs = append(errs, ErrInvalidRadius)
	}
	if c.VoteCooldown < 0 {
		errs = append(errs, ErrInvalidCooldown)
	}
	if c.DecayCheckInterval <= 0 {
		errs = append(errs, ErrInvalidCheckInterval)
	}
	if c.VoteRateLimitPerMinute <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                       fmt.Sprintf("%d", c.Port),
		"env":                        c.Env,
		"database_url":               maskDatabaseURL(c.DatabaseURL),
		"redis_addr":                 valueOrNotSet(c.RedisAddr),
		"redis_password":             maskSecret(c.RedisPassword),
		"max_search_radius_km":       fmt.Sprintf("%g", c.MaxSearchRadiusKm),
		"vote_cooldown":              c.VoteCooldown.String(),
		"decay_check_interval":       c.DecayCheckInterval.String(),
		"decay_cycle_timeout":        c.DecayCycleTimeout.String(),
		"vote_rate_limit_per_minute": fmt.Sprintf("%d", c.VoteRateLimitPerMinute),
		"cors_allowed_origins":       valueOrNotSet(strings.Join(c.CORSAllowedOrigins, ",")),
		"tracing_enabled":            fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":           c.TracingExporter,
		"otlp_endpoint":              valueOrNotSet(c.OTLPEndpoint),
		"tracing_sample_rate":        fmt.Sprintf("%g", c.TracingSampleRate),
	}
}

func valueOrNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
