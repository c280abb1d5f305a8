// Package config provides configuration loading and validation for the API
// server. It uses koanf to merge environment variables with optional file
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (rate limiting); optional, the limiter falls back to memory
	RedisURL string `koanf:"redis_url"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`

	// Character catalog
	CharactersDir      string   `koanf:"characters_dir"`
	FallbackCharacters []string `koanf:"fallback_characters"`

	// Session evaluation modes: comparison budgets per mode
	QuickComparisons   int `koanf:"quick_comparisons"`   // Default: 15
	MediumComparisons  int `koanf:"medium_comparisons"`  // Default: 30
	PreciseComparisons int `koanf:"precise_comparisons"` // Default: 50

	// Session lifecycle
	SessionTimeoutHours int `koanf:"session_timeout_hours"` // Default: 24
	GlobalTopN          int `koanf:"global_top_n"`          // Default: 5

	// Backup (S3-compatible object storage); optional as a group
	BackupBucketName      string `koanf:"backup_bucket_name"`
	BackupAccessKeyID     string `koanf:"backup_access_key_id"`
	BackupSecretAccessKey string `koanf:"backup_secret_access_key"`
	BackupEndpoint        string `koanf:"backup_endpoint"`
	MaxBackups            int    `koanf:"max_backups"` // Default: 5

	// Tracing (OpenTelemetry)
	TracingEnabled  bool   `koanf:"tracing_enabled"`
	TracingEndpoint string `koanf:"tracing_endpoint"`

	// Rate limiting
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"` // Default: 60

	// CORS and WebSocket origin allowlist; empty permits same-origin only
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL     = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret       = errors.New("JWT_SECRET is required")
	ErrMissingCharactersDir   = errors.New("CHARACTERS_DIR is required")
	ErrMissingBackupBucket    = errors.New("BACKUP_BUCKET_NAME is required")
	ErrMissingBackupAccessKey = errors.New("BACKUP_ACCESS_KEY_ID is required")
	ErrMissingBackupSecret    = errors.New("BACKUP_SECRET_ACCESS_KEY is required")
	ErrMissingBackupEndpoint  = errors.New("BACKUP_ENDPOINT is required")
	ErrInvalidPort            = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultQuickComparisons    = 15
	DefaultMediumComparisons   = 30
	DefaultPreciseComparisons  = 50
	DefaultSessionTimeoutHours = 24
	DefaultGlobalTopN          = 5
	DefaultMaxBackups          = 5
	DefaultRateLimitPerMinute  = 60
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values. Returns the
// loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"CHARRANK_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	intField := func(envKey, koanfKey string, def int) int {
		v, err := getEnvIntOrDefault(envKey, k.Int(koanfKey), def)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}

	cfg := &Config{
		Port:        port,
		Env:         getEnvOrDefaultMulti([]string{"CHARRANK_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL: getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:    getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:   getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),

		CharactersDir:      getEnvOrKoanf("CHARACTERS_DIR", k, "characters_dir"),
		FallbackCharacters: getEnvListOrKoanf("FALLBACK_CHARACTERS", k, "fallback_characters"),

		QuickComparisons:   intField("QUICK_COMPARISONS", "quick_comparisons", DefaultQuickComparisons),
		MediumComparisons:  intField("MEDIUM_COMPARISONS", "medium_comparisons", DefaultMediumComparisons),
		PreciseComparisons: intField("PRECISE_COMPARISONS", "precise_comparisons", DefaultPreciseComparisons),

		SessionTimeoutHours: intField("SESSION_TIMEOUT_HOURS", "session_timeout_hours", DefaultSessionTimeoutHours),
		GlobalTopN:          intField("GLOBAL_TOP_N", "global_top_n", DefaultGlobalTopN),

		BackupBucketName:      getEnvOrKoanf("BACKUP_BUCKET_NAME", k, "backup_bucket_name"),
		BackupAccessKeyID:     getEnvOrKoanf("BACKUP_ACCESS_KEY_ID", k, "backup_access_key_id"),
		BackupSecretAccessKey: getEnvOrKoanf("BACKUP_SECRET_ACCESS_KEY", k, "backup_secret_access_key"),
		BackupEndpoint:        getEnvOrKoanf("BACKUP_ENDPOINT", k, "backup_endpoint"),
		MaxBackups:            intField("MAX_BACKUPS", "max_backups", DefaultMaxBackups),

		TracingEnabled:  getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled"),
		TracingEndpoint: getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),

		RateLimitPerMinute: intField("RATE_LIMIT_PER_MINUTE", "rate_limit_per_minute", DefaultRateLimitPerMinute),

		AllowedOrigins: getEnvListOrKoanf("ALLOWED_ORIGINS", k, "allowed_origins"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf parses a comma-separated environment variable if set,
// otherwise returns the koanf string list.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvBoolOrKoanf parses a boolean environment variable if set, otherwise
// returns the koanf value.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return k.Bool(koanfKey)
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

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default. Returns an error if the environment
// variable is set but cannot be parsed as an integer.
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
// Returns the first valid integer value found, otherwise the koanf value, or
// default. Returns an error if a set variable cannot be parsed.
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

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.CharactersDir == "" {
		errs = append(errs, ErrMissingCharactersDir)
	}

	// Backup configuration is optional. Only validate fields if any backup
	// value is set.
	if c.BackupBucketName != "" || c.BackupAccessKeyID != "" || c.BackupSecretAccessKey != "" || c.BackupEndpoint != "" {
		if c.BackupBucketName == "" {
			errs = append(errs, ErrMissingBackupBucket)
		}
		if c.BackupAccessKeyID == "" {
			errs = append(errs, ErrMissingBackupAccessKey)
		}
		if c.BackupSecretAccessKey == "" {
			errs = append(errs, ErrMissingBackupSecret)
		}
		if c.BackupEndpoint == "" {
			errs = append(errs, ErrMissingBackupEndpoint)
		}
	}

	return errs
}

// BudgetForMode maps an evaluation mode name to its comparison budget.
// Unknown modes get the medium budget.
func (c *Config) BudgetForMode(mode string) int {
	switch strings.ToLower(mode) {
	case "quick":
		return c.QuickComparisons
	case "precise":
		return c.PreciseComparisons
	default:
		return c.MediumComparisons
	}
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_url":             maskDatabaseURL(c.RedisURL),
		"jwt_secret":            maskSecret(c.JWTSecret),
		"characters_dir":        c.CharactersDir,
		"fallback_characters":   fmt.Sprintf("%d names", len(c.FallbackCharacters)),
		"quick_comparisons":     fmt.Sprintf("%d", c.QuickComparisons),
		"medium_comparisons":    fmt.Sprintf("%d", c.MediumComparisons),
		"precise_comparisons":   fmt.Sprintf("%d", c.PreciseComparisons),
		"session_timeout_hours": fmt.Sprintf("%d", c.SessionTimeoutHours),
		"global_top_n":          fmt.Sprintf("%d", c.GlobalTopN),
		"backup_bucket_name":    c.BackupBucketName,
		"backup_access_key_id":  maskSecret(c.BackupAccessKeyID),
		"backup_secret":         maskSecret(c.BackupSecretAccessKey),
		"backup_endpoint":       c.BackupEndpoint,
		"max_backups":           fmt.Sprintf("%d", c.MaxBackups),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_endpoint":      c.TracingEndpoint,
		"rate_limit_per_minute": fmt.Sprintf("%d", c.RateLimitPerMinute),
		"allowed_origins":       fmt.Sprintf("%d origins", len(c.AllowedOrigins)),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters
// followed by ****. Secrets shorter than 8 characters are fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
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
