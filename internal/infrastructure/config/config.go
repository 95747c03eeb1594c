// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	tolerance := cfg.Matching.FuzzyMatchTolerance
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
)

// Config represents the entire application configuration
type Config struct {
	Matching      MatchingConfig      `yaml:"matching"`
	Feeds         FeedsConfig         `yaml:"feeds"`
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// MatchingConfig holds the engine knobs. Zero values fall back to the
// engine defaults so a partial config file stays usable.
type MatchingConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	FuzzyMatchTolerance float64 `yaml:"fuzzy_match_tolerance"`
	MaxDateVarianceDays int     `yaml:"max_date_variance_days"`
	MaxBundleCandidates int     `yaml:"max_bundle_candidates"`
}

// FeedsConfig holds default feed file locations for the CLI.
type FeedsConfig struct {
	PaymentsPath string `yaml:"payments_path"`
	InvoicesPath string `yaml:"invoices_path"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EngineConfig converts the matching section into an engine Config,
// filling every unset knob from the engine defaults.
func (c *Config) EngineConfig() reconcile.Config {
	engine := reconcile.DefaultConfig()
	if c.Matching.ConfidenceThreshold > 0 {
		engine.ConfidenceThreshold = c.Matching.ConfidenceThreshold
	}
	if c.Matching.FuzzyMatchTolerance > 0 {
		engine.FuzzyMatchTolerance = c.Matching.FuzzyMatchTolerance
	}
	if c.Matching.MaxDateVarianceDays > 0 {
		engine.MaxDateVarianceDays = c.Matching.MaxDateVarianceDays
	}
	if c.Matching.MaxBundleCandidates > 0 {
		engine.MaxBundleCandidates = c.Matching.MaxBundleCandidates
	}
	return engine
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${CASHRECON_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	return &Config{
		Matching: MatchingConfig{
			ConfidenceThreshold: getEnvFloat("CASHRECON_CONFIDENCE_THRESHOLD", 0),
			FuzzyMatchTolerance: getEnvFloat("CASHRECON_FUZZY_TOLERANCE", 0),
			MaxDateVarianceDays: getEnvInt("CASHRECON_MAX_DATE_VARIANCE_DAYS", 0),
			MaxBundleCandidates: getEnvInt("CASHRECON_MAX_BUNDLE_CANDIDATES", 0),
		},
		Feeds: FeedsConfig{
			PaymentsPath: getEnv("CASHRECON_PAYMENTS_FEED", "payments.json"),
			InvoicesPath: getEnv("CASHRECON_INVOICES_FEED", "invoices.json"),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("CASHRECON_DB_PATH", "cashrecon.db"),
		},
		Server: ServerConfig{
			Port: getEnvInt("CASHRECON_PORT", 8080),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables.
// An empty path means the default config.yaml.
func LoadOrEnvWithPath(path string) *Config {
	if path == "" {
		path = "config.yaml"
	}
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var result float64
		if _, err := fmt.Sscanf(val, "%g", &result); err == nil {
			return result
		}
	}
	return fallback
}
