// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Custom rule policies for schema files.
const (
	CustomRulesSkip        = "skip"
	CustomRulesFail        = "fail"
	CustomRulesPlaceholder = "placeholder"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Schemas    SchemasConfig    `yaml:"schemas"`
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SchemasConfig configures where schema files are loaded from.
type SchemasConfig struct {
	Dir         string `yaml:"dir"`
	Watch       bool   `yaml:"watch"`        // Reload when files in Dir change
	CustomRules string `yaml:"custom_rules"` // "skip", "fail" or "placeholder"
}

// ValidationConfig configures the validator.
type ValidationConfig struct {
	Concurrency int           `yaml:"concurrency"`  // Fields validated at once; 0 means GOMAXPROCS
	RuleTimeout time.Duration `yaml:"rule_timeout"` // Deadline per custom rule; 0 means none
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	PARAMKIT_SCHEMAS_DIR            - Schema directory (required)
//	PARAMKIT_SCHEMAS_WATCH          - Reload schemas on change (default: false)
//	PARAMKIT_SCHEMAS_CUSTOM_RULES   - skip, fail or placeholder (default: placeholder)
//	PARAMKIT_SERVER_HOST            - Server host (default: 0.0.0.0)
//	PARAMKIT_SERVER_PORT            - Server port (default: 8080)
//	PARAMKIT_VALIDATION_CONCURRENCY - Fields validated at once (default: GOMAXPROCS)
//	PARAMKIT_VALIDATION_RULE_TIMEOUT - Custom rule deadline (default: none)
//	PARAMKIT_LOG_LEVEL              - Log level: debug, info, warn, error (default: info)
//	PARAMKIT_LOG_FORMAT             - Log format: json or console (default: json)
//	PARAMKIT_METRICS_ENABLED        - Enable /metrics endpoint (default: false)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set PARAMKIT_SCHEMAS_DIR")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("PARAMKIT_SCHEMAS_DIR") != ""
}

// applyEnvOverrides applies PARAMKIT_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("PARAMKIT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PARAMKIT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PARAMKIT_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("PARAMKIT_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Schema configuration
	if v := os.Getenv("PARAMKIT_SCHEMAS_DIR"); v != "" {
		cfg.Schemas.Dir = v
	}
	if v := os.Getenv("PARAMKIT_SCHEMAS_WATCH"); v != "" {
		cfg.Schemas.Watch = parseBool(v)
	}
	if v := os.Getenv("PARAMKIT_SCHEMAS_CUSTOM_RULES"); v != "" {
		cfg.Schemas.CustomRules = v
	}

	// Validation configuration
	if v := os.Getenv("PARAMKIT_VALIDATION_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Validation.Concurrency = n
		}
	}
	if v := os.Getenv("PARAMKIT_VALIDATION_RULE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Validation.RuleTimeout = d
		}
	}

	// Logging configuration
	if v := os.Getenv("PARAMKIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PARAMKIT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("PARAMKIT_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("PARAMKIT_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}

	if cfg.Schemas.CustomRules == "" {
		cfg.Schemas.CustomRules = CustomRulesPlaceholder
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Schemas.Dir == "" {
		return fmt.Errorf("schemas.dir is required")
	}

	validPolicies := map[string]bool{
		CustomRulesSkip: true, CustomRulesFail: true, CustomRulesPlaceholder: true,
	}
	if !validPolicies[cfg.Schemas.CustomRules] {
		return fmt.Errorf("schemas.custom_rules must be one of: skip, fail, placeholder, got %q", cfg.Schemas.CustomRules)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Validation.Concurrency < 0 {
		return fmt.Errorf("validation.concurrency must not be negative, got %d", cfg.Validation.Concurrency)
	}
	if cfg.Validation.RuleTimeout < 0 {
		return fmt.Errorf("validation.rule_timeout must not be negative, got %s", cfg.Validation.RuleTimeout)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
