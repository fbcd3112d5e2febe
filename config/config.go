package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServiceName  string
	OTELEndpoint string
	Port         string
	LogLevel     string

	SubmitDelay   time.Duration
	DismissDelay  time.Duration
	SessionTTL    time.Duration
	EvictInterval time.Duration

	// ExpiryTimezone is the IANA zone used to decide whether a card expired.
	ExpiryTimezone string

	// Messages overrides user-facing strings, keyed like the presentation catalog.
	Messages map[string]string
}

// fileConfig mirrors the optional YAML overlay; absent keys keep defaults.
type fileConfig struct {
	Port           *string           `yaml:"port"`
	LogLevel       *string           `yaml:"log_level"`
	SubmitDelay    *time.Duration    `yaml:"submit_delay"`
	DismissDelay   *time.Duration    `yaml:"success_dismiss_delay"`
	SessionTTL     *time.Duration    `yaml:"session_ttl"`
	EvictInterval  *time.Duration    `yaml:"evict_interval"`
	ExpiryTimezone *string           `yaml:"expiry_timezone"`
	Messages       map[string]string `yaml:"messages"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServiceName:    "cardform-service",
		OTELEndpoint:   "localhost:4317",
		Port:           "8081",
		LogLevel:       "info",
		SubmitDelay:    2 * time.Second,
		DismissDelay:   3 * time.Second,
		SessionTTL:     30 * time.Minute,
		EvictInterval:  time.Minute,
		ExpiryTimezone: "UTC",
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CARDFORM_CONFIG (if any) and finally environment variables
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CARDFORM_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.ExpiryTimezone = getEnv("EXPIRY_TZ", cfg.ExpiryTimezone)

	var err error
	if cfg.SubmitDelay, err = getDurationEnv("SUBMIT_DELAY", cfg.SubmitDelay); err != nil {
		return nil, err
	}
	if cfg.DismissDelay, err = getDurationEnv("SUCCESS_DISMISS_DELAY", cfg.DismissDelay); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDurationEnv("SESSION_TTL", cfg.SessionTTL); err != nil {
		return nil, err
	}
	if cfg.EvictInterval, err = getDurationEnv("EVICT_INTERVAL", cfg.EvictInterval); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for _, d := range []struct {
		name     string
		value    time.Duration
		positive bool
	}{
		{"SUBMIT_DELAY", c.SubmitDelay, false},
		{"SUCCESS_DISMISS_DELAY", c.DismissDelay, false},
		{"SESSION_TTL", c.SessionTTL, true},
		{"EVICT_INTERVAL", c.EvictInterval, true},
	} {
		if d.positive && d.value <= 0 {
			return fmt.Errorf("invalid %s: must be positive, got %s", d.name, d.value)
		}
		if d.value < 0 {
			return fmt.Errorf("invalid %s: must not be negative, got %s", d.name, d.value)
		}
	}
	return nil
}

// Location resolves ExpiryTimezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ExpiryTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry timezone %q: %w", c.ExpiryTimezone, err)
	}
	return loc, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Port != nil {
		c.Port = *fc.Port
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.SubmitDelay != nil {
		c.SubmitDelay = *fc.SubmitDelay
	}
	if fc.DismissDelay != nil {
		c.DismissDelay = *fc.DismissDelay
	}
	if fc.SessionTTL != nil {
		c.SessionTTL = *fc.SessionTTL
	}
	if fc.EvictInterval != nil {
		c.EvictInterval = *fc.EvictInterval
	}
	if fc.ExpiryTimezone != nil {
		c.ExpiryTimezone = *fc.ExpiryTimezone
	}
	if len(fc.Messages) > 0 {
		c.Messages = fc.Messages
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
