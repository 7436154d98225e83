// Package config provides environment-based configuration for the traffic daemon.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultProbeURL is fetched through a DoH provider to check that it resolves.
const DefaultProbeURL = "https://example.com"

// Config holds all configuration for the traffic daemon.
type Config struct {
	// Database configuration. Empty DSN selects the in-memory store.
	DatabaseDSN string

	// Authentication
	JWTSecret         string
	JWTExpiry         time.Duration
	AdminPasswordHash string
	AuthDisabled      bool

	// Server configuration
	APIHost  string
	APIPort  int
	GRPCPort int

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Traffic configuration
	Traffic TrafficConfig
}

// TrafficConfig holds generator-specific configuration.
type TrafficConfig struct {
	// ProfilePath points at a JSON or YAML profile. Empty uses the embedded default.
	ProfilePath string
	// ProbeURL is fetched to verify a DoH provider before using it.
	ProbeURL string
	// ProbeTimeout bounds a single provider probe.
	ProbeTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := LoadWithDefaults()
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	return &Config{
		DatabaseDSN:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", "development-secret-key-min-32-chars"),
		JWTExpiry:         getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AuthDisabled:      getBoolEnv("AUTH_DISABLED", false),
		APIHost:           getEnv("API_HOST", "0.0.0.0"),
		APIPort:           getIntEnv("API_PORT", 8080),
		GRPCPort:          getIntEnv("GRPC_PORT", 9090),
		ShutdownTimeout:   getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		Traffic: TrafficConfig{
			ProfilePath:  getEnv("PROFILE_PATH", ""),
			ProbeURL:     getEnv("DOH_PROBE_URL", DefaultProbeURL),
			ProbeTimeout: getDurationEnv("DOH_PROBE_TIMEOUT", 10*time.Second),
		},
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if !c.AuthDisabled {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters")
		}
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535, got %d", c.APIPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("GRPC_PORT must be between 0 and 65535, got %d", c.GRPCPort)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	u, err := url.Parse(c.Traffic.ProbeURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("DOH_PROBE_URL must be an absolute https URL")
	}
	return nil
}

// APIAddr returns the listen address of the HTTP API.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
