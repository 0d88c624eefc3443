/*
Package configs is responsible for loading and parsing the application's configuration settings.

It primarily configures client parameters by reading operating system environment variables,
including the running environment, the game server URL and key, and the outbound
position update rate.
*/
package configs

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// AppConfig contains all configuration parameters required for the client to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Settings
	Environment string

	// Server Settings
	ServerURL string
	ServerKey string

	// Outbound Streaming Settings
	PositionRate  float64
	PositionBurst int

	// Local State Settings
	EmailCacheFile string
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Settings ---
	// Environment
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// --- Server Settings ---
	// ServerURL
	cfg.ServerURL = os.Getenv("SERVER_URL")
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:7350"
	}

	parsed, err := url.Parse(cfg.ServerURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid SERVER_URL environment variable: %q", cfg.ServerURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("SERVER_URL scheme must be http or https, got %q", parsed.Scheme)
	}

	// ServerKey
	serverKey := os.Getenv("SERVER_KEY")
	if cfg.Environment == "development" {
		if serverKey == "" {
			serverKey = "defaultkey"
		}
	} else {
		if serverKey == "" {
			return nil, fmt.Errorf("SERVER_KEY environment variable is required in %s environment", cfg.Environment)
		}
	}
	cfg.ServerKey = serverKey

	// --- Outbound Streaming Settings ---
	// PositionRate
	rateStr := os.Getenv("POSITION_RATE")
	if rateStr == "" {
		rateStr = "20"
	}
	positionRate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil || positionRate <= 0 {
		return nil, fmt.Errorf("invalid POSITION_RATE environment variable: %q", rateStr)
	}
	cfg.PositionRate = positionRate

	// PositionBurst
	burstStr := os.Getenv("POSITION_BURST")
	if burstStr == "" {
		burstStr = "5"
	}
	positionBurst, err := strconv.Atoi(burstStr)
	if err != nil || positionBurst < 1 {
		return nil, fmt.Errorf("invalid POSITION_BURST environment variable: %q", burstStr)
	}
	cfg.PositionBurst = positionBurst

	// --- Local State Settings ---
	cfg.EmailCacheFile = os.Getenv("EMAIL_CACHE_FILE")
	if cfg.EmailCacheFile == "" {
		cfg.EmailCacheFile = "blobparty_email.txt"
	}

	return cfg, nil
}
