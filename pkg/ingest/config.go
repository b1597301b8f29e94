package ingest

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Config holds collector server configuration.
type Config struct {
	Name    string
	Version string

	Address string
	Port    int

	// Rate limiting configuration
	RateLimit      rate.Limit // requests per second
	RateLimitBurst int        // burst size

	// Sample acceptance window
	MaxHistory int
	Freshness  time.Duration
	FutureSkew time.Duration

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewConfig returns a config with sensible defaults, overridable via
// environment variables.
func NewConfig() *Config {
	cfg := &Config{
		Name:            "sidra-collector",
		Version:         "undefined",
		Address:         "",
		Port:            8200,
		RateLimit:       100,
		RateLimitBurst:  200,
		MaxHistory:      DefaultMaxHistory,
		Freshness:       DefaultFreshness,
		FutureSkew:      DefaultFutureSkew,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil {
			cfg.Port = port
		}
	}

	if shutdownStr := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); shutdownStr != "" {
		var seconds int
		if _, err := fmt.Sscanf(shutdownStr, "%d", &seconds); err == nil && seconds > 0 {
			cfg.ShutdownTimeout = time.Duration(seconds) * time.Second
		}
	}

	return cfg
}
