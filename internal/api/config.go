// Package api provides the HTTP server infrastructure for FallWatch.
// This package contains the server itself while the JSON API endpoints are
// organized in the v1 subpackage.
package api

import (
	"fmt"
	"time"

	"github.com/tphakala/fallwatch/internal/conf"
	"github.com/tphakala/fallwatch/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 5 * time.Minute // uploads can be large
	DefaultWriteTimeout    = 10 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen         string   // address to listen on, e.g. ":8000"
	AllowedOrigins []string // CORS allowed origins

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	FrameTimeout    time.Duration // deadline for one live frame poll

	BodyLimit   string // maximum request body size, e.g. "512M"
	RequireAuth bool   // require admin basic credentials on mutating endpoints
	Metrics     bool   // serve /metrics
	Debug       bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          ":8000",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		FrameTimeout:    10 * time.Second,
		BodyLimit:       "512M",
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()

	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	if len(settings.WebServer.CORSOrigins) > 0 {
		cfg.AllowedOrigins = settings.WebServer.CORSOrigins
	}
	if settings.WebServer.BodyLimit != "" {
		cfg.BodyLimit = settings.WebServer.BodyLimit
	}
	if settings.WebServer.FrameTimeout > 0 {
		cfg.FrameTimeout = settings.WebServer.FrameTimeout
	}
	cfg.Metrics = settings.WebServer.Metrics
	cfg.RequireAuth = settings.Security.RequireAuth
	cfg.Debug = settings.Debug

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.FrameTimeout <= 0 {
		return fmt.Errorf("frame timeout must be positive")
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, auth=%v, metrics=%v, debug=%v",
		c.Listen, c.RequireAuth, c.Metrics, c.Debug)
}
