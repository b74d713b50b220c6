// Package api serves the Findr service layer over HTTP.
package api

import (
	"time"

	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultListen          = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second // classification may take the full 30s model bound
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "25M"

	// maxImageUpload bounds the multipart image of POST /classify.
	maxImageUpload = 20 << 20
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       string
	Version         string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
}

// ConfigFromSettings builds a Config from the webserver section.
func ConfigFromSettings(s *conf.Settings) Config {
	cfg := DefaultConfig()
	if s.WebServer.Listen != "" {
		cfg.Listen = s.WebServer.Listen
	}
	if s.WebServer.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = s.WebServer.ShutdownTimeout
	}
	return cfg
}
