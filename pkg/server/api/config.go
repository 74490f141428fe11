package api

import (
	"errors"
	"time"
)

// Sentinel errors for configuration validation
var (
	// ErrInvalidTimeout is returned when a timeout value is invalid (negative).
	ErrInvalidTimeout = errors.New("invalid timeout: must be >= 0")
)

// Config holds API-level configuration.
type Config struct {
	// HandlerTimeout is the maximum duration for an API handler to complete.
	// If a handler exceeds this timeout, it returns HTTP 504 Gateway Timeout.
	//
	// The timeout is applied at the handler level ONLY if the request context
	// doesn't already have a deadline, so middleware- or client-set deadlines
	// take precedence.
	HandlerTimeout time.Duration
}

// DefaultConfig returns the default API configuration.
//
// HandlerTimeout defaults to 10s: job control endpoints are store reads
// and flag flips, never long-running row processing.
func DefaultConfig() Config {
	return Config{
		HandlerTimeout: 10 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.HandlerTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}
