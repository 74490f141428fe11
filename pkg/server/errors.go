// Package server carries the error taxonomy shared by the serve command
// and the server runtime: coded errors, exit codes, and CLI hints.
package server

import (
	"errors"
	"fmt"
)

const (
	errorCodeInvalidPort        = "SERVER_INVALID_PORT"
	errorCodeInvalidConcurrency = "SERVER_INVALID_CONCURRENCY"
	errorCodeConfigUnavailable  = "SERVER_CONFIG_UNAVAILABLE"
	errorCodeInvalidConfig      = "SERVER_INVALID_CONFIG"
	errorCodeStoreInitFailed    = "SERVER_STORE_INIT_FAILED"
	errorCodeStoreLocked        = "SERVER_STORE_LOCKED"
	errorCodeAppInitFailed      = "SERVER_INIT_FAILED"
	errorCodeRuntimeFailed      = "SERVER_RUNTIME_FAILED"
)

var (
	// ErrInvalidPort indicates an invalid port flag value.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidConcurrency indicates an invalid worker concurrency value.
	ErrInvalidConcurrency = errors.New("invalid worker concurrency")
	// ErrConfigUnavailable indicates the CLI context lacked a config manager.
	ErrConfigUnavailable = errors.New("config manager unavailable")
	// ErrStoreLocked indicates another process owns the job store.
	ErrStoreLocked = errors.New("job store locked")
)

type errorCoder interface {
	error
	Code() string
}

type withCodeError struct {
	error
	code string
}

func (e *withCodeError) Code() string {
	return e.code
}

func (e *withCodeError) Unwrap() error {
	return e.error
}

// WithErrorCode annotates err with a server error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &withCodeError{error: err, code: code}
}

// NewInvalidPortError formats an invalid port error with context.
func NewInvalidPortError(port int) error {
	return WithErrorCode(fmt.Errorf("%w: invalid port %d: must be between 1 and 65535", ErrInvalidPort, port), errorCodeInvalidPort)
}

// NewInvalidConcurrencyError formats an invalid concurrency error.
func NewInvalidConcurrencyError(concurrency int) error {
	return WithErrorCode(fmt.Errorf("%w: invalid concurrency %d: must be at least 1", ErrInvalidConcurrency, concurrency), errorCodeInvalidConcurrency)
}

// NewStoreLockedError reports a job store owned by another process.
func NewStoreLockedError(path string) error {
	return WithErrorCode(fmt.Errorf("%w: %s is in use by another rowforge process", ErrStoreLocked, path), errorCodeStoreLocked)
}

// WrapInvalidConfig annotates configuration validation errors.
func WrapInvalidConfig(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(fmt.Errorf("invalid server configuration: %w", err), errorCodeInvalidConfig)
}

// WrapStoreInit annotates job store initialization failures.
func WrapStoreInit(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeStoreInitFailed)
}

// WrapAppInit annotates server app creation failures.
func WrapAppInit(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeAppInitFailed)
}

// WrapRuntime annotates server runtime failures.
func WrapRuntime(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeRuntimeFailed)
}

// ErrorCode resolves a server error to its error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded errorCoder
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrInvalidPort):
		return errorCodeInvalidPort
	case errors.Is(err, ErrInvalidConcurrency):
		return errorCodeInvalidConcurrency
	case errors.Is(err, ErrStoreLocked):
		return errorCodeStoreLocked
	case errors.Is(err, ErrConfigUnavailable):
		return errorCodeConfigUnavailable
	default:
		return errorCodeRuntimeFailed
	}
}

// ExitCode maps server errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, ErrInvalidPort),
		errors.Is(err, ErrInvalidConcurrency):
		return 2
	case errors.Is(err, ErrConfigUnavailable):
		return 1
	case ErrorCode(err) == errorCodeStoreInitFailed,
		ErrorCode(err) == errorCodeStoreLocked,
		ErrorCode(err) == errorCodeAppInitFailed:
		return 7
	default:
		return 1
	}
}

// Suggestions provides CLI hints for server errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch ErrorCode(err) {
	case errorCodeInvalidPort:
		return []string{
			"Use a port between 1 and 65535",
			"Example:                 rowforge serve --port 8470",
		}
	case errorCodeInvalidConcurrency:
		return []string{
			"Set worker concurrency to at least 1",
			"Example:                 rowforge serve --engine.concurrency 3",
		}
	case errorCodeConfigUnavailable:
		return []string{
			"Run via the rowforge CLI so configuration initializes",
			"Avoid calling serve from custom scripts without init",
		}
	case errorCodeInvalidConfig:
		return []string{
			"Check configuration values in the config file",
			"Retry with --debug for detailed validation errors",
		}
	case errorCodeStoreInitFailed:
		return []string{
			"Verify the data directory exists and is writable",
			"Override the store path:   rowforge serve --store.path <dir>",
		}
	case errorCodeStoreLocked:
		return []string{
			"Stop the other rowforge process using the same data directory",
			"Or point this instance elsewhere: rowforge serve --store.path <dir>",
		}
	case errorCodeAppInitFailed:
		return []string{
			"Retry with verbose logging: rowforge serve --debug",
			"Review configuration for invalid values",
		}
	case errorCodeRuntimeFailed:
		return []string{
			"Check server logs for runtime errors",
			"Ensure no other process is using the selected port",
		}
	default:
		return nil
	}
}
