// Package logging configures structured logging for the Placemark client using zerolog.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service is added to every entry as the "service" field when set.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: "placemark-client",
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	// Create logger with timestamp and service
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// ValidateLevel returns an error for level names parseLevel would silently map to info.
func ValidateLevel(level LogLevel) error {
	switch strings.ToLower(string(level)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRequestID returns a context carrying a logger tagged with requestID.
func WithRequestID(ctx context.Context, logger zerolog.Logger, requestID string) context.Context {
	return logger.With().Str("request_id", requestID).Logger().WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page loads (cursor, items appended, accumulated total)
//   - Cache operations (hit/miss, key, TTL)
//   - Conditional requests (ETags)
//   - Fetcher resets and discarded stale pages
//
// Info: Normal operation events
//   - CLI startup and collection summaries
//   - Rate limit state updates (healthy)
//
// Warn: Conditions that don't prevent operation
//   - Failed page loads (the caller may retry)
//   - Cursors that did not advance
//   - Rate limit throttling
//   - Cache errors (fallback to direct request)
//
// Error: Conditions requiring attention
//   - Requests blocked by the rate limiter
//   - Configuration errors
//
// Context Fields:
//   - collection: Collection name (places, folders, folder_places, collection_links)
//   - cursor / next_cursor: Pagination cursors
//   - endpoint: API path
//   - status: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network)
//   - request_id: X-Request-ID sent with the request
//   - etag: ETag value for conditional requests
