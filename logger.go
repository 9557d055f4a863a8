package modhost

import (
	"log/slog"
)

// Logger defines the interface for core logging.
// The core uses structured logging with key-value pairs so that
// host programs can plug in slog, zap, zerolog or similar libraries.
//
// All lifecycle operations (module discovery, phase transitions,
// dependency resolution, dispatch) are logged through this interface.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("message", "key1", "value1", "key2", "value2")
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for normal events like module loading and site initialization.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used for module failures that don't abort the whole site.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	// Used for detailed diagnostics such as route matching decisions.
	Debug(msg string, args ...any)
}

// SlogLogger adapts a *slog.Logger to the Logger interface.
// It is the default logger used when none is injected.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps an existing slog logger. A nil argument wraps
// slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l}
}

func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
