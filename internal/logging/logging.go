// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"dhan-trader/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level          string
	Console        bool
	File           bool
	FilePath       string
	AlertTracePath string
	MaxSize        int // megabytes
	MaxBackups     int
	MaxAge         int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	logDir := filepath.Join(home, ".config", "dhan-trader", "logs")
	return LogConfig{
		Level:          "info",
		Console:        true,
		File:           true,
		FilePath:       filepath.Join(logDir, "trader.log"),
		AlertTracePath: filepath.Join(logDir, "alerts.log"),
		MaxSize:        100,
		MaxBackups:     7,
		MaxAge:         30,
	}
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	if cfg.File {
		if w := rotatingWriter(cfg, cfg.FilePath); w != nil {
			writers = append(writers, w)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stderr
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

// NewAlertTraceLogger returns a logger that appends one line per ingested
// alert to a rotating file, independent of the console. It returns a no-op
// logger when the path is empty or unwritable.
func NewAlertTraceLogger(cfg LogConfig) zerolog.Logger {
	if cfg.AlertTracePath == "" {
		return zerolog.Nop()
	}
	w := rotatingWriter(cfg, cfg.AlertTracePath)
	if w == nil {
		return zerolog.Nop()
	}
	return zerolog.New(w).With().Timestamp().Str("stream", "alerts").Logger()
}

func rotatingWriter(cfg LogConfig, path string) io.Writer {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, or fallback when the
// context carries none.
func FromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return fallback
	}
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return fallback
}

// WithOrderID adds an order ID to the logger context.
func WithOrderID(logger zerolog.Logger, orderID string) zerolog.Logger {
	return logger.With().Str("order_id", orderID).Logger()
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// LogOrder logs an order workflow event.
func LogOrder(logger zerolog.Logger, intentID, symbol, side, state, message string) {
	logger.Info().
		Str("event", "order").
		Str("intent_id", intentID).
		Str("symbol", symbol).
		Str("side", side).
		Str("state", state).
		Str("detail", message).
		Msg("Order update")
}

// LogAlert writes one ingested alert to the alert trace.
func LogAlert(logger zerolog.Logger, alert models.Alert) {
	logger.Info().
		Str("event", "alert").
		Str("alert_id", alert.ID).
		Str("entry_id", alert.EntryID).
		Str("index", alert.Trade.Index).
		Float64("strike", alert.Trade.Strike).
		Str("option_type", alert.Trade.OptionType).
		Str("side", alert.Trade.Side).
		Int("qty", alert.Quantity).
		Str("status", alert.Response.Status).
		Str("response", Redact(alert.Response.Message)).
		Msg("ALERT")
}

// LogAPICall logs an API call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(redactErr(err)).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
