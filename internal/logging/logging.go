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

	"signal-council/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "signal-council", "logs", "council.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
// Console output goes to stderr so command output on stdout stays parseable.
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

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(writer).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
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

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithAgent adds an agent name to the logger context.
func WithAgent(logger zerolog.Logger, agentName string) zerolog.Logger {
	return logger.With().Str("agent", agentName).Logger()
}

// LogVote logs a single agent's verdict.
func LogVote(logger zerolog.Logger, v models.AgentVerdict) {
	logger.Debug().
		Str("event", "vote").
		Str("agent", v.Name).
		Str("vote", string(v.Vote)).
		Float64("confidence", v.Confidence).
		Str("reason", v.Reason()).
		Msg("Agent voted")
}

// LogVerdict logs the council's aggregate decision.
func LogVerdict(logger zerolog.Logger, v *models.CouncilVerdict) {
	logger.Info().
		Str("event", "verdict").
		Str("verdict_id", v.ID).
		Str("symbol", v.Symbol).
		Str("decision", string(v.Decision)).
		Int("bullish", v.Tally.Bullish).
		Int("bearish", v.Tally.Bearish).
		Int("neutral", v.Tally.Neutral).
		Msg("Council verdict")
}

// LogTraining logs predictor evaluation metrics.
func LogTraining(logger zerolog.Logger, eval *models.Evaluation, duration time.Duration) {
	logger.Info().
		Str("event", "training").
		Int("train_size", eval.TrainSize).
		Int("test_size", eval.TestSize).
		Float64("r2", eval.R2).
		Float64("directional_accuracy", eval.DirectionalAccuracy).
		Float64("mae", eval.MAE).
		Dur("duration", duration).
		Msg("Predictor trained")
}

// LogStage logs completion of a pipeline stage.
func LogStage(logger zerolog.Logger, stage string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "stage").
		Str("stage", stage).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Stage failed")
	} else {
		event.Msg("Stage completed")
	}
}
