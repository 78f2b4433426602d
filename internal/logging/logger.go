package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/config"
)

// NewLogger creates a structured zerolog.Logger with context fields from the
// config. Non-empty fields are added automatically.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(os.Stdout, cfg)
}

// NewConsoleLogger writes human-readable output to stderr, for the CLI where
// stdout carries command output.
func NewConsoleLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()

	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.ProfileName != "" {
		ctx = ctx.Str("profile", cfg.ProfileName)
	}
	if cfg.AppVersion != "" {
		ctx = ctx.Str("version", cfg.AppVersion)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
