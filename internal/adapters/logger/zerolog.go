package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	// FilePath enables rotating file output when non-empty.
	FilePath      string
	RotationSize  int // MB, defaults to 50
	RetentionDays int // days, defaults to 30
}

// ZeroLogger implements the ports.Logger interface using zerolog.
type ZeroLogger struct {
	logger zerolog.Logger
}

// New creates a logger from the configuration. An unknown level falls back
// to info instead of failing startup.
func New(cfg Config) (*ZeroLogger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if strings.EqualFold(cfg.Format, "console") {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	} else {
		writers = append(writers, os.Stderr)
	}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotationSize := cfg.RotationSize
		if rotationSize <= 0 {
			rotationSize = 50
		}
		retentionDays := cfg.RetentionDays
		if retentionDays <= 0 {
			retentionDays = 30
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    rotationSize,
			MaxAge:     retentionDays,
			MaxBackups: 10,
			Compress:   true,
		})
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &ZeroLogger{logger: l}, nil
}

func withFields(ev *zerolog.Event, fields []map[string]interface{}) *zerolog.Event {
	for _, m := range fields {
		for k, v := range m {
			ev = ev.Interface(k, v)
		}
	}
	return ev
}

// Debug logs a message at Debug level.
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	withFields(l.logger.Debug(), fields).Msg(msg)
}

// Info logs a message at Info level.
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	withFields(l.logger.Info(), fields).Msg(msg)
}

// Warn logs a message at Warning level.
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	withFields(l.logger.Warn(), fields).Msg(msg)
}

// Error logs an error message at Error level.
func (l *ZeroLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	withFields(l.logger.Error().Err(err), fields).Msg(msg)
}
