// Package logging builds the process-wide zerolog logger
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"fibermap/internal/config"
)

// New returns the root logger. When cfg.File is set, lines are written to a
// rotating file as well as stdout. The returned closer releases the file and
// is never nil.
func New(cfg config.LogConfig) (zerolog.Logger, io.Closer) {
	var sink io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if strings.TrimSpace(cfg.File) != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		sink = zerolog.MultiLevelWriter(os.Stdout, rotator)
		closer = rotator
	}

	return NewWithWriter(cfg.Level, sink), closer
}

// NewWithWriter returns a logger writing JSON lines to w
func NewWithWriter(level string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", "fibermap").
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
