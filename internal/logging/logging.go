package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config controls where log output goes. The console writer is
// human-formatted; the file sink keeps JSON lines for later inspection.
type Config struct {
	Level   string
	Console bool
	Dir     string // file sink directory, empty disables the file sink
}

// Setup builds the root logger. The returned close func releases the file
// sink if one was opened and is always safe to call.
func Setup(cfg Config) (zerolog.Logger, func() error, error) {
	level := ParseLevel(cfg.Level, zerolog.InfoLevel)

	var writers []io.Writer
	closeFn := func() error { return nil }

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat})
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("create log directory: %w", err)
		}
		path := filepath.Join(cfg.Dir, time.Now().Format("2006-01-02")+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, zerolog.SyncWriter(f))
		closeFn = f.Close
	}
	if len(writers) == 0 {
		// Everything disabled still leaves errors visible on stderr.
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	return logger, closeFn, nil
}

// ParseLevel maps a config string onto a zerolog level, falling back to
// def for anything unrecognized.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
