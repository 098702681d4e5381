package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where the tool's own log goes.
// With File empty, records go to the provided terminal writer as colored text.
// With File set, records are written as JSON to a lumberjack-rotated file.
type Config struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	NoColor    bool   `mapstructure:"no_color"`
}

// New builds a slog.Logger for the config. The returned closer releases the
// log file and is a no-op for terminal output.
func New(c Config, term io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.File == "" {
		if term == nil {
			term = os.Stderr
		}
		var h slog.Handler
		if c.NoColor {
			h = slog.NewTextHandler(term, opts)
		} else {
			h = NewColorTextHandler(term, opts, true)
		}
		return slog.New(h), io.NopCloser(nil), nil
	}
	w := c.fileWriter()
	return slog.New(slog.NewJSONHandler(w, opts)), w, nil
}

func (c Config) fileWriter() *lj.Logger {
	return &lj.Logger{
		Filename:   filepath.Clean(c.File),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// ParseLevel maps debug|info|warn|error (case-insensitive, empty = info) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
