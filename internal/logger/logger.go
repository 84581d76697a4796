// Package logger builds the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is text (colored console output) or json.
	Format string
	// File, when set, receives the log instead of stderr. Parent
	// directories are created as needed and the file is opened in append
	// mode.
	File string
}

// New returns a logger for cfg and a function releasing its output.
// Logs never go to stdout, which the MCP transport owns.
func New(cfg Config) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w       io.Writer = os.Stderr
		release           = func() error { return nil }
		isFile  bool
	)
	if cfg.File != "" {
		f, err := openFile(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		w, release, isFile = f, f.Close, true
	}

	var h slog.Handler
	switch cfg.Format {
	case FormatText, "":
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    isFile,
		})
	case FormatJSON:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		_ = release()
		return nil, nil, fmt.Errorf("unrecognised logging format: %s", cfg.Format)
	}
	return slog.New(h), release, nil
}

// ParseLevel converts a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unrecognised logging level: %s", s)
}

func openFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
