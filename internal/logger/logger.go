// Package logger configures slog output for the CLI and the detached
// daemon.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters (lumberjack semantics).
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Options describes where and how vigil logs.
type Options struct {
	Level      string // debug|info|warn|error
	Dir        string // directory for the rotated daemon log
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupForeground routes logs to stderr with colored levels and installs
// the logger as the slog default.
func SetupForeground(opts Options) {
	h := NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	slog.SetDefault(slog.New(h))
}

// SetupDaemon routes logs to a rotated file under opts.Dir. The detached
// process has no terminal, so file output is the only visible channel.
func SetupDaemon(opts Options) (io.Closer, error) {
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, err
	}
	w := &lj.Logger{
		Filename:   filepath.Join(opts.Dir, "vigil.log"),
		MaxSize:    valOr(opts.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(opts.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(opts.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   opts.Compress,
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	slog.SetDefault(slog.New(h))
	return w, nil
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
