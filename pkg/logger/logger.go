package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotating log file. An empty Path keeps output
// on stdout.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func New(lvl string, addSource bool, enviroment string) *slog.Logger {
	return NewWithWriter(os.Stdout, lvl, addSource, enviroment)
}

// NewWithFile behaves like New but writes to a lumberjack-rotated file when
// opts.Path is set. The returned closer releases the file handle.
func NewWithFile(opts FileOptions, lvl string, addSource bool, enviroment string) (*slog.Logger, io.Closer) {
	if opts.Path == "" {
		return New(lvl, addSource, enviroment), nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	return NewWithWriter(rotator, lvl, addSource, enviroment), rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func NewWithWriter(w io.Writer, lvl string, addSource bool, enviroment string) *slog.Logger {

	level := parseLevel(lvl)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}
	var handler slog.Handler

	if strings.ToLower(enviroment) == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("environment", enviroment),
	)
}

func parseLevel(level string) slog.Level {

	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
