// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// levelRouter is a slog.Handler that routes records below ERROR to one
// handler and ERROR+ to another.
type levelRouter struct {
	level  slog.Leveler
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.level.Level()
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// Options selects the logger's output.
type Options struct {
	Level  slog.Level
	Format string // json, text or colored
	File   string // optional; receives every record in addition to the console
}

// New builds a logger writing INFO/WARN to stdout and ERROR to stderr. The
// returned cleanup closes the log file, if one was opened.
func New(opts Options, stdout, stderr io.Writer) (*slog.Logger, func(), error) {
	cleanup := func() {}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdout = io.MultiWriter(stdout, f)
		stderr = io.MultiWriter(stderr, f)
	}

	handler := &levelRouter{
		level:  opts.Level,
		stdout: newHandler(opts, stdout),
		stderr: newHandler(opts, stderr),
	}
	return slog.New(handler), cleanup, nil
}

// Setup installs a logger built by New on os.Stdout/os.Stderr as the slog
// default.
func Setup(opts Options) (func(), error) {
	logger, cleanup, err := New(opts, os.Stdout, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

func newHandler(opts Options, w io.Writer) slog.Handler {
	switch opts.Format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	case "colored":
		return tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: time.Kitchen,
			AddSource:  opts.Level <= slog.LevelDebug,
		})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level})
	}
}
