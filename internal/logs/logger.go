package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

type Options struct {
	Level string
	// File, when set, receives JSON records in addition to the console.
	File string
	// Console is the terminal writer; nil disables console output.
	Console io.Writer
	// JSON switches the console handler from text to JSON.
	JSON bool
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New builds a logger that fans out to the console and an optional file.
// The returned close function releases the file.
func New(opts Options) (*slog.Logger, func() error, error) {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handlers []slog.Handler
	closeFn := func() error { return nil }

	if opts.Console != nil {
		if opts.JSON {
			handlers = append(handlers, slog.NewJSONHandler(opts.Console, handlerOpts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(opts.Console, handlerOpts))
		}
	}

	if path := strings.TrimSpace(opts.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, handlerOpts))
		closeFn = f.Close
	}

	if len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(io.Discard, handlerOpts))
	}
	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}
