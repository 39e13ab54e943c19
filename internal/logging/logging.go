package logging

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
)

// Flags holds the options that affect logging behavior.
type Flags struct {
	Verbose bool
	Quiet   bool
	JSON    bool
}

// NewLogger creates a new logger writing to the given writer.
// The default level is InfoLevel.
func NewLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: true,
	})
}

// Configure adjusts the logger based on flags.
// Quiet takes precedence over verbose when both are set.
func Configure(l *log.Logger, f Flags) {
	switch {
	case f.Quiet:
		l.SetLevel(log.WarnLevel)
	case f.Verbose:
		l.SetLevel(log.DebugLevel)
	default:
		l.SetLevel(log.InfoLevel)
	}

	if f.JSON {
		l.SetFormatter(log.JSONFormatter)
	}
}

type contextKey struct{}

// WithLogger returns a new context with the given logger attached.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the logger from the context.
// If no logger is stored, it returns a logger that discards output.
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(contextKey{}).(*log.Logger); ok {
		return l
	}
	return NewLogger(io.Discard)
}
