// Package logger provides a convenience function to constructing a logger
// for use. This is required not just for applications but for testing.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/rschio/ledger/internal/web"
)

// New constructs a slog Logger that writes JSON records to w, tagging each
// record with the service name and the trace id of the request.
func New(w io.Writer, minLevel slog.Level, service string) *slog.Logger {
	opts := slog.HandlerOptions{
		AddSource: true,
		Level:     minLevel,
	}
	jh := slog.NewJSONHandler(w, &opts)
	return slog.New(withTraceID{Handler: jh}).With("service", service)
}

// ParseLevel converts a level name such as "debug" or "WARN" to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

type withTraceID struct {
	slog.Handler
}

func (h withTraceID) Handle(ctx context.Context, r slog.Record) error {
	r.Add("trace_id", web.GetTraceID(ctx))

	return h.Handler.Handle(ctx, r)
}

func (h withTraceID) WithAttrs(attrs []slog.Attr) slog.Handler {
	hwa := h.Handler.WithAttrs(attrs)
	return withTraceID{Handler: hwa}
}

func (h withTraceID) WithGroup(name string) slog.Handler {
	hwg := h.Handler.WithGroup(name)
	return withTraceID{Handler: hwg}
}

// InfocCtx logs at info level reporting the source of the caller frames above.
func InfocCtx(ctx context.Context, log *slog.Logger, caller int, msg string, args ...any) {
	logcCtx(ctx, log, slog.LevelInfo, caller+1, msg, args...)
}

// DebugcCtx logs at debug level reporting the source of the caller frames above.
func DebugcCtx(ctx context.Context, log *slog.Logger, caller int, msg string, args ...any) {
	logcCtx(ctx, log, slog.LevelDebug, caller+1, msg, args...)
}

func logcCtx(ctx context.Context, log *slog.Logger, level slog.Level, caller int, msg string, args ...any) {
	if !log.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(caller, pcs[:]) // skip [Callers, logcCtx, Xc]

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)

	log.Handler().Handle(ctx, r)
}
