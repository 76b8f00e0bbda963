package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rschio/ledger/internal/web"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// middlewareWeb sets the request values, starts the request span, logs the
// outcome of the request and turns panics into internal errors.
func middlewareWeb(log *slog.Logger, tracer trace.Tracer, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "web")
		defer span.End()

		v := web.Values{
			TraceID: span.SpanContext().TraceID().String(),
			Tracer:  tracer,
			Now:     time.Now().UTC(),
		}
		ctx = web.SetValues(ctx, &v)
		r = r.WithContext(ctx)

		log.DebugContext(ctx, "request started", "method", r.Method, "path", r.URL.Path, "remoteaddr", r.RemoteAddr)

		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("PANIC [%v] TRACE[%s]", rec, string(debug.Stack()))
				span.RecordError(err)
				span.SetStatus(codes.Error, "panic")
				log.ErrorContext(ctx, "panic", "ERROR", err)

				v.StatusCode = http.StatusInternalServerError
				http.Error(w, "internal error", http.StatusInternalServerError)
			}

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.Int("http.status_code", v.StatusCode),
			)

			log.InfoContext(ctx, "request completed", "method", r.Method, "path", r.URL.Path,
				"statuscode", v.StatusCode, "since", time.Since(v.Now).String())
		}()

		h(w, r)
	})
}
