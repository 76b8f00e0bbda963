package web

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestValuesDefaults(t *testing.T) {
	ctx := context.Background()

	if got, want := GetTraceID(ctx), (trace.TraceID{}).String(); got != want {
		t.Fatalf("got trace id %q, want %q", got, want)
	}
	if GetTime(ctx).IsZero() {
		t.Fatalf("time should default to now")
	}

	// Without values there is nowhere to record the status.
	SetStatusCode(ctx, 200)
	if got := GetValues(ctx).StatusCode; got != 0 {
		t.Fatalf("got status %d, want 0", got)
	}
}

func TestSetValues(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	v := Values{TraceID: "abc", Now: now}
	ctx := SetValues(context.Background(), &v)

	if got := GetTraceID(ctx); got != "abc" {
		t.Fatalf("got trace id %q, want %q", got, "abc")
	}
	if got := GetTime(ctx); !got.Equal(now) {
		t.Fatalf("got time %v, want %v", got, now)
	}

	SetStatusCode(ctx, 422)
	if v.StatusCode != 422 {
		t.Fatalf("got status %d, want %d", v.StatusCode, 422)
	}

	// No tracer: the span from the context is returned.
	ctx2, span := AddSpan(ctx, "noop")
	defer span.End()
	if ctx2 != ctx {
		t.Fatalf("context should be unchanged without a tracer")
	}
}
