package observability

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerRoundTrip(t *testing.T) {
	lg := slog.Default().With(slog.String("component", "test"))

	ctx := ContextWithLogger(context.Background(), lg)
	if got := LoggerFromContext(ctx); got != lg {
		t.Fatalf("LoggerFromContext returned %p, want the attached logger %p", got, lg)
	}
}

func TestContextWithLogger_NilLoggerKeepsContext(t *testing.T) {
	base := context.Background()
	if got := ContextWithLogger(base, nil); got != base {
		t.Fatal("attaching a nil logger should return the context unchanged")
	}
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != slog.Default() {
		t.Fatalf("bare context should fall back to slog.Default, got %p", got)
	}
	var nilCtx context.Context
	if got := LoggerFromContext(nilCtx); got != slog.Default() {
		t.Fatal("nil context should fall back to slog.Default")
	}
}

func TestWithAttrs_ScopesDownstreamLogging(t *testing.T) {
	base := ContextWithLogger(context.Background(), slog.Default())

	ctx, lg := WithAttrs(base, slog.String("job_id", "j-1"))
	if lg == slog.Default() {
		t.Fatal("WithAttrs should derive a new logger, not hand back the default")
	}
	if got := LoggerFromContext(ctx); got != lg {
		t.Fatal("the derived logger should be carried by the returned context")
	}

	// A second derivation sees the first one's attributes via the context.
	ctx2, lg2 := WithAttrs(ctx, slog.String("bucket", "b"))
	if lg2 == lg {
		t.Fatal("chained WithAttrs should derive again")
	}
	if got := LoggerFromContext(ctx2); got != lg2 {
		t.Fatal("chained derivation should replace the carried logger")
	}
}
