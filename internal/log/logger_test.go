package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentLedger, Handler: NewHandler(&buf, "json", slog.LevelInfo)})
	l.Info("created", FieldAccountID, "acc-1")

	out := buf.String()
	if !strings.Contains(out, `"component":"ledger"`) || !strings.Contains(out, `"account_id":"acc-1"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Component: ComponentHTTP, Handler: NewHandler(&buf, "text", slog.LevelInfo)})

	ctx := NewContext(context.Background(), base.With(FieldRequestID, "req_1"))
	FromContext(ctx).InfoContext(ctx, "inside")

	if !strings.Contains(buf.String(), "request_id=req_1") || !strings.Contains(buf.String(), "component=http") {
		t.Fatalf("context logger lost its fields: %s", buf.String())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger: %+v", l)
	}
}
