package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentLedger, Handler: slog.NewTextHandler(&buf, nil)})
	l.Info("saved", FieldMonth, "2024-03")
	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "month=2024-03") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentHTTP, Handler: slog.NewTextHandler(&buf, nil)})

	ctx := WithLogger(context.Background(), l.With(FieldRequestID, "req_1"))
	FromContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id missing: %s", buf.String())
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("fallback logger should be unknown")
	}
}

func TestLogLedgerWrite(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))

	sl.LogLedgerWrite(context.Background(), "add_donation", "2024-03", "abc", 150050)
	out := buf.String()
	for _, want := range []string{"component=ledger", "month=2024-03", "entry_id=abc", "amount_cents=150050", "operation=add_donation"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}

	buf.Reset()
	sl.LogLedgerWrite(context.Background(), "set_old_balance", "2024-03", "", -100)
	if strings.Contains(buf.String(), "entry_id") {
		t.Fatalf("empty id should be omitted: %s", buf.String())
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{503, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))
		sl.LogHTTPEnd(context.Background(), httptest.NewRequest(http.MethodGet, "/api/months", nil), tt.status, 3, "10.0.0.1")
		if !strings.Contains(buf.String(), tt.level) {
			t.Fatalf("status %d: want %s in %s", tt.status, tt.level, buf.String())
		}
	}
}
