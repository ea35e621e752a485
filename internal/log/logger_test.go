package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentWorker, Writer: &buf})
	l.Info("hello", FieldTable, "Expenses")
	l.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, `"component":"worker"`) || !strings.Contains(out, `"table":"Expenses"`) {
		t.Fatalf("unexpected output %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatal("debug records must be filtered at info level")
	}
	if l.Component() != ComponentWorker {
		t.Fatalf("Component() = %q", l.Component())
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}

	var buf bytes.Buffer
	l := New(Config{Writer: &buf})
	ctx := WithContext(context.Background(), l)
	LogError(ctx, "failed", errors.New("boom"), ComponentStorage, OpAppend, NewFields().WithTable("T"))
	out := buf.String()
	for _, want := range []string{"failed", "error=boom", "operation=append", "table=T"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf})
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).Component() != ComponentHTTP {
			t.Error("request logger should be scoped to http")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestLevelForStatus(t *testing.T) {
	if LevelForStatus(200) != slog.LevelInfo || LevelForStatus(404) != slog.LevelWarn || LevelForStatus(503) != slog.LevelError {
		t.Fatal("unexpected level mapping")
	}
}
