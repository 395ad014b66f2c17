package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewJSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentBilling, Output: &buf})

	logger.WithFields(NewFields().WithBill("b1", "c1", 1200)).Info("Materialized credit card bill")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != ComponentBilling {
		t.Errorf("component = %v, want %v", entry[FieldComponent], ComponentBilling)
	}
	if entry[FieldBillID] != "b1" || entry[FieldAmountCents] != float64(1200) {
		t.Errorf("bill fields missing: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %q", buf.String())
	}
	logger.Failure(context.Background(), "boom", errors.New("x"), OpPay, ErrorTypeDatabase)
	if !bytes.Contains(buf.Bytes(), []byte("error_type=database_error")) {
		t.Fatalf("failure line = %q", buf.String())
	}
}

func TestWithCallerSkipsEmpty(t *testing.T) {
	f := NewFields().WithCaller("u1", "")
	if _, ok := f[FieldHouseholdID]; ok {
		t.Error("empty household should not be recorded")
	}
	if f[FieldUserID] != "u1" {
		t.Errorf("user_id = %v", f[FieldUserID])
	}
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf})

	var seen *Logger
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})
	h := Middleware(logger)(
		RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
			AccessLog(func(*http.Request) string { return "10.0.0.1" })(final)))

	req := httptest.NewRequest(http.MethodGet, "/bills", nil)
	req.Header.Set("X-User-ID", "u1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen == nil || seen.Component() != ComponentApp {
		t.Fatalf("handler did not receive the request logger")
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "request_id=req-1", "user_id=u1", "status_code=404", "client_ip=10.0.0.1"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("access log %q missing %q", out, want)
		}
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("fallback component = %q", l.Component())
	}
}
