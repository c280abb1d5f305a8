package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// captureLogger returns a JSON logger writing to the returned buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, buf
}

func lastLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestLoggingRecordsRequestFields(t *testing.T) {
	logger, buf := captureLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entry := lastLogEntry(t, buf)
	if entry["method"] != "POST" {
		t.Errorf("method = %v, want POST", entry["method"])
	}
	if entry["path"] != "/sessions" {
		t.Errorf("path = %v, want /sessions", entry["path"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want 201", entry["status"])
	}
	if entry["size"] != float64(len(`{"ok":true}`)) {
		t.Errorf("size = %v, want %d", entry["size"], len(`{"ok":true}`))
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
}

func TestLoggingIncludesUserAndRequestID(t *testing.T) {
	logger, buf := captureLogger()

	handler := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/rankings/me", nil)
	req = req.WithContext(SetUserID(req.Context(), "user-42"))
	req.Header.Set(RequestIDHeader, "req-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entry := lastLogEntry(t, buf)
	if entry["user_id"] != "user-42" {
		t.Errorf("user_id = %v, want user-42", entry["user_id"])
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry["request_id"])
	}
}

func TestLoggingLevelByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"success logs info", http.StatusOK, "INFO"},
		{"client error logs warn", http.StatusNotFound, "WARN"},
		{"server error logs error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := captureLogger()
			handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/characters", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			entry := lastLogEntry(t, buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
		})
	}
}

func TestLoggingErrorCode(t *testing.T) {
	logger, buf := captureLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	req := httptest.NewRequest(http.MethodPost, "/sessions/choice", nil)
	req = req.WithContext(SetErrorCode(req.Context(), "session_completed"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLogEntry(t, buf)
	if entry["error_code"] != "session_completed" {
		t.Errorf("error_code = %v, want session_completed", entry["error_code"])
	}
}

func TestResponseWriterOnlyFirstStatusCounts(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := newResponseWriter(rr)

	rw.WriteHeader(http.StatusBadRequest)
	rw.WriteHeader(http.StatusOK)

	if rw.statusCode != http.StatusBadRequest {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusBadRequest)
	}
}

func TestUserIDContextHelpers(t *testing.T) {
	ctx := context.Background()
	if got := GetUserID(ctx); got != "" {
		t.Errorf("GetUserID on empty context = %q, want empty", got)
	}
	ctx = SetUserID(ctx, "user-7")
	if got := GetUserID(ctx); got != "user-7" {
		t.Errorf("GetUserID = %q, want user-7", got)
	}
}

func TestNewLoggerHandlerByEnv(t *testing.T) {
	prod := NewLogger("production")
	dev := NewLogger("development")
	if prod == nil || dev == nil {
		t.Fatal("NewLogger returned nil")
	}
	// Production must not log debug; development must.
	if prod.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("production logger should not enable debug")
	}
	if !dev.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("development logger should enable debug")
	}
}
