package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rid", nil))

	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a generated %s header", requestIDHeader)
	}
}

func TestRequestID_IncomingHeaderPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		if v, _ := c.Get(requestIDKey); v != "client-rid-7" {
			t.Fatalf("context request id = %v", v)
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set(requestIDHeader, "client-rid-7")
	r.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "client-rid-7" {
		t.Fatalf("propagated request id = %q", got)
	}
}

func TestLogger_LevelFollowsOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(LogOptions{}))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/missing", "/broken"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 access log lines, got %d: %s", len(lines), buf.String())
	}

	wantLevels := []string{"info", "warn", "error"}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d not JSON: %v", i, err)
		}
		if entry["level"] != wantLevels[i] {
			t.Fatalf("line %d level = %v, want %s", i, entry["level"], wantLevels[i])
		}
		if entry["request_id"] == "" {
			t.Fatalf("line %d missing request_id", i)
		}
	}
}

func TestLogger_MasksConfiguredHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(LogOptions{MaskHeaders: []string{"X-API-Key"}}))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("X-API-Key", "sk-live-1234")
	r.ServeHTTP(w, req)

	out := buf.String()
	if strings.Contains(out, "secret-token") || strings.Contains(out, "sk-live-1234") {
		t.Fatalf("sensitive header values leaked into logs: %s", out)
	}
	if !strings.Contains(out, "[masked]") {
		t.Fatalf("masked marker missing: %s", out)
	}
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("500 body not JSON: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] == "" {
		t.Fatalf("500 body = %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

func TestRecovery_PanicAfterWriteOnlyAborts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/half", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/half", nil))

	// already-written body must not be replaced with the JSON envelope
	if !strings.Contains(w.Body.String(), "partial") {
		t.Fatalf("written body lost: %q", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("JSON error appended after write: %q", w.Body.String())
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("LoggerFrom must never return nil")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abcd…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 0); got != "abc" {
		t.Fatalf("max<=0 should disable truncation, got %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("short input changed: %q", got)
	}
}
