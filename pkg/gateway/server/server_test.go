package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apsara-labs/apsara-live/pkg/gateway/config"
)

func testConfig() config.Config {
	return config.Config{
		Addr:                ":8080",
		GeminiAPIKey:        "test-key",
		LiveMaxMessageBytes: 4 << 20,
		LiveWriteTimeout:    5 * time.Second,
		LiveWSPingInterval:  20 * time.Second,
		ResumeHandleTTL:     24 * time.Hour,
		ReadHeaderTimeout:   10 * time.Second,
		ShutdownGracePeriod: 25 * time.Second,
		ToolHTTPTimeout:     30 * time.Second,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresRoutes(t *testing.T) {
	s, err := New(context.Background(), testConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id header missing")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", rec.Code)
	}
}

func TestToolTableAlwaysHasTimeTool(t *testing.T) {
	// Minimal config: no weather/maps keys, no redis. The table still
	// carries the keyless tools.
	s, err := New(context.Background(), testConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	names := s.tools.Names()
	found := false
	for _, name := range names {
		if name == "getCurrentTime" {
			found = true
		}
		if name == "getWeather" || name == "getDirections" {
			t.Fatalf("unconfigured tool registered: %v", names)
		}
	}
	if !found {
		t.Fatalf("getCurrentTime missing: %v", names)
	}
}

func TestShutdownSessionsEmptyRegistry(t *testing.T) {
	s, err := New(context.Background(), testConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !s.ShutdownSessions(ctx, "test") {
		t.Fatalf("ShutdownSessions did not complete")
	}
	if s.SessionCount() != 0 {
		t.Fatalf("SessionCount = %d", s.SessionCount())
	}
}
