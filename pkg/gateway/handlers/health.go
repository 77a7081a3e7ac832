package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/apsara-labs/apsara-live/pkg/gateway/config"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/registry"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config   config.Config
	Sessions *registry.Registry
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK           bool     `json:"ok"`
		LiveSessions int      `json:"live_sessions"`
		RedisEnabled bool     `json:"redis_enabled"`
		Issues       []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "gemini api key is not configured")
	}
	if h.Config.LiveMaxMessageBytes <= 0 {
		issues = append(issues, "live max message bytes must be > 0")
	}
	if h.Config.LiveWriteTimeout <= 0 || h.Config.LiveWSPingInterval <= 0 {
		issues = append(issues, "live websocket timeouts must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ShutdownGracePeriod <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:           ok,
		LiveSessions: h.Sessions.Count(),
		RedisEnabled: h.Config.RedisAddr != "",
		Issues:       issues,
	})
}
