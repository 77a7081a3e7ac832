package mw

import (
	"net/http"
	"strings"

	"github.com/apsara-labs/apsara-live/pkg/gateway/config"
)

// The gateway serves browsers on GET only: health probes and the websocket
// upgrade. Credentials are allowed because the auth cookie rides along.
const (
	corsMethods = "GET, OPTIONS"
	corsHeaders = "Content-Type, X-Request-ID"
)

// CORS applies the configured origin allowlist. Preflights from unlisted
// origins are rejected outright; plain requests from unlisted origins pass
// through without CORS headers and let the browser enforce the block.
func CORS(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		listed := originListed(cfg, origin)

		if isPreflight(r) {
			if !listed {
				http.Error(w, "cors preflight not allowed", http.StatusForbidden)
				return
			}
			allowOrigin(w, origin)
			w.Header().Set("Access-Control-Allow-Methods", corsMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if listed {
			allowOrigin(w, origin)
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		}
		next.ServeHTTP(w, r)
	})
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")) != ""
}

func originListed(cfg config.Config, origin string) bool {
	if origin == "" || len(cfg.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := cfg.CORSAllowedOrigins[origin]
	return ok
}

func allowOrigin(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Vary", "Origin")
}
