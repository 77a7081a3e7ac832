package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
	"github.com/apsara-labs/apsara-live/pkg/gateway/config"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/bridge"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/params"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/protocol"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/registry"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/resume"
	"github.com/apsara-labs/apsara-live/pkg/gateway/mw"
	"github.com/apsara-labs/apsara-live/pkg/gateway/tools"
	"github.com/apsara-labs/apsara-live/pkg/gateway/upstream"
)

// LiveHandler upgrades /v1/live requests and runs the session pairing
// until either side disconnects.
type LiveHandler struct {
	Config   config.Config
	Logger   *slog.Logger
	Dialer   upstream.Dialer
	Tools    *tools.Registry
	Resume   resume.Store
	Sessions *registry.Registry
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.originAllowed(r) {
		http.Error(w, "origin is not allowed", http.StatusForbidden)
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reqID, _ := mw.RequestIDFrom(r.Context())
	logger = logger.With("request_id", reqID)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxMessageBytes)
	}

	user, _ := auth.FromRequest(r)

	desc, warnings, err := params.Resolve(r.URL.String())
	if err != nil {
		h.writeWSError(conn, "invalid connection parameters")
		return
	}
	for _, warning := range warnings {
		logger.Warn("connection parameter ignored", "warning", warning)
	}

	// A stored handle lets a reconnecting user resume the previous
	// conversation. An explicit handle in the URL wins.
	resumeKey := ""
	if user.Authenticated() && user.Email != "" {
		resumeKey = user.Email
		if desc.ResumeHandle == "" && h.Resume != nil {
			handle, err := h.Resume.Load(r.Context(), resumeKey)
			switch {
			case err == nil:
				desc.ResumeHandle = handle
			case !errors.Is(err, resume.ErrNotFound):
				logger.Warn("load resume handle", "error", err)
			}
		}
	}

	logger.Info("live session starting",
		"model", desc.Model,
		"modality", desc.Modality.String(),
		"authenticated", user.Authenticated(),
		"resuming", desc.ResumeHandle != "",
	)

	unregister := func() {}
	b := bridge.New(bridge.Dependencies{
		Logger:       logger,
		Conn:         conn,
		User:         user,
		Descriptor:   desc,
		Dialer:       h.Dialer,
		Tools:        h.Tools,
		Resume:       h.Resume,
		ResumeKey:    resumeKey,
		WriteTimeout: h.Config.LiveWriteTimeout,
		OnTeardown:   func() { unregister() },
	})
	unregister = h.Sessions.Register(conn, b)

	// The bridge outlives the request context; teardown is driven by
	// the read loop below, the upstream callbacks, or server drain.
	b.Start(context.Background())

	done := make(chan struct{})
	defer close(done)
	if h.Config.LiveWSPingInterval > 0 {
		go h.pingLoop(conn, done)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Debug("client read ended", "error", err)
			}
			b.ClientGone()
			return
		}
		b.HandleClientFrame(data)
	}
}

func (h LiveHandler) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(h.Config.LiveWSPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(h.Config.LiveWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h LiveHandler) writeWSError(conn *websocket.Conn, message string) {
	if data, err := protocol.ErrorEvent(message).Encode(); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message),
		time.Now().Add(2*time.Second))
}
