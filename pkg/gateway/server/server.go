// Package server assembles the gateway: config, tool clients, the
// upstream dialer and the HTTP routes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/config"
	"github.com/apsara-labs/apsara-live/pkg/gateway/handlers"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/registry"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/resume"
	"github.com/apsara-labs/apsara-live/pkg/gateway/mw"
	"github.com/apsara-labs/apsara-live/pkg/gateway/tools"
	"github.com/apsara-labs/apsara-live/pkg/gateway/upstream"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	sessions *registry.Registry
	dialer   upstream.Dialer
	tools    *tools.Registry
	resume   resume.Store
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Timeout: cfg.ToolHTTPTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	dialer, err := upstream.NewGeminiDialer(ctx, cfg.GeminiAPIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("init upstream dialer: %w", err)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}

	var noteStore tools.NoteStore
	var resumeStore resume.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		noteStore = tools.NewRedisNoteStore(rdb)
		resumeStore = resume.NewRedisStore(rdb, cfg.ResumeHandleTTL)
		logger.Info("redis storage enabled", "addr", cfg.RedisAddr)
	} else {
		noteStore = tools.NewMemoryNoteStore()
		resumeStore = resume.NewMemoryStore(cfg.ResumeHandleTTL)
		logger.Info("redis not configured, using in-memory storage")
	}

	toolTable := tools.DefaultRegistry(
		tools.NewWeatherClient(cfg.OpenWeatherAPIKey, "", httpClient),
		tools.NewDirectionsClient(cfg.GoogleMapsAPIKey, "", httpClient),
		tools.NewGoogleClient("", "", httpClient),
		noteStore,
		tools.NewGenaiImageGenerator(genaiClient, ""),
	)
	logger.Info("tool table ready", "tools", toolTable.Names())

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		sessions: registry.New(),
		dialer:   dialer,
		tools:    toolTable,
		resume:   resumeStore,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Sessions: s.sessions})

	s.mux.Handle("/v1/live", handlers.LiveHandler{
		Config:   s.cfg,
		Logger:   s.logger,
		Dialer:   s.dialer,
		Tools:    s.tools,
		Resume:   s.resume,
		Sessions: s.sessions,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// ShutdownSessions asks every live pairing to close and waits for
// teardown within the context deadline. It reports whether all
// sessions finished in time.
func (s *Server) ShutdownSessions(ctx context.Context, reason string) bool {
	notified := s.sessions.ShutdownAll(reason)
	if notified > 0 {
		s.logger.Info("closing live sessions", "count", notified)
	}
	return s.sessions.Wait(ctx)
}

// SessionCount reports the active live pairings.
func (s *Server) SessionCount() int {
	return s.sessions.Count()
}
