package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// GeminiAPIKey authenticates every upstream live session and the
	// image-generation tool.
	GeminiAPIKey string

	// Optional tool backends. A tool whose key is missing is left out of
	// the dispatch table so the model never sees it.
	OpenWeatherAPIKey string
	GoogleMapsAPIKey  string

	// Redis backs the resumption-handle store and the notes tool. Empty
	// means in-memory fallback.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Origin gate for the websocket upgrade. Empty => requests carrying an
	// Origin header are rejected; non-browser clients are always allowed.
	CORSAllowedOrigins map[string]struct{}

	// Live WebSocket limits.
	LiveMaxMessageBytes int64
	LiveWriteTimeout    time.Duration
	LiveWSPingInterval  time.Duration

	ResumeHandleTTL time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	// Tool backends share one HTTP client with this timeout.
	ToolHTTPTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("APSARA_ADDR", ":9000"),
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("APSARA_GEMINI_API_KEY")),
		OpenWeatherAPIKey:   strings.TrimSpace(os.Getenv("APSARA_OPENWEATHERMAP_API_KEY")),
		GoogleMapsAPIKey:    strings.TrimSpace(os.Getenv("APSARA_GOOGLE_MAPS_API_KEY")),
		RedisAddr:           strings.TrimSpace(os.Getenv("APSARA_REDIS_ADDR")),
		RedisPassword:       os.Getenv("APSARA_REDIS_PASSWORD"),
		RedisDB:             envIntOr("APSARA_REDIS_DB", 0),
		CORSAllowedOrigins:  make(map[string]struct{}),
		LiveMaxMessageBytes: envInt64Or("APSARA_LIVE_MAX_MESSAGE_BYTES", 4<<20), // video frames are large
		LiveWriteTimeout:    envDurationOr("APSARA_LIVE_WRITE_TIMEOUT", 5*time.Second),
		LiveWSPingInterval:  envDurationOr("APSARA_LIVE_WS_PING_INTERVAL", 20*time.Second),
		ResumeHandleTTL:     envDurationOr("APSARA_RESUME_HANDLE_TTL", 24*time.Hour),
		ReadHeaderTimeout:   envDurationOr("APSARA_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("APSARA_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		ToolHTTPTimeout:     envDurationOr("APSARA_TOOL_HTTP_TIMEOUT", 15*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("APSARA_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("APSARA_GEMINI_API_KEY must be set")
	}
	if cfg.LiveMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("APSARA_LIVE_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("APSARA_LIVE_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("APSARA_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.ResumeHandleTTL <= 0 {
		return Config{}, fmt.Errorf("APSARA_RESUME_HANDLE_TTL must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("APSARA_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("APSARA_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.ToolHTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("APSARA_TOOL_HTTP_TIMEOUT must be > 0")
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("APSARA_REDIS_DB must be >= 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
