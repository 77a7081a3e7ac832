package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// CookieName is the session cookie set by the OAuth login flow. Its value is
// a percent-encoded JSON token bundle.
const CookieName = "apsara_auth"

// Context is the per-connection identity bundle. It is attached once when the
// websocket upgrade succeeds and never mutated afterwards; tools requiring an
// authenticated user receive it read-only.
type Context struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Email        string `json:"email,omitempty"`
}

func (c *Context) Authenticated() bool {
	return c != nil && strings.TrimSpace(c.AccessToken) != ""
}

// FromRequest extracts the auth context from the upgrade request's cookie.
// A missing, malformed, or empty cookie yields (nil, false); that is not an
// error, the connection just runs unauthenticated.
func FromRequest(r *http.Request) (*Context, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	raw := cookie.Value
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}
	var ac Context
	if err := json.Unmarshal([]byte(raw), &ac); err != nil {
		return nil, false
	}
	if !ac.Authenticated() {
		return nil, false
	}
	return &ac, true
}

type ctxKey struct{}

func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

func ContextFrom(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(ctxKey{}).(*Context)
	return ac, ok && ac != nil
}
