package auth

import (
	"net/http"
	"net/url"
	"testing"
)

func requestWithCookie(t *testing.T, value string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, "http://localhost/live", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	r.AddCookie(&http.Cookie{Name: CookieName, Value: value})
	return r
}

func TestFromRequest_PercentEncodedJSON(t *testing.T) {
	raw := `{"access_token":"at-123","refresh_token":"rt-456","email":"user@example.com"}`
	r := requestWithCookie(t, url.QueryEscape(raw))

	ac, ok := FromRequest(r)
	if !ok {
		t.Fatalf("expected auth context")
	}
	if ac.AccessToken != "at-123" || ac.RefreshToken != "rt-456" || ac.Email != "user@example.com" {
		t.Fatalf("unexpected context: %+v", ac)
	}
}

func TestFromRequest_UnencodedJSONIsRejected(t *testing.T) {
	// net/http drops the quote bytes from an un-encoded JSON cookie value,
	// so it can never round-trip; the login flow always percent-encodes.
	r := requestWithCookie(t, `{"access_token":"tok"}`)
	if _, ok := FromRequest(r); ok {
		t.Fatalf("mangled cookie value should yield no context")
	}
}

func TestFromRequest_MissingOrBadCookie(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "http://localhost/live", nil)
	if _, ok := FromRequest(r); ok {
		t.Fatalf("no cookie should yield no context")
	}

	if _, ok := FromRequest(requestWithCookie(t, "not-json")); ok {
		t.Fatalf("malformed cookie should yield no context")
	}

	if _, ok := FromRequest(requestWithCookie(t, `{"access_token":""}`)); ok {
		t.Fatalf("empty access token should yield no context")
	}
}

func TestAuthenticated_NilReceiver(t *testing.T) {
	var ac *Context
	if ac.Authenticated() {
		t.Fatalf("nil context must not report authenticated")
	}
}
