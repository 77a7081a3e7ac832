package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
)

func TestListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q", got)
		}
		switch {
		case r.URL.Path == "/gmail/v1/users/me/messages":
			if r.URL.Query().Get("q") != "is:unread" {
				t.Errorf("q = %q", r.URL.Query().Get("q"))
			}
			w.Write([]byte(`{"messages":[{"id":"m1"}]}`))
		case strings.HasPrefix(r.URL.Path, "/gmail/v1/users/me/messages/m1"):
			w.Write([]byte(`{
				"id": "m1",
				"snippet": "hi there",
				"payload": {"headers": [
					{"name": "From", "value": "alice@example.com"},
					{"name": "Subject", "value": "Lunch"},
					{"name": "Date", "value": "Mon, 1 Sep 2026 10:00:00 +0000"}
				]}
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewGoogleClient(srv.URL, srv.URL, srv.Client())
	messages, err := client.ListMessages(context.Background(), "tok-1", "is:unread", 5)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("messages = %v", messages)
	}
	if m := messages[0]; m.From != "alice@example.com" || m.Subject != "Lunch" || m.Snippet != "hi there" {
		t.Fatalf("message = %+v", m)
	}
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gmail/v1/users/me/messages/send" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var payload struct {
			Raw string `json:"raw"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		rfc822, err := base64.URLEncoding.DecodeString(payload.Raw)
		if err != nil {
			t.Errorf("raw not base64url: %v", err)
		}
		if !strings.Contains(string(rfc822), "To: bob@example.com") || !strings.Contains(string(rfc822), "Subject: Hello") {
			t.Errorf("rfc822 = %q", rfc822)
		}
		w.Write([]byte(`{"id":"sent-1"}`))
	}))
	defer srv.Close()

	client := NewGoogleClient(srv.URL, srv.URL, srv.Client())
	id, err := client.SendMessage(context.Background(), "tok-1", "bob@example.com", "Hello", "See you at noon.")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if id != "sent-1" {
		t.Fatalf("id = %q", id)
	}
}

func TestGoogleExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":401}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewGoogleClient(srv.URL, srv.URL, srv.Client())
	_, err := client.ListMessages(context.Background(), "stale", "", 5)
	if err == nil || !strings.Contains(err.Error(), "sign in again") {
		t.Fatalf("err = %v", err)
	}
}

func TestListEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendar/v3/calendars/primary/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("singleEvents") != "true" || q.Get("orderBy") != "startTime" || q.Get("timeMin") == "" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"items":[
			{"id":"e1","summary":"Standup","start":{"dateTime":"2026-09-02T09:00:00Z"},"end":{"dateTime":"2026-09-02T09:15:00Z"}},
			{"id":"e2","summary":"Holiday","start":{"date":"2026-09-05"},"end":{"date":"2026-09-06"}}
		]}`))
	}))
	defer srv.Close()

	client := NewGoogleClient(srv.URL, srv.URL, srv.Client())
	events, err := client.ListEvents(context.Background(), "tok-1", 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %v", events)
	}
	if events[0].Start != "2026-09-02T09:00:00Z" {
		t.Fatalf("events[0] = %+v", events[0])
	}
	// All-day events carry a date instead of a dateTime.
	if events[1].Start != "2026-09-05" {
		t.Fatalf("events[1] = %+v", events[1])
	}
}

func TestCreateEventValidatesTimes(t *testing.T) {
	client := NewGoogleClient("http://unused", "http://unused", nil)

	if _, err := client.CreateEvent(context.Background(), "tok", "Meet", "", "not-a-time", "2026-09-02T10:00:00Z"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := client.CreateEvent(context.Background(), "tok", "Meet", "", "2026-09-02T11:00:00Z", "2026-09-02T10:00:00Z"); err == nil {
		t.Fatalf("expected end-before-start error")
	}
}

func TestCreateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		if payload["summary"] != "Dentist" {
			t.Errorf("payload = %v", payload)
		}
		w.Write([]byte(`{"id":"e9","summary":"Dentist","start":{"dateTime":"2026-09-03T13:00:00Z"},"end":{"dateTime":"2026-09-03T14:00:00Z"}}`))
	}))
	defer srv.Close()

	client := NewGoogleClient(srv.URL, srv.URL, srv.Client())
	event, err := client.CreateEvent(context.Background(), "tok-1", "Dentist", "", "2026-09-03T13:00:00Z", "2026-09-03T14:00:00Z")
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if event.ID != "e9" || event.Start != "2026-09-03T13:00:00Z" {
		t.Fatalf("event = %+v", event)
	}
}

func TestGmailHandlersRequireAuth(t *testing.T) {
	client := NewGoogleClient("http://unused", "http://unused", nil)
	for _, h := range []*Handler{
		ListGmailHandler(client),
		SendGmailHandler(client),
		ListCalendarHandler(client),
		CreateCalendarHandler(client),
	} {
		if !h.RequiresAuth {
			t.Fatalf("%s does not require auth", h.Name)
		}
	}

	// The registry gate, not the handler, rejects anonymous calls.
	r := NewRegistry(ListGmailHandler(client))
	out, err := r.Execute(context.Background(), &auth.Context{}, "listGmailMessages", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := out.Response["error"]; !ok {
		t.Fatalf("expected auth error outcome, got %v", out.Response)
	}
}
