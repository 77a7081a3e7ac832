package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const directionsBody = `{
	"status": "OK",
	"routes": [{
		"summary": "E18",
		"legs": [{
			"distance": {"text": "52 km"},
			"duration": {"text": "45 mins"},
			"steps": [
				{"html_instructions": "Head <b>north</b> on Main St"},
				{"html_instructions": "Merge onto <b>E18</b>"}
			]
		}]
	}]
}`

func TestDirections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("origin") != "Oslo" || q.Get("destination") != "Drammen" || q.Get("mode") != "driving" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(directionsBody))
	}))
	defer srv.Close()

	client := NewDirectionsClient("key-1", srv.URL, srv.Client())
	route, err := client.Directions(context.Background(), "Oslo", "Drammen", "")
	if err != nil {
		t.Fatalf("Directions: %v", err)
	}
	if route.Summary != "E18" || route.Distance != "52 km" || route.Duration != "45 mins" {
		t.Fatalf("route = %+v", route)
	}
	if len(route.Steps) != 2 || route.Steps[0] != "Head north on Main St" {
		t.Fatalf("steps = %v", route.Steps)
	}
}

func TestDirectionsNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","routes":[]}`))
	}))
	defer srv.Close()

	client := NewDirectionsClient("key-1", srv.URL, srv.Client())
	if _, err := client.Directions(context.Background(), "Oslo", "Atlantis", "driving"); err == nil {
		t.Fatalf("expected error for zero results")
	}
}

func TestDirectionsHandlerEmitsMapUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(directionsBody))
	}))
	defer srv.Close()

	h := DirectionsHandler(NewDirectionsClient("key-1", srv.URL, srv.Client()))
	out, err := h.Run(context.Background(), nil, map[string]any{
		"origin":      "Oslo",
		"destination": "Drammen",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Response["distance"] != "52 km" {
		t.Fatalf("response = %v", out.Response)
	}
	if out.SideChannel == nil || out.SideChannel.Event != "map_display_update" {
		t.Fatalf("side channel = %+v", out.SideChannel)
	}
	mapData, ok := out.SideChannel.Payload["mapData"].(map[string]any)
	if !ok || mapData["origin"] != "Oslo" || mapData["destination"] != "Drammen" {
		t.Fatalf("mapData = %v", out.SideChannel.Payload["mapData"])
	}
}

func TestStripTags(t *testing.T) {
	if got := stripTags(`Turn <b>left</b> onto <div style="x">Elm St</div>`); got != "Turn left onto Elm St" {
		t.Fatalf("stripTags = %q", got)
	}
}
