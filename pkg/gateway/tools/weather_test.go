package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWeatherCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/weather" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "Oslo" || q.Get("units") != "metric" || q.Get("appid") != "key-1" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "Oslo",
			"weather": [{"main": "Clouds", "description": "overcast clouds"}],
			"main": {"temp": 12.5, "feels_like": 11.0, "humidity": 80},
			"wind": {"speed": 3.2}
		}`))
	}))
	defer srv.Close()

	client := NewWeatherClient("key-1", srv.URL, srv.Client())
	got, err := client.Current(context.Background(), "Oslo", "")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got["location"] != "Oslo" || got["temp"] != 12.5 || got["conditions"] != "overcast clouds" {
		t.Fatalf("result = %v", got)
	}
	if got["units"] != "metric" {
		t.Fatalf("units = %v", got["units"])
	}
}

func TestWeatherCurrentUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":"404","message":"city not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewWeatherClient("key-1", srv.URL, srv.Client())
	if _, err := client.Current(context.Background(), "Nowheresville", "metric"); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestWeatherNotConfigured(t *testing.T) {
	client := NewWeatherClient("", "", nil)
	if client.Configured() {
		t.Fatalf("empty key reported configured")
	}
	if _, err := client.Current(context.Background(), "Oslo", "metric"); err == nil {
		t.Fatalf("expected error when unconfigured")
	}
}

func TestWeatherHandlerRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Kyoto","main":{"temp":28},"weather":[{"description":"clear sky"}]}`))
	}))
	defer srv.Close()

	h := WeatherHandler(NewWeatherClient("key-1", srv.URL, srv.Client()))
	if h.Name != "getWeather" || h.RequiresAuth {
		t.Fatalf("handler = %+v", h)
	}
	out, err := h.Run(context.Background(), nil, map[string]any{"location": "Kyoto"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Response["location"] != "Kyoto" || out.SideChannel != nil {
		t.Fatalf("outcome = %+v", out)
	}
}
