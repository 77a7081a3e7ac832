package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
)

const defaultWeatherBaseURL = "https://api.openweathermap.org"

// WeatherClient calls the OpenWeatherMap current-conditions API.
type WeatherClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewWeatherClient(apiKey, baseURL string, httpClient *http.Client) *WeatherClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultWeatherBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WeatherClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *WeatherClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Current returns conditions for a free-form location, in the units
// the model asked for ("metric" or "imperial").
func (c *WeatherClient) Current(ctx context.Context, location, units string) (map[string]any, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("openweathermap api key is not configured")
	}
	if location == "" {
		return nil, fmt.Errorf("location is required")
	}
	if units != "imperial" {
		units = "metric"
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("units", units)
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return nil, fmt.Errorf("openweathermap error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded struct {
		Name    string `json:"name"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := map[string]any{
		"location":   decoded.Name,
		"temp":       decoded.Main.Temp,
		"feels_like": decoded.Main.FeelsLike,
		"humidity":   decoded.Main.Humidity,
		"wind_speed": decoded.Wind.Speed,
		"units":      units,
	}
	if len(decoded.Weather) > 0 {
		out["conditions"] = decoded.Weather[0].Description
	}
	return out, nil
}

// WeatherHandler exposes current conditions as the getWeather tool.
func WeatherHandler(client *WeatherClient) *Handler {
	return &Handler{
		Name:        "getWeather",
		Description: "Get the current weather for a city or place name.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"location": {Type: genai.TypeString, Description: "City or place name, e.g. \"Oslo\" or \"Kyoto, Japan\"."},
				"units":    {Type: genai.TypeString, Enum: []string{"metric", "imperial"}, Description: "Unit system, metric by default."},
			},
			Required: []string{"location"},
		},
		Run: func(ctx context.Context, _ *auth.Context, args map[string]any) (Outcome, error) {
			conditions, err := client.Current(ctx, stringArg(args, "location"), stringArg(args, "units"))
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Response: conditions}, nil
		},
	}
}
