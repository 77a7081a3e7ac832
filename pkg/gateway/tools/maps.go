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

const defaultMapsBaseURL = "https://maps.googleapis.com"

// Route is a summarized directions result.
type Route struct {
	Summary  string
	Distance string
	Duration string
	Steps    []string
}

// DirectionsClient calls the Google Directions API.
type DirectionsClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewDirectionsClient(apiKey, baseURL string, httpClient *http.Client) *DirectionsClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultMapsBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DirectionsClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *DirectionsClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *DirectionsClient) Directions(ctx context.Context, origin, destination, mode string) (Route, error) {
	if !c.Configured() {
		return Route{}, fmt.Errorf("google maps api key is not configured")
	}
	if origin == "" || destination == "" {
		return Route{}, fmt.Errorf("origin and destination are required")
	}
	switch mode {
	case "driving", "walking", "bicycling", "transit":
	default:
		mode = "driving"
	}

	q := url.Values{}
	q.Set("origin", origin)
	q.Set("destination", destination)
	q.Set("mode", mode)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/maps/api/directions/json?"+q.Encode(), nil)
	if err != nil {
		return Route{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return Route{}, fmt.Errorf("directions error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded struct {
		Status string `json:"status"`
		Routes []struct {
			Summary string `json:"summary"`
			Legs    []struct {
				Distance struct {
					Text string `json:"text"`
				} `json:"distance"`
				Duration struct {
					Text string `json:"text"`
				} `json:"duration"`
				Steps []struct {
					HTMLInstructions string `json:"html_instructions"`
				} `json:"steps"`
			} `json:"legs"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Route{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Status != "OK" || len(decoded.Routes) == 0 || len(decoded.Routes[0].Legs) == 0 {
		return Route{}, fmt.Errorf("no route found (status %s)", decoded.Status)
	}

	leg := decoded.Routes[0].Legs[0]
	route := Route{
		Summary:  decoded.Routes[0].Summary,
		Distance: leg.Distance.Text,
		Duration: leg.Duration.Text,
	}
	for _, step := range leg.Steps {
		route.Steps = append(route.Steps, stripTags(step.HTMLInstructions))
	}
	return route, nil
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// DirectionsHandler exposes routing as the getDirections tool. Besides
// the model response it emits a map_display_update side-channel event
// so the client can render the route.
func DirectionsHandler(client *DirectionsClient) *Handler {
	return &Handler{
		Name:        "getDirections",
		Description: "Get directions between two places and show them on the map.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"origin":      {Type: genai.TypeString, Description: "Starting address or place name."},
				"destination": {Type: genai.TypeString, Description: "Destination address or place name."},
				"mode":        {Type: genai.TypeString, Enum: []string{"driving", "walking", "bicycling", "transit"}},
			},
			Required: []string{"origin", "destination"},
		},
		Run: func(ctx context.Context, _ *auth.Context, args map[string]any) (Outcome, error) {
			origin := stringArg(args, "origin")
			destination := stringArg(args, "destination")
			mode := stringArg(args, "mode")

			route, err := client.Directions(ctx, origin, destination, mode)
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{
				Response: map[string]any{
					"summary":  route.Summary,
					"distance": route.Distance,
					"duration": route.Duration,
					"steps":    route.Steps,
				},
				SideChannel: &SideChannel{
					Event: "map_display_update",
					Payload: map[string]any{
						"mapData": map[string]any{
							"origin":      origin,
							"destination": destination,
							"mode":        mode,
						},
					},
				},
			}, nil
		},
	}
}
