package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultGmailBaseURL    = "https://gmail.googleapis.com"
	defaultCalendarBaseURL = "https://www.googleapis.com"
)

// GoogleClient calls the Gmail and Calendar REST APIs with the user's
// OAuth access token. It holds no credentials itself; every call takes
// the bearer token from the session's auth context.
type GoogleClient struct {
	gmailBaseURL    string
	calendarBaseURL string
	httpClient      *http.Client
}

func NewGoogleClient(gmailBaseURL, calendarBaseURL string, httpClient *http.Client) *GoogleClient {
	if strings.TrimSpace(gmailBaseURL) == "" {
		gmailBaseURL = defaultGmailBaseURL
	}
	if strings.TrimSpace(calendarBaseURL) == "" {
		calendarBaseURL = defaultCalendarBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleClient{
		gmailBaseURL:    strings.TrimRight(gmailBaseURL, "/"),
		calendarBaseURL: strings.TrimRight(calendarBaseURL, "/"),
		httpClient:      httpClient,
	}
}

// doJSON performs one authorized request and decodes the JSON response
// into out. A nil out discards the body.
func (c *GoogleClient) doJSON(ctx context.Context, method, rawURL, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("google api rejected the access token (status %d); the user may need to sign in again", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return fmt.Errorf("google api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
