package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
)

// CalendarEvent is one event on the user's primary calendar.
type CalendarEvent struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location,omitempty"`
}

type calendarTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

func (t calendarTime) value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// ListEvents returns upcoming events on the primary calendar, ordered
// by start time.
func (c *GoogleClient) ListEvents(ctx context.Context, token string, maxResults int) ([]CalendarEvent, error) {
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 10
	}

	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("timeMin", time.Now().UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	var listed struct {
		Items []struct {
			ID       string       `json:"id"`
			Summary  string       `json:"summary"`
			Location string       `json:"location"`
			Start    calendarTime `json:"start"`
			End      calendarTime `json:"end"`
		} `json:"items"`
	}
	listURL := c.calendarBaseURL + "/calendar/v3/calendars/primary/events?" + q.Encode()
	if err := c.doJSON(ctx, http.MethodGet, listURL, token, nil, &listed); err != nil {
		return nil, err
	}

	events := make([]CalendarEvent, 0, len(listed.Items))
	for _, item := range listed.Items {
		events = append(events, CalendarEvent{
			ID:       item.ID,
			Summary:  item.Summary,
			Location: item.Location,
			Start:    item.Start.value(),
			End:      item.End.value(),
		})
	}
	return events, nil
}

// CreateEvent inserts an event on the primary calendar. Start and end
// are RFC 3339 timestamps.
func (c *GoogleClient) CreateEvent(ctx context.Context, token, summary, description, start, end string) (CalendarEvent, error) {
	if summary == "" {
		return CalendarEvent{}, fmt.Errorf("summary is required")
	}
	startAt, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("parse start time: %w", err)
	}
	endAt, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("parse end time: %w", err)
	}
	if !endAt.After(startAt) {
		return CalendarEvent{}, fmt.Errorf("end time must be after start time")
	}

	payload := map[string]any{
		"summary":     summary,
		"description": description,
		"start":       map[string]string{"dateTime": startAt.Format(time.RFC3339)},
		"end":         map[string]string{"dateTime": endAt.Format(time.RFC3339)},
	}

	var created struct {
		ID      string       `json:"id"`
		Summary string       `json:"summary"`
		Start   calendarTime `json:"start"`
		End     calendarTime `json:"end"`
	}
	insertURL := c.calendarBaseURL + "/calendar/v3/calendars/primary/events"
	if err := c.doJSON(ctx, http.MethodPost, insertURL, token, payload, &created); err != nil {
		return CalendarEvent{}, err
	}
	return CalendarEvent{
		ID:      created.ID,
		Summary: created.Summary,
		Start:   created.Start.value(),
		End:     created.End.value(),
	}, nil
}

// ListCalendarHandler exposes upcoming events as the
// listCalendarEvents tool. Requires an authenticated session.
func ListCalendarHandler(client *GoogleClient) *Handler {
	return &Handler{
		Name:         "listCalendarEvents",
		Description:  "List upcoming events on the user's primary calendar.",
		RequiresAuth: true,
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"maxResults": {Type: genai.TypeInteger, Description: "Number of events to return, at most 50."},
			},
		},
		Run: func(ctx context.Context, user *auth.Context, args map[string]any) (Outcome, error) {
			events, err := client.ListEvents(ctx, user.AccessToken, intArg(args, "maxResults", 10))
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Response: map[string]any{
				"events": events,
				"count":  len(events),
			}}, nil
		},
	}
}

// CreateCalendarHandler exposes event creation as the
// createCalendarEvent tool. Requires an authenticated session.
func CreateCalendarHandler(client *GoogleClient) *Handler {
	return &Handler{
		Name:         "createCalendarEvent",
		Description:  "Create an event on the user's primary calendar.",
		RequiresAuth: true,
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"summary":     {Type: genai.TypeString, Description: "Event title."},
				"description": {Type: genai.TypeString},
				"start":       {Type: genai.TypeString, Description: "Start time, RFC 3339, e.g. 2026-09-01T14:00:00Z."},
				"end":         {Type: genai.TypeString, Description: "End time, RFC 3339."},
			},
			Required: []string{"summary", "start", "end"},
		},
		Run: func(ctx context.Context, user *auth.Context, args map[string]any) (Outcome, error) {
			event, err := client.CreateEvent(ctx, user.AccessToken,
				stringArg(args, "summary"), stringArg(args, "description"),
				stringArg(args, "start"), stringArg(args, "end"))
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Response: map[string]any{
				"created": true,
				"event":   event,
			}}, nil
		},
	}
}
