package tools

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
)

// TimeHandler exposes the wall clock as the getCurrentTime tool. The
// now func is injectable for tests; nil means time.Now.
func TimeHandler(now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		Name:        "getCurrentTime",
		Description: "Get the current date and time, optionally in a specific IANA timezone.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"timezone": {Type: genai.TypeString, Description: "IANA timezone name, e.g. \"Europe/Oslo\". Defaults to UTC."},
			},
		},
		Run: func(_ context.Context, _ *auth.Context, args map[string]any) (Outcome, error) {
			loc := time.UTC
			if tz := stringArg(args, "timezone"); tz != "" {
				parsed, err := time.LoadLocation(tz)
				if err != nil {
					return Outcome{}, fmt.Errorf("unknown timezone %q", tz)
				}
				loc = parsed
			}
			at := now().In(loc)
			return Outcome{Response: map[string]any{
				"iso":      at.Format(time.RFC3339),
				"readable": at.Format("Monday, January 2, 2006 at 3:04 PM"),
				"timezone": loc.String(),
			}}, nil
		},
	}
}
