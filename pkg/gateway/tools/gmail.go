package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
)

// GmailMessage is the header summary returned to the model.
type GmailMessage struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// ListMessages searches the user's mailbox and returns header
// summaries for up to maxResults matches.
func (c *GoogleClient) ListMessages(ctx context.Context, token, query string, maxResults int) ([]GmailMessage, error) {
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 10
	}

	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(maxResults))
	if query != "" {
		q.Set("q", query)
	}

	var listed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	listURL := c.gmailBaseURL + "/gmail/v1/users/me/messages?" + q.Encode()
	if err := c.doJSON(ctx, http.MethodGet, listURL, token, nil, &listed); err != nil {
		return nil, err
	}

	messages := make([]GmailMessage, 0, len(listed.Messages))
	for _, m := range listed.Messages {
		var full struct {
			ID      string `json:"id"`
			Snippet string `json:"snippet"`
			Payload struct {
				Headers []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"headers"`
			} `json:"payload"`
		}
		msgURL := c.gmailBaseURL + "/gmail/v1/users/me/messages/" + m.ID + "?format=metadata&metadataHeaders=From&metadataHeaders=Subject&metadataHeaders=Date"
		if err := c.doJSON(ctx, http.MethodGet, msgURL, token, nil, &full); err != nil {
			return nil, err
		}
		msg := GmailMessage{ID: full.ID, Snippet: full.Snippet}
		for _, h := range full.Payload.Headers {
			switch h.Name {
			case "From":
				msg.From = h.Value
			case "Subject":
				msg.Subject = h.Value
			case "Date":
				msg.Date = h.Value
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// SendMessage sends a plain-text email from the user's account and
// returns the sent message id.
func (c *GoogleClient) SendMessage(ctx context.Context, token, to, subject, body string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("recipient is required")
	}

	rfc822 := "To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		body
	payload := map[string]any{
		"raw": base64.URLEncoding.EncodeToString([]byte(rfc822)),
	}

	var sent struct {
		ID string `json:"id"`
	}
	sendURL := c.gmailBaseURL + "/gmail/v1/users/me/messages/send"
	if err := c.doJSON(ctx, http.MethodPost, sendURL, token, payload, &sent); err != nil {
		return "", err
	}
	return sent.ID, nil
}

// ListGmailHandler exposes mailbox search as the listGmailMessages
// tool. Requires an authenticated session.
func ListGmailHandler(client *GoogleClient) *Handler {
	return &Handler{
		Name:         "listGmailMessages",
		Description:  "Search the user's Gmail inbox and return recent matching messages.",
		RequiresAuth: true,
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query":      {Type: genai.TypeString, Description: "Gmail search query, e.g. \"from:alice is:unread\". Empty lists recent mail."},
				"maxResults": {Type: genai.TypeInteger, Description: "Number of messages to return, at most 20."},
			},
		},
		Run: func(ctx context.Context, user *auth.Context, args map[string]any) (Outcome, error) {
			messages, err := client.ListMessages(ctx, user.AccessToken, stringArg(args, "query"), intArg(args, "maxResults", 10))
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Response: map[string]any{
				"messages": messages,
				"count":    len(messages),
			}}, nil
		},
	}
}

// SendGmailHandler exposes sending mail as the sendGmail tool.
// Requires an authenticated session.
func SendGmailHandler(client *GoogleClient) *Handler {
	return &Handler{
		Name:         "sendGmail",
		Description:  "Send an email from the user's Gmail account.",
		RequiresAuth: true,
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"to":      {Type: genai.TypeString, Description: "Recipient email address."},
				"subject": {Type: genai.TypeString},
				"body":    {Type: genai.TypeString, Description: "Plain-text message body."},
			},
			Required: []string{"to", "subject", "body"},
		},
		Run: func(ctx context.Context, user *auth.Context, args map[string]any) (Outcome, error) {
			id, err := client.SendMessage(ctx, user.AccessToken, stringArg(args, "to"), stringArg(args, "subject"), stringArg(args, "body"))
			if err != nil {
				return Outcome{}, err
			}
			return Outcome{Response: map[string]any{
				"sent":      true,
				"messageId": id,
			}}, nil
		},
	}
}
