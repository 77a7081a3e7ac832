// Package upstream defines the contract between the connection bridge
// and the realtime model session behind it. The bridge talks to a
// Session through fire-and-forget sends and receives everything back
// through Callbacks, so tests can swap in a fake without touching the
// provider SDK.
package upstream

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/live/params"
)

// Media kinds accepted by SendRealtimeMedia.
const (
	MediaAudio  = "audio"
	MediaVideo  = "video"
	MediaScreen = "screen"
)

// Media is one realtime input chunk.
type Media struct {
	Kind     string
	MIMEType string
	Data     []byte
}

// ToolCallRequest is one function call intercepted from the model.
type ToolCallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is one entry of a batched tool response. When Error is
// set the adapter sends it in place of Response.
type ToolResult struct {
	ID       string
	Name     string
	Response map[string]any
	Error    string
}

// Callbacks receive everything the upstream session produces. They are
// invoked from the session's receive goroutine; implementations must
// not block indefinitely. Any field may be nil.
type Callbacks struct {
	// OnOpen fires once when the upstream session is established.
	OnOpen func()
	// OnMessage receives every server message not intercepted below,
	// marshaled verbatim for passthrough to the client.
	OnMessage func(raw json.RawMessage)
	// OnToolCall receives an intercepted function call batch.
	OnToolCall func(calls []ToolCallRequest)
	// OnResumptionUpdate receives a new resumable session handle.
	OnResumptionUpdate func(handle string)
	// OnError fires at most once, when the session fails to open or
	// dies with an error.
	OnError func(err error)
	// OnClose fires when the upstream connection ends, with the close
	// code and reason when known.
	OnClose func(code int, reason string)
}

// Session is an open (or opening) upstream model session. Sends issued
// before the session finishes opening are buffered and flushed in
// order once it does. After Close all sends are dropped. Close is
// idempotent.
type Session interface {
	SendText(text string)
	SendRealtimeMedia(m Media)
	SendToolResults(results []ToolResult)
	Close()
}

// Dialer opens upstream sessions. Open returns immediately; connection
// happens in the background and the outcome arrives via cb.OnOpen or
// cb.OnError. The context bounds the whole session, not just the dial.
type Dialer interface {
	Open(ctx context.Context, desc params.Descriptor, decls []*genai.FunctionDeclaration, cb Callbacks) Session
}
