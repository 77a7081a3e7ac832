// Package protocol defines the JSON frames exchanged with the browser
// client over the live websocket.
//
// Inbound frames are sniffed: a frame that parses as JSON is treated as
// a structured message, anything else is raw PCM audio. A client that
// sends audio which happens to be valid JSON would be misinterpreted;
// in practice browser-captured PCM never is, and the framing the client
// uses keeps the two apart.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client frame types.
const (
	FrameText        = "text"
	FrameVideoChunk  = "video_chunk"
	FrameScreenChunk = "screen_chunk"
)

// Server event names.
const (
	EventBackendConnected = "backend_connected"
	EventConnected        = "connected"
	EventError            = "error"
	EventClosed           = "closed"
	EventToolCallStarted  = "tool_call_started"
	EventToolCallResult   = "tool_call_result"
	EventToolCallError    = "tool_call_error"
)

// ErrNotJSON reports that an inbound frame did not parse as JSON and
// should be treated as raw audio.
var ErrNotJSON = errors.New("protocol: frame is not JSON")

// TextFrame is a user text turn.
type TextFrame struct {
	Text string
}

// ChunkFrame is a video or screen capture chunk. Data is base64 as
// sent by the client; the caller decodes it before forwarding.
type ChunkFrame struct {
	Kind     string // FrameVideoChunk or FrameScreenChunk
	MIMEType string
	Data     string
}

// UnknownFrame is valid JSON whose type is not recognized, or a known
// type with malformed fields. Callers log and drop it.
type UnknownFrame struct {
	Type string
	Raw  json.RawMessage
}

type clientEnvelope struct {
	Type  string  `json:"type"`
	Text  *string `json:"text"`
	Chunk *struct {
		MIMEType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"chunk"`
}

// DecodeClientFrame classifies one inbound frame. It returns
// ErrNotJSON when the payload is not JSON at all; every JSON payload
// decodes to a TextFrame, ChunkFrame or UnknownFrame.
func DecodeClientFrame(data []byte) (any, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrNotJSON
	}
	switch env.Type {
	case FrameText:
		if env.Text == nil {
			return UnknownFrame{Type: env.Type, Raw: data}, nil
		}
		return TextFrame{Text: *env.Text}, nil
	case FrameVideoChunk, FrameScreenChunk:
		if env.Chunk == nil || env.Chunk.MIMEType == "" || env.Chunk.Data == "" {
			return UnknownFrame{Type: env.Type, Raw: data}, nil
		}
		return ChunkFrame{Kind: env.Type, MIMEType: env.Chunk.MIMEType, Data: env.Chunk.Data}, nil
	default:
		return UnknownFrame{Type: env.Type, Raw: data}, nil
	}
}

// ServerEvent is a structured message sent to the client. Payload
// fields are merged into the encoded object next to "event".
type ServerEvent struct {
	Event   string
	Payload map[string]any
}

// Encode marshals a server event into the flat object form the client
// expects, with the event name alongside the payload fields.
func (e ServerEvent) Encode() ([]byte, error) {
	obj := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		if k == "event" {
			continue
		}
		obj[k] = v
	}
	obj["event"] = e.Event
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Event, err)
	}
	return b, nil
}

// BackendConnected acknowledges the websocket upgrade before the
// upstream session opens.
func BackendConnected() ServerEvent {
	return ServerEvent{Event: EventBackendConnected}
}

// Connected signals that the upstream session is open and relaying.
func Connected() ServerEvent {
	return ServerEvent{Event: EventConnected}
}

// ErrorEvent carries a fatal session error to the client.
func ErrorEvent(message string) ServerEvent {
	return ServerEvent{Event: EventError, Payload: map[string]any{"message": message}}
}

// Closed reports the upstream close code and reason.
func Closed(code int, reason string) ServerEvent {
	return ServerEvent{Event: EventClosed, Payload: map[string]any{"code": code, "reason": reason}}
}

// ToolCallStarted announces an intercepted tool call batch.
func ToolCallStarted(calls []ToolCallInfo) ServerEvent {
	return ServerEvent{Event: EventToolCallStarted, Payload: map[string]any{"calls": calls}}
}

// ToolCallInfo identifies one call within a tool_call_started event.
type ToolCallInfo struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolCallResult reports a completed tool call.
func ToolCallResult(name string, result map[string]any) ServerEvent {
	return ServerEvent{Event: EventToolCallResult, Payload: map[string]any{"name": name, "result": result}}
}

// ToolCallError reports a failed tool call.
func ToolCallError(name, errMsg string) ServerEvent {
	return ServerEvent{Event: EventToolCallError, Payload: map[string]any{"name": name, "error": errMsg}}
}

// SideChannel builds a client event emitted by a tool handler outside
// the model round trip, such as map_display_update.
func SideChannel(event string, payload map[string]any) ServerEvent {
	return ServerEvent{Event: event, Payload: payload}
}
