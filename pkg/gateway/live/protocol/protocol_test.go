package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeClientFrameText(t *testing.T) {
	f, err := DecodeClientFrame([]byte(`{"type":"text","text":"hello there"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tf, ok := f.(TextFrame)
	if !ok {
		t.Fatalf("expected TextFrame, got %T", f)
	}
	if tf.Text != "hello there" {
		t.Fatalf("text = %q", tf.Text)
	}
}

func TestDecodeClientFrameEmptyText(t *testing.T) {
	f, err := DecodeClientFrame([]byte(`{"type":"text","text":""}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tf, ok := f.(TextFrame); !ok || tf.Text != "" {
		t.Fatalf("expected empty TextFrame, got %#v", f)
	}
}

func TestDecodeClientFrameTextMissingField(t *testing.T) {
	f, err := DecodeClientFrame([]byte(`{"type":"text"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	uf, ok := f.(UnknownFrame)
	if !ok {
		t.Fatalf("expected UnknownFrame, got %T", f)
	}
	if uf.Type != FrameText {
		t.Fatalf("type = %q", uf.Type)
	}
}

func TestDecodeClientFrameChunks(t *testing.T) {
	for _, kind := range []string{FrameVideoChunk, FrameScreenChunk} {
		raw := `{"type":"` + kind + `","chunk":{"mimeType":"image/jpeg","data":"aGk="}}`
		f, err := DecodeClientFrame([]byte(raw))
		if err != nil {
			t.Fatalf("%s: decode: %v", kind, err)
		}
		cf, ok := f.(ChunkFrame)
		if !ok {
			t.Fatalf("%s: expected ChunkFrame, got %T", kind, f)
		}
		if cf.Kind != kind || cf.MIMEType != "image/jpeg" || cf.Data != "aGk=" {
			t.Fatalf("%s: frame = %#v", kind, cf)
		}
	}
}

func TestDecodeClientFrameChunkMissingFields(t *testing.T) {
	cases := []string{
		`{"type":"video_chunk"}`,
		`{"type":"video_chunk","chunk":{"mimeType":"image/jpeg"}}`,
		`{"type":"screen_chunk","chunk":{"data":"aGk="}}`,
	}
	for _, raw := range cases {
		f, err := DecodeClientFrame([]byte(raw))
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if _, ok := f.(UnknownFrame); !ok {
			t.Fatalf("%s: expected UnknownFrame, got %T", raw, f)
		}
	}
}

func TestDecodeClientFrameUnknownType(t *testing.T) {
	f, err := DecodeClientFrame([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	uf, ok := f.(UnknownFrame)
	if !ok {
		t.Fatalf("expected UnknownFrame, got %T", f)
	}
	if uf.Type != "ping" {
		t.Fatalf("type = %q", uf.Type)
	}
}

func TestDecodeClientFrameNotJSON(t *testing.T) {
	_, err := DecodeClientFrame([]byte{0x00, 0x01, 0xfe, 0xff})
	if !errors.Is(err, ErrNotJSON) {
		t.Fatalf("expected ErrNotJSON, got %v", err)
	}
}

func TestServerEventEncode(t *testing.T) {
	b, err := Closed(1011, "internal error").Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["event"] != "closed" || got["code"] != float64(1011) || got["reason"] != "internal error" {
		t.Fatalf("event = %v", got)
	}
}

func TestServerEventEncodePayloadCannotShadowEvent(t *testing.T) {
	e := SideChannel("map_display_update", map[string]any{
		"event":   "spoofed",
		"mapData": map[string]any{"origin": "a", "destination": "b"},
	})
	b, err := e.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["event"] != "map_display_update" {
		t.Fatalf("event = %v", got["event"])
	}
	if _, ok := got["mapData"]; !ok {
		t.Fatalf("mapData missing: %v", got)
	}
}

func TestToolCallStartedEncode(t *testing.T) {
	e := ToolCallStarted([]ToolCallInfo{
		{Name: "getWeather", Args: map[string]any{"location": "Oslo"}},
		{Name: "getCurrentTime"},
	})
	b, err := e.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got struct {
		Event string `json:"event"`
		Calls []struct {
			Name string         `json:"name"`
			Args map[string]any `json:"args"`
		} `json:"calls"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Event != "tool_call_started" || len(got.Calls) != 2 {
		t.Fatalf("event = %+v", got)
	}
	if got.Calls[0].Name != "getWeather" || got.Calls[0].Args["location"] != "Oslo" {
		t.Fatalf("calls[0] = %+v", got.Calls[0])
	}
}
