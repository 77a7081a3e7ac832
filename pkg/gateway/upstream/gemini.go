package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/apsara-labs/apsara-live/pkg/gateway/live/catalog"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/params"
)

// GeminiDialer opens Gemini Live API sessions.
type GeminiDialer struct {
	client *genai.Client
	log    *slog.Logger
}

func NewGeminiDialer(ctx context.Context, apiKey string, logger *slog.Logger) (*GeminiDialer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini dialer: api key required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini dialer: %w", err)
	}
	return &GeminiDialer{client: client, log: logger}, nil
}

// Open starts connecting to the Live API in the background and returns
// a session immediately. Sends before the connection is up are queued.
func (d *GeminiDialer) Open(ctx context.Context, desc params.Descriptor, decls []*genai.FunctionDeclaration, cb Callbacks) Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &geminiSession{
		cb:     cb,
		log:    d.log.With("model", desc.Model),
		cancel: cancel,
	}

	go func() {
		raw, err := d.client.Live.Connect(ctx, desc.Model, liveConfig(desc, decls))
		if err != nil {
			s.failOpen(fmt.Errorf("open live session: %w", err))
			return
		}
		if !s.activate(raw) {
			// Closed while dialing.
			_ = raw.Close()
			return
		}
		if cb.OnOpen != nil {
			cb.OnOpen()
		}
		s.receive(raw)
	}()

	return s
}

// liveConfig translates a session descriptor into the SDK connect
// config. Capability-gated tools are only attached when the resolved
// model supports them.
func liveConfig(desc params.Descriptor, decls []*genai.FunctionDeclaration) *genai.LiveConnectConfig {
	cfg := &genai.LiveConnectConfig{}

	switch desc.Modality {
	case params.ModalityAudio:
		cfg.ResponseModalities = []genai.Modality{genai.ModalityAudio}
	case params.ModalityAudioText:
		cfg.ResponseModalities = []genai.Modality{genai.ModalityAudio, genai.ModalityText}
	default:
		cfg.ResponseModalities = []genai.Modality{genai.ModalityText}
	}

	if desc.Modality.IncludesAudio() && desc.Voice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: desc.Voice},
			},
		}
	}

	instruction := desc.SystemPrompt
	if instruction == "" {
		instruction = catalog.DefaultSystemInstruction(declarationNames(decls))
	}
	cfg.SystemInstruction = &genai.Content{
		Parts: []*genai.Part{{Text: instruction}},
	}

	caps := desc.Capabilities
	if caps.Search {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if caps.CodeExecution {
		cfg.Tools = append(cfg.Tools, &genai.Tool{CodeExecution: &genai.ToolCodeExecution{}})
	}
	if caps.URLContext {
		cfg.Tools = append(cfg.Tools, &genai.Tool{URLContext: &genai.URLContext{}})
	}
	if caps.Functions && len(decls) > 0 {
		cfg.Tools = append(cfg.Tools, &genai.Tool{FunctionDeclarations: decls})
	}

	if desc.Compression.Enabled {
		trigger := int64(desc.Compression.TriggerTokens)
		cfg.ContextWindowCompression = &genai.ContextWindowCompressionConfig{
			TriggerTokens: &trigger,
			SlidingWindow: &genai.SlidingWindow{TargetTokens: &trigger},
		}
	}
	if desc.ResumeHandle != "" {
		cfg.SessionResumption = &genai.SessionResumptionConfig{Handle: desc.ResumeHandle}
	} else {
		cfg.SessionResumption = &genai.SessionResumptionConfig{}
	}
	if desc.TranscriptionEnabled {
		cfg.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
		if desc.Modality.IncludesAudio() {
			cfg.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
		}
	}
	cfg.MediaResolution = genai.MediaResolution(desc.MediaResolution)
	if desc.DisableVAD {
		cfg.RealtimeInputConfig = &genai.RealtimeInputConfig{
			AutomaticActivityDetection: &genai.AutomaticActivityDetection{Disabled: true},
		}
	}
	if desc.NativeAudio {
		if desc.AffectiveDialog {
			cfg.EnableAffectiveDialog = genai.Ptr(true)
		}
		if desc.ProactiveAudio {
			cfg.Proactivity = &genai.ProactivityConfig{ProactiveAudio: genai.Ptr(true)}
		}
	}

	return cfg
}

func declarationNames(decls []*genai.FunctionDeclaration) []string {
	names := make([]string, 0, len(decls))
	for _, d := range decls {
		if d != nil {
			names = append(names, d.Name)
		}
	}
	return names
}

type geminiSession struct {
	cb     Callbacks
	log    *slog.Logger
	cancel context.CancelFunc

	mu      sync.Mutex
	raw     *genai.Session
	pending []func(*genai.Session) error
	closed  bool
}

func (s *geminiSession) failOpen(err error) {
	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.pending = nil
	s.mu.Unlock()

	if alreadyClosed {
		return
	}
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
}

// activate publishes the raw session and flushes queued sends. It
// reports false when Close won the race.
func (s *geminiSession) activate(raw *genai.Session) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.raw = raw
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, send := range queued {
		if err := send(raw); err != nil {
			s.log.Warn("flush queued send", "error", err)
		}
	}
	return true
}

func (s *geminiSession) receive(raw *genai.Session) {
	for {
		msg, err := raw.Receive()
		if err != nil {
			s.finish(err)
			return
		}
		if msg == nil {
			continue
		}
		s.dispatch(msg)
	}
}

func (s *geminiSession) dispatch(msg *genai.LiveServerMessage) {
	if msg.ToolCall != nil && len(msg.ToolCall.FunctionCalls) > 0 {
		calls := make([]ToolCallRequest, 0, len(msg.ToolCall.FunctionCalls))
		for _, fc := range msg.ToolCall.FunctionCalls {
			if fc == nil {
				continue
			}
			calls = append(calls, ToolCallRequest{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		if len(calls) > 0 && s.cb.OnToolCall != nil {
			s.cb.OnToolCall(calls)
		}
		return
	}

	if upd := msg.SessionResumptionUpdate; upd != nil {
		if upd.Resumable && upd.NewHandle != "" && s.cb.OnResumptionUpdate != nil {
			s.cb.OnResumptionUpdate(upd.NewHandle)
		}
		return
	}

	if s.cb.OnMessage == nil {
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn("marshal server message", "error", err)
		return
	}
	s.cb.OnMessage(raw)
}

// finish maps the receive pump's terminal error to a close
// notification. A deliberate local Close stays silent.
func (s *geminiSession) finish(err error) {
	s.mu.Lock()
	wasClosed := s.closed
	s.closed = true
	s.mu.Unlock()

	if wasClosed {
		return
	}

	code := websocket.CloseAbnormalClosure
	reason := ""
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr):
		code = closeErr.Code
		reason = closeErr.Text
	case errors.Is(err, io.EOF):
		code = websocket.CloseNormalClosure
	default:
		reason = err.Error()
		if s.cb.OnError != nil {
			s.cb.OnError(fmt.Errorf("live session receive: %w", err))
		}
	}
	if s.cb.OnClose != nil {
		s.cb.OnClose(code, reason)
	}
}

// send runs fn against the open session, or queues it until the
// session opens. Sends after Close are dropped.
func (s *geminiSession) send(what string, fn func(*genai.Session) error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.raw == nil {
		s.pending = append(s.pending, fn)
		s.mu.Unlock()
		return
	}
	raw := s.raw
	s.mu.Unlock()

	if err := fn(raw); err != nil {
		s.log.Warn("upstream send failed", "kind", what, "error", err)
	}
}

func (s *geminiSession) SendText(text string) {
	s.send("text", func(raw *genai.Session) error {
		return raw.SendClientContent(genai.LiveClientContentInput{
			Turns:        []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
			TurnComplete: genai.Ptr(true),
		})
	})
}

func (s *geminiSession) SendRealtimeMedia(m Media) {
	s.send(m.Kind, func(raw *genai.Session) error {
		blob := &genai.Blob{MIMEType: m.MIMEType, Data: m.Data}
		input := genai.LiveRealtimeInput{}
		if m.Kind == MediaAudio {
			input.Audio = blob
		} else {
			input.Video = blob
		}
		return raw.SendRealtimeInput(input)
	})
}

func (s *geminiSession) SendToolResults(results []ToolResult) {
	if len(results) == 0 {
		return
	}
	s.send("tool_results", func(raw *genai.Session) error {
		responses := make([]*genai.FunctionResponse, 0, len(results))
		for _, r := range results {
			resp := r.Response
			if r.Error != "" {
				resp = map[string]any{"error": r.Error}
			}
			if resp == nil {
				resp = map[string]any{}
			}
			responses = append(responses, &genai.FunctionResponse{
				ID:       r.ID,
				Name:     r.Name,
				Response: resp,
			})
		}
		return raw.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses})
	})
}

func (s *geminiSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	raw := s.raw
	s.mu.Unlock()

	s.cancel()
	if raw != nil {
		if err := raw.Close(); err != nil {
			s.log.Debug("close live session", "error", err)
		}
	}
}
