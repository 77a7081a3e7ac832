// Package bridge pairs one client websocket with one upstream live
// session and relays traffic between them until either side ends.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/apsara-labs/apsara-live/pkg/gateway/auth"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/params"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/protocol"
	"github.com/apsara-labs/apsara-live/pkg/gateway/live/resume"
	"github.com/apsara-labs/apsara-live/pkg/gateway/tools"
	"github.com/apsara-labs/apsara-live/pkg/gateway/upstream"
)

const clientAudioMIMEType = "audio/pcm;rate=16000"

// ClientConn is the client side of the pairing. *websocket.Conn
// satisfies it; tests use a fake.
type ClientConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type deadlineSetter interface {
	SetWriteDeadline(t time.Time) error
}

// Dependencies wires a bridge. Conn, Dialer and Logger are required.
type Dependencies struct {
	Logger     *slog.Logger
	Conn       ClientConn
	User       *auth.Context
	Descriptor params.Descriptor
	Dialer     upstream.Dialer
	Tools      *tools.Registry
	Resume     resume.Store
	// ResumeKey identifies the user in the resume store. Empty
	// disables handle persistence for this session.
	ResumeKey    string
	WriteTimeout time.Duration
	// OnTeardown runs exactly once when the pairing is torn down.
	OnTeardown func()
}

type state int

const (
	stateOpening state = iota
	stateActive
	stateClosed
)

// Bridge relays between one client connection and one upstream
// session. The client read loop stays with the HTTP handler; it feeds
// frames in through HandleClientFrame and reports disconnect through
// ClientGone.
type Bridge struct {
	log          *slog.Logger
	conn         ClientConn
	user         *auth.Context
	desc         params.Descriptor
	dialer       upstream.Dialer
	tools        *tools.Registry
	resumeStore  resume.Store
	resumeKey    string
	writeTimeout time.Duration
	onTeardown   func()

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu      sync.Mutex
	state   state
	session upstream.Session
	pending map[string]struct{}

	teardownOnce sync.Once
}

func New(deps Dependencies) *Bridge {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.WriteTimeout <= 0 {
		deps.WriteTimeout = 5 * time.Second
	}
	return &Bridge{
		log:          logger,
		conn:         deps.Conn,
		user:         deps.User,
		desc:         deps.Descriptor,
		dialer:       deps.Dialer,
		tools:        deps.Tools,
		resumeStore:  deps.Resume,
		resumeKey:    deps.ResumeKey,
		writeTimeout: deps.WriteTimeout,
		onTeardown:   deps.OnTeardown,
		pending:      make(map[string]struct{}),
	}
}

// Start acknowledges the client and begins opening the upstream
// session. It returns immediately; progress arrives as client events.
func (b *Bridge) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.ctx, b.cancel = ctx, cancel
	b.mu.Unlock()

	b.writeEvent(protocol.BackendConnected())

	decls := b.tools.Declarations(b.user.Authenticated())
	session := b.dialer.Open(ctx, b.desc, decls, upstream.Callbacks{
		OnOpen:             b.onUpstreamOpen,
		OnMessage:          b.onUpstreamMessage,
		OnToolCall:         func(calls []upstream.ToolCallRequest) { go b.onToolCall(calls) },
		OnResumptionUpdate: b.onResumptionUpdate,
		OnError:            b.onUpstreamError,
		OnClose:            b.onUpstreamClose,
	})

	b.mu.Lock()
	b.session = session
	alreadyClosed := b.state == stateClosed
	b.mu.Unlock()
	if alreadyClosed {
		cancel()
		session.Close()
	}
}

func (b *Bridge) onUpstreamOpen() {
	b.mu.Lock()
	if b.state == stateOpening {
		b.state = stateActive
	}
	b.mu.Unlock()
	b.writeEvent(protocol.Connected())
}

func (b *Bridge) onUpstreamMessage(raw json.RawMessage) {
	b.writeRaw(raw)
}

func (b *Bridge) onResumptionUpdate(handle string) {
	if b.resumeStore == nil || b.resumeKey == "" {
		return
	}
	if err := b.resumeStore.Save(b.ctx, b.resumeKey, handle); err != nil {
		b.log.Warn("save resume handle", "error", err)
	}
}

func (b *Bridge) onUpstreamError(err error) {
	b.log.Error("upstream session error", "error", err)
	b.writeEvent(protocol.ErrorEvent(err.Error()))
	b.teardown()
}

func (b *Bridge) onUpstreamClose(code int, reason string) {
	b.log.Info("upstream session closed", "code", code, "reason", reason)
	b.writeEvent(protocol.Closed(code, reason))
	b.teardown()
}

// HandleClientFrame relays one inbound websocket message. Frames that
// do not parse as JSON are raw PCM audio; malformed JSON frames are
// dropped with a warning and never end the session.
func (b *Bridge) HandleClientFrame(data []byte) {
	session := b.currentSession()
	if session == nil {
		return
	}

	frame, err := protocol.DecodeClientFrame(data)
	if err != nil {
		if len(data) == 0 {
			return
		}
		session.SendRealtimeMedia(upstream.Media{
			Kind:     upstream.MediaAudio,
			MIMEType: clientAudioMIMEType,
			Data:     data,
		})
		return
	}

	switch f := frame.(type) {
	case protocol.TextFrame:
		text := strings.TrimSpace(f.Text)
		if text == "" {
			return
		}
		session.SendText(text)
	case protocol.ChunkFrame:
		decoded, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			b.log.Warn("drop chunk with invalid base64", "kind", f.Kind, "error", err)
			return
		}
		kind := upstream.MediaVideo
		if f.Kind == protocol.FrameScreenChunk {
			kind = upstream.MediaScreen
		}
		session.SendRealtimeMedia(upstream.Media{
			Kind:     kind,
			MIMEType: f.MIMEType,
			Data:     decoded,
		})
	case protocol.UnknownFrame:
		b.log.Warn("drop unrecognized client frame", "type", f.Type)
	}
}

// ClientGone tears the pairing down after the client read loop ends.
// Nothing more is written to the connection.
func (b *Bridge) ClientGone() {
	b.teardown()
}

// Shutdown is the registry-facing teardown, used on server drain and
// connection replacement. The client gets a closed event first.
func (b *Bridge) Shutdown(reason string) {
	b.writeEvent(protocol.Closed(websocket.CloseGoingAway, reason))
	b.teardown()
}

// PendingToolCalls reports in-flight tool executions, for diagnostics.
func (b *Bridge) PendingToolCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bridge) currentSession() upstream.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateClosed {
		return nil
	}
	return b.session
}

func (b *Bridge) closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateClosed
}

// teardown closes both sides exactly once. Safe from any goroutine.
func (b *Bridge) teardown() {
	b.teardownOnce.Do(func() {
		b.mu.Lock()
		b.state = stateClosed
		session := b.session
		cancel := b.cancel
		b.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if session != nil {
			session.Close()
		}
		if err := b.conn.Close(); err != nil {
			b.log.Debug("close client connection", "error", err)
		}
		if b.onTeardown != nil {
			b.onTeardown()
		}
	})
}

func (b *Bridge) writeEvent(e protocol.ServerEvent) {
	data, err := e.Encode()
	if err != nil {
		b.log.Error("encode client event", "event", e.Event, "error", err)
		return
	}
	b.writeRaw(data)
}

func (b *Bridge) writeRaw(data []byte) {
	if b.closed() {
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if d, ok := b.conn.(deadlineSetter); ok {
		_ = d.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	}
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		b.log.Debug("client write failed", "error", err)
	}
}
