// Package genlive implements the duplex websocket transport to the
// streaming generative-audio endpoint.
package genlive

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/fluentvoice/fluentvoice/pkg/core"
)

const (
	defaultEndpoint       = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	defaultModel          = "models/gemini-2.0-flash-live-001"
	defaultConnectTimeout = 15 * time.Second
)

// Config configures a live session.
type Config struct {
	// APIKey is the service credential. Its absence is a fatal
	// configuration error raised before any connection attempt.
	APIKey string

	Model             string
	VoiceName         string
	SystemInstruction string

	// Endpoint overrides the upstream websocket URL; tests point it at a
	// local server.
	Endpoint string

	Logger *slog.Logger
}

// Session is a live duplex connection. Upstream frames go out through
// SendAudio; downstream frames arrive as typed events on Events().
type Session struct {
	// ID identifies the session in logs and records.
	ID string

	conn   *websocket.Conn
	logger *slog.Logger

	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Connect dials the endpoint, performs the setup handshake, and starts the
// read loop. The returned session is ready to stream.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, core.NewConfigError("missing service credential (set FLUENT_API_KEY)")
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, core.NewConfigError("invalid live endpoint URL")
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, core.NewTransportError(fmt.Sprintf("live dial failed (status %d)", resp.StatusCode), err)
		}
		return nil, core.NewTransportError("live dial failed", err)
	}

	setup := &Setup{
		Model: model,
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		InputAudioTranscription:  &TranscriptionConfig{},
		OutputAudioTranscription: &TranscriptionConfig{},
	}
	if voice := strings.TrimSpace(cfg.VoiceName); voice != "" {
		setup.GenerationConfig.SpeechConfig = &SpeechConfig{
			VoiceConfig: &VoiceConfig{
				PrebuiltVoiceConfig: &PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}
	if system := strings.TrimSpace(cfg.SystemInstruction); system != "" {
		setup.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}

	if err := conn.WriteJSON(setupMessage{Setup: setup}); err != nil {
		_ = conn.Close()
		return nil, core.NewTransportError("send live setup", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultConnectTimeout))
	var first ServerMessage
	if err := conn.ReadJSON(&first); err != nil {
		_ = conn.Close()
		return nil, core.NewTransportError("read setup acknowledgement", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if first.SetupComplete == nil {
		_ = conn.Close()
		return nil, core.NewTransportError("endpoint did not acknowledge setup", nil)
	}

	s := &Session{
		ID:     ulid.Make().String(),
		conn:   conn,
		logger: logger,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Events yields downstream events. The channel closes when the session
// ends; Err reports the terminal error, if any.
func (s *Session) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.events
}

// SendAudio transmits one base64 PCM frame at InputSampleRate.
func (s *Session) SendAudio(data string) error {
	if s == nil {
		return fmt.Errorf("session must not be nil")
	}
	if s.closed.Load() {
		return core.NewTransportError("live session is closed", nil)
	}
	msg := realtimeInputMessage{
		RealtimeInput: &RealtimeInput{
			MediaChunks: []Blob{{MIMEType: inputMIMEType, Data: data}},
		},
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		return core.NewTransportError("send audio frame", err)
	}
	return nil
}

// Close closes the websocket session. Safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Err returns the terminal session error, if any, after the session ends.
func (s *Session) Err() error {
	if s == nil {
		return nil
	}
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		var msg ServerMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			s.setErr(core.NewTransportError("live connection lost", err))
			return
		}
		content := msg.ServerContent
		if content == nil {
			continue
		}

		// Interruption preempts any buffered audio in this frame; emit it
		// first so the bridge cancels playback before scheduling more.
		if content.Interrupted {
			s.emit(InterruptedEvent{})
		}
		if content.InputTranscription != nil && content.InputTranscription.Text != "" {
			s.emit(TranscriptDeltaEvent{Text: content.InputTranscription.Text, IsUser: true})
		}
		if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
			s.emit(TranscriptDeltaEvent{Text: content.OutputTranscription.Text, IsUser: false})
		}
		if content.ModelTurn != nil {
			for _, part := range content.ModelTurn.Parts {
				if part.InlineData != nil && part.InlineData.Data != "" {
					s.emit(AudioDeltaEvent{Data: part.InlineData.Data})
				}
			}
		}
		if content.TurnComplete {
			s.emit(TurnCompleteEvent{})
		}
	}
}

func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	case <-time.After(time.Second):
		// A stalled consumer must not wedge the read loop forever; drop
		// with a log line rather than block the transport.
		s.logger.Warn("dropping live event, consumer stalled", "session_id", s.ID, "event", event.liveEventType())
	}
}
