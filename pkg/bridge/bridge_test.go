package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fluentvoice/fluentvoice/pkg/audio"
	"github.com/fluentvoice/fluentvoice/pkg/core"
	"github.com/fluentvoice/fluentvoice/pkg/genlive"
)

type fakeCapture struct {
	mu        sync.Mutex
	rate      int
	resumeErr error
	startErr  error
	onBlock   func([]float32)
	closed    int
}

func newFakeCapture(rate int) *fakeCapture { return &fakeCapture{rate: rate} }

func (c *fakeCapture) SampleRate() int { return c.rate }

func (c *fakeCapture) Resume(context.Context) error { return c.resumeErr }

func (c *fakeCapture) Start(onBlock func([]float32)) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.mu.Lock()
	c.onBlock = onBlock
	c.mu.Unlock()
	return nil
}

func (c *fakeCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeCapture) deliver(samples []float32) {
	c.mu.Lock()
	onBlock := c.onBlock
	c.mu.Unlock()
	if onBlock != nil {
		onBlock(samples)
	}
}

type fakeUpstream struct {
	mu     sync.Mutex
	events chan genlive.Event
	sent   []string
	err    error
	closed int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{events: make(chan genlive.Event, 64)}
}

func (u *fakeUpstream) Events() <-chan genlive.Event { return u.events }

func (u *fakeUpstream) SendAudio(data string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sent = append(u.sent, data)
	return nil
}

func (u *fakeUpstream) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed == 0 {
		close(u.events)
	}
	u.closed++
	return nil
}

func (u *fakeUpstream) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

func (u *fakeUpstream) sentFrames() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.sent...)
}

func (u *fakeUpstream) failWith(err error) {
	u.mu.Lock()
	u.err = err
	if u.closed == 0 {
		close(u.events)
		u.closed++
	}
	u.mu.Unlock()
}

type bridgeFixture struct {
	bridge   *Bridge
	capture  *fakeCapture
	playback *fakePlayback
	upstream *fakeUpstream

	mu          sync.Mutex
	transcripts []string
	closedErrs  []error
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()
	f := &bridgeFixture{
		capture:  newFakeCapture(48000),
		playback: newFakePlayback(),
		upstream: newFakeUpstream(),
	}
	b, err := New(Options{
		Capture:  f.capture,
		Playback: f.playback,
		Dial: func(context.Context) (Upstream, error) {
			return f.upstream, nil
		},
		OnTranscript: func(text string, isUser bool) {
			f.mu.Lock()
			f.transcripts = append(f.transcripts, text)
			f.mu.Unlock()
		},
		OnClosed: func(err error) {
			f.mu.Lock()
			f.closedErrs = append(f.closedErrs, err)
			f.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	f.bridge = b
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBridge_ConnectOpensAndStreamsCapture(t *testing.T) {
	f := newBridgeFixture(t)
	if err := f.bridge.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer f.bridge.Disconnect()

	if got := f.bridge.Status(); !got.IsConnected || got.State != StateOpen {
		t.Fatalf("status=%+v, want open", got)
	}

	f.capture.deliver(make([]float32, 4096))
	waitFor(t, "capture frame to transmit", func() bool {
		return len(f.upstream.sentFrames()) == 1
	})

	// 4096 samples at 48 kHz decimate 3:1 to 1365 samples at 16 kHz,
	// 2 bytes each on the wire.
	frame := f.upstream.sentFrames()[0]
	raw, err := audio.DecodeBase64(frame)
	if err != nil {
		t.Fatalf("frame is not base64: %v", err)
	}
	if len(raw) != 1365*2 {
		t.Fatalf("frame bytes=%d, want %d", len(raw), 1365*2)
	}
}

func TestBridge_MicActivityTracksCaptureEnergy(t *testing.T) {
	f := newBridgeFixture(t)
	if err := f.bridge.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer f.bridge.Disconnect()

	loud := make([]float32, 4096)
	for i := range loud {
		loud[i] = 0.5
	}
	f.capture.deliver(loud)
	if got := f.bridge.Status(); !got.MicActive {
		t.Fatalf("status=%+v, want mic active after loud block", got)
	}

	f.capture.deliver(make([]float32, 4096))
	if got := f.bridge.Status(); got.MicActive {
		t.Fatalf("status=%+v, want mic inactive after silence", got)
	}
}

func TestBridge_MicPermissionDeniedStaysIdle(t *testing.T) {
	f := newBridgeFixture(t)
	f.capture.resumeErr = errors.New("device refused")

	err := f.bridge.Connect(context.Background())
	if err == nil {
		t.Fatal("expected permission error")
	}
	if !core.IsType(err, core.ErrPermission) {
		t.Fatalf("error type=%v, want permission_error", err)
	}
	if got := f.bridge.Status().State; got != StateIdle {
		t.Fatalf("state=%v, want idle for retry", got)
	}

	// The user may retry connect after granting access.
	f.capture.resumeErr = nil
	if err := f.bridge.Connect(context.Background()); err != nil {
		t.Fatalf("retry connect: %v", err)
	}
	f.bridge.Disconnect()
}

func TestBridge_DialFailureCloses(t *testing.T) {
	f := newBridgeFixture(t)
	dialErr := core.NewTransportError("handshake refused", nil)
	b, err := New(Options{
		Capture:  f.capture,
		Playback: f.playback,
		Dial:     func(context.Context) (Upstream, error) { return nil, dialErr },
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}

	if err := b.Connect(context.Background()); !core.IsType(err, core.ErrTransport) {
		t.Fatalf("connect err=%v, want transport_error", err)
	}
	if got := b.Status(); got.State != StateClosed || got.Err == "" {
		t.Fatalf("status=%+v, want closed with message", got)
	}
}

func TestBridge_InboundAudioSchedulesAndTalks(t *testing.T) {
	f := newBridgeFixture(t)
	if err := f.bridge.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer f.bridge.Disconnect()

	// 100 ms of 24 kHz PCM.
	pcm := audio.EncodePCM16(make([]float32, 2400))
	f.upstream.events <- genlive.AudioDeltaEvent{Data: pcm}

	waitFor(t, "buffer scheduled", func() bool {
		return len(f.playback.sources()) == 1
	})
	if got := f.bridge.Status(); !got.IsTalking {
		t.Fatalf("status=%+v, want talking", got)
	}

	// Natural completion of the last buffer ends talking.
	f.playback.sources()[0].done()
	waitFor(t, "talking to clear", func() bool {
		return !f.bridge.Status().IsTalking
	})
}

func TestBridge_MalformedAudioDeltaIsContained(t *testing.T) {
	f := newBridgeFixture(t)
	if err := f.bridge.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer f.bridge.Disconnect()

	f.upstream.events <- genlive.AudioDeltaEvent{Data: "!!not-base64!!"}
	f.upstream.events <- genlive.AudioDeltaEvent{Data: audio.EncodePCM16(make([]float32, 240))}

	waitFor(t, "good buffer scheduled", func() bool {
		return len(f.playback.sources()) == 1
	})
	if got := f.bridge.Status(); got.State != StateOpen {
		t.Fatalf("state=%v, decode failure must not close the session", got.State)
	}
}

func TestBridge_InterruptionPreemptsPlayback(t *testing.T) {
	f := newBridgeFixture(t)
	if err := f.bridge.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer f.bridge.Disconnect()

	pcm := audio.EncodePCM16(make([]float32, 2400))
	for i := 0; i < 3; i++ {
		f.upstream.events <- genlive.AudioDeltaEvent{Data: pcm}
	}
	waitFor(t, "three buffers queued", func() bool {
		return f.bridge.sched.ActiveCount() == 3
	})

	f.upstream.events <- genlive.InterruptedEvent{}
	waitFor(t, "queue cleared", func() bool {
		return f.bridge.sched.ActiveCount() == 0
	})
	if got := f.bridge.sched.Cursor(); got != 0 {
		t.Fatalf("cursor=%f after interruption, want 0", got)
	}
	if f.bridge.Status().IsTalking {
		t.Fatal("talking should clear on interruption")
	}
	for i, src := range f.playback.sources() {
		if !src.stopped {
			t.Fatalf("source %d still playing after interruption", i)
		}
	}
}

func TestBridge_TranscriptDeltasForwardInOrder(t *testing.T) {
	f := newBridgeFixture(t)
	if err := f.bridge.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer f.bridge.Disconnect()

	f.upstream.events <- genlive.TranscriptDeltaEvent{Text: "one", IsUser: true}
	f.upstream.events <- genlive.TranscriptDeltaEvent{Text: "two", IsUser: false}
	f.upstream.events <- genlive.TranscriptDeltaEvent{Text: "three", IsUser: true}

	waitFor(t, "transcripts forwarded", func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.transcripts) == 3
	})
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, want := range []string{"one", "two", "three"} {
		if f.transcripts[i] != want {
			t.Fatalf("transcripts[%d]=%q, want %q", i, f.transcripts[i], want)
		}
	}
}

func TestBridge_RemoteFailureTearsDownOnce(t *testing.T) {
	f := newBridgeFixture(t)
	if err := f.bridge.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	f.upstream.failWith(core.NewTransportError("connection reset", nil))

	waitFor(t, "bridge closed", func() bool {
		return f.bridge.Status().State == StateClosed
	})
	if got := f.bridge.Status().Err; got == "" {
		t.Fatal("transport failure must surface a message")
	}

	f.mu.Lock()
	closed := len(f.closedErrs)
	f.mu.Unlock()
	if closed != 1 {
		t.Fatalf("onClosed fired %d times, want 1", closed)
	}

	// Disconnect after a remote failure is a no-op, not a second teardown.
	f.bridge.Disconnect()
	f.mu.Lock()
	closed = len(f.closedErrs)
	f.mu.Unlock()
	if closed != 1 {
		t.Fatalf("onClosed fired %d times after disconnect, want 1", closed)
	}
	if got := f.capture.closed; got != 1 {
		t.Fatalf("capture closed %d times, want 1", got)
	}
}

func TestBridge_OnClosedMayCallDisconnect(t *testing.T) {
	capture := newFakeCapture(48000)
	playback := newFakePlayback()
	upstream := newFakeUpstream()

	// A closed handler that turns around and asks for disconnect again,
	// the way an orchestrator finishing the session does.
	var b *Bridge
	handlerDone := make(chan error, 1)
	b, err := New(Options{
		Capture:  capture,
		Playback: playback,
		Dial:     func(context.Context) (Upstream, error) { return upstream, nil },
		OnClosed: func(cause error) {
			b.Disconnect()
			handlerDone <- cause
		},
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	upstream.failWith(core.NewTransportError("connection reset", nil))

	select {
	case cause := <-handlerDone:
		if cause == nil {
			t.Fatal("transport failure must be reported to the handler")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onClosed handler never returned; teardown must tolerate reentrant disconnect")
	}

	waitFor(t, "bridge closed", func() bool {
		return b.Status().State == StateClosed
	})
	if got := capture.closed; got != 1 {
		t.Fatalf("capture closed %d times, want 1", got)
	}
}

func TestBridge_CaptureStartFailureCloses(t *testing.T) {
	f := newBridgeFixture(t)
	f.capture.startErr = errors.New("device busy")

	err := f.bridge.Connect(context.Background())
	if !core.IsType(err, core.ErrTransport) {
		t.Fatalf("connect err=%v, want transport_error", err)
	}
	if got := f.bridge.Status().State; got != StateClosed {
		t.Fatalf("state=%v, want closed after stream start failure", got)
	}
}

func TestBridge_DisconnectBeforeConnectIsNoop(t *testing.T) {
	f := newBridgeFixture(t)
	f.bridge.Disconnect()
	if got := f.bridge.Status().State; got != StateIdle {
		t.Fatalf("state=%v, want idle", got)
	}
	if f.capture.closed != 0 {
		t.Fatal("disconnect before connect must not touch the capture device")
	}
}

func TestBridge_DisconnectReleasesResources(t *testing.T) {
	f := newBridgeFixture(t)
	if err := f.bridge.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	f.bridge.Disconnect()
	f.bridge.Disconnect()

	if got := f.bridge.Status().State; got != StateClosed {
		t.Fatalf("state=%v, want closed", got)
	}
	if f.capture.closed != 1 {
		t.Fatalf("capture closed %d times, want exactly 1", f.capture.closed)
	}
	if !f.playback.closed {
		t.Fatal("playback context not released")
	}
	f.upstream.mu.Lock()
	upClosed := f.upstream.closed
	f.upstream.mu.Unlock()
	if upClosed == 0 {
		t.Fatal("upstream session not released")
	}
}
