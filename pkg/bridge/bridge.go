// Package bridge owns the duplex realtime audio session: microphone frames
// up to the generative-audio endpoint, audio and transcript deltas down,
// gapless playback, and barge-in handling.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fluentvoice/fluentvoice/pkg/audio"
	"github.com/fluentvoice/fluentvoice/pkg/core"
	"github.com/fluentvoice/fluentvoice/pkg/genlive"
)

// State is the bridge connection state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Status is the opaque snapshot the UI layer consumes.
type Status struct {
	State       State
	IsConnected bool
	IsTalking   bool
	MicActive   bool
	Err         string
}

// Energy levels for the capture meter, on normalized [0,1] samples.
const (
	speechEnergyLevel = 0.015
	clipLevel         = 0.99
)

// Options configure a Bridge.
type Options struct {
	Capture  CaptureContext
	Playback PlaybackContext
	Dial     Dialer
	Logger   *slog.Logger

	// OnTranscript receives every transcript delta in arrival order.
	OnTranscript func(text string, isUser bool)

	// OnClosed fires once when the session ends, with the terminal
	// transport error if the close was not requested.
	OnClosed func(err error)
}

// Bridge is the realtime session state machine. A Bridge drives one session;
// after Disconnect it stays Closed and a new Bridge is needed to reconnect.
// The caller owns retry policy; the bridge never reconnects on its own.
type Bridge struct {
	capture  CaptureContext
	playback PlaybackContext
	dial     Dialer
	logger   *slog.Logger

	onTranscript func(string, bool)
	onClosed     func(error)

	state     atomic.Int32
	talking   atomic.Bool
	micActive atomic.Bool

	mu       sync.Mutex
	upstream Upstream
	errMsg   string

	sched *scheduler

	sendCh   chan string
	sendOnce sync.Once

	teardownOnce sync.Once
	done         chan struct{}
}

// New creates an idle Bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Capture == nil {
		return nil, fmt.Errorf("capture context must not be nil")
	}
	if opts.Playback == nil {
		return nil, fmt.Errorf("playback context must not be nil")
	}
	if opts.Dial == nil {
		return nil, fmt.Errorf("dialer must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		capture:      opts.Capture,
		playback:     opts.Playback,
		dial:         opts.Dial,
		logger:       logger,
		onTranscript: opts.OnTranscript,
		onClosed:     opts.OnClosed,
		sendCh:       make(chan string, 8),
		done:         make(chan struct{}),
	}
	b.sched = newScheduler(opts.Playback, func() { b.talking.Store(false) })
	return b, nil
}

// Connect acquires the audio contexts, opens the upstream session, and
// starts streaming. A microphone permission failure leaves the bridge Idle
// so the user can retry; any transport failure closes it.
func (b *Bridge) Connect(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return fmt.Errorf("connect from state %s", State(b.state.Load()))
	}

	// Both contexts may come up suspended; resume before any streaming.
	if err := b.capture.Resume(ctx); err != nil {
		b.state.Store(int32(StateIdle))
		return core.NewPermissionError("microphone access denied", err)
	}
	if err := b.playback.Resume(ctx); err != nil {
		b.teardown(core.NewTransportError("playback context unavailable", err))
		return core.NewTransportError("playback context unavailable", err)
	}

	up, err := b.dial(ctx)
	if err != nil {
		b.teardown(err)
		return err
	}

	b.mu.Lock()
	b.upstream = up
	b.mu.Unlock()

	// Open: align the playback cursor with the context clock and start
	// the two independent pipelines.
	b.sched.ResetCursor()
	b.state.Store(int32(StateOpen))

	go b.transmitLoop(up)
	go b.receiveLoop(up)

	// Permission was granted at Resume; a device that then refuses to
	// stream is a transport-class failure and the bridge must close, it
	// cannot return to Idle with loops already running.
	if err := b.capture.Start(b.onCaptureBlock); err != nil {
		startErr := core.NewTransportError("start microphone stream", err)
		b.teardown(startErr)
		return startErr
	}
	return nil
}

// onCaptureBlock runs on the capture device cadence. It must never block:
// the frame is resampled, encoded, and handed to the transmit pipeline; if
// the pipeline is backed up the frame is dropped with a log line. Audio is
// lossy-tolerant and capture cadence wins over delivery.
func (b *Bridge) onCaptureBlock(samples []float32) {
	if State(b.state.Load()) != StateOpen {
		return
	}
	b.micActive.Store(audio.RMSEnergy(samples) > speechEnergyLevel)
	if audio.PeakAmplitude(samples) >= clipLevel {
		b.logger.Debug("capture block near full scale, input may clip")
	}
	resampled := audio.Resample(samples, b.capture.SampleRate(), genlive.InputSampleRate)
	payload := audio.EncodePCM16(resampled)
	if payload == "" {
		return
	}
	select {
	case b.sendCh <- payload:
	default:
		b.logger.Warn("transmit pipeline full, dropping capture frame")
	}
}

func (b *Bridge) transmitLoop(up Upstream) {
	for {
		select {
		case <-b.done:
			return
		case payload := <-b.sendCh:
			if err := up.SendAudio(payload); err != nil {
				// Best effort: a failed frame is logged and capture
				// continues.
				b.logger.Warn("transmit audio frame", "error", err)
			}
		}
	}
}

func (b *Bridge) receiveLoop(up Upstream) {
	for event := range up.Events() {
		switch e := event.(type) {
		case genlive.TranscriptDeltaEvent:
			if b.onTranscript != nil {
				b.onTranscript(e.Text, e.IsUser)
			}
		case genlive.AudioDeltaEvent:
			b.handleAudioDelta(e.Data)
		case genlive.InterruptedEvent:
			b.sched.Interrupt()
			b.talking.Store(false)
		case genlive.TurnCompleteEvent:
			// Turn boundaries matter to the assembler, which infers them
			// from transcript roles; nothing to do here.
		}
	}

	// The event stream ended: remote close or transport error.
	err := up.Err()
	if err == nil && State(b.state.Load()) == StateOpen {
		err = core.NewTransportError("session closed by remote endpoint", nil)
	}
	b.teardown(err)
}

// handleAudioDelta decodes one inbound audio delta and queues it. Decode
// failures drop that single buffer and never touch connection state.
func (b *Bridge) handleAudioDelta(data string) {
	raw, err := audio.DecodeBase64(data)
	if err != nil {
		b.logger.Warn("drop audio delta", "error", err)
		return
	}
	buf, err := audio.DecodeBuffer(raw, b.playback.SampleRate(), 1)
	if err != nil {
		b.logger.Warn("drop audio delta", "error", err)
		return
	}
	if err := b.sched.Schedule(buf); err != nil {
		b.logger.Warn("schedule playback buffer", "error", err)
		return
	}
	b.talking.Store(true)
}

// Disconnect tears the session down. Idempotent and safe from any state;
// calling it before Connect, or again after close, is a no-op.
func (b *Bridge) Disconnect() {
	if State(b.state.Load()) == StateIdle {
		return
	}
	b.teardown(nil)
}

// teardown releases every owned resource exactly once: upstream session,
// both audio contexts, the microphone stream, and the playback timers.
// OnClosed fires after the release sequence completes, outside the once
// guard, so the handler may call Disconnect again without deadlocking.
func (b *Bridge) teardown(cause error) {
	var notify func()
	b.teardownOnce.Do(func() {
		prev := State(b.state.Swap(int32(StateClosing)))

		// Stop playback first so stale audio never outlives the session.
		b.sched.Interrupt()
		b.talking.Store(false)
		b.micActive.Store(false)

		b.mu.Lock()
		up := b.upstream
		b.upstream = nil
		if cause != nil {
			b.errMsg = cause.Error()
		}
		b.mu.Unlock()

		if up != nil {
			_ = up.Close()
		}
		if err := b.capture.Close(); err != nil {
			b.logger.Warn("close capture context", "error", err)
		}
		if err := b.playback.Close(); err != nil {
			b.logger.Warn("close playback context", "error", err)
		}
		close(b.done)

		b.state.Store(int32(StateClosed))
		if b.onClosed != nil {
			var reported error
			if cause != nil && prev != StateClosing && prev != StateClosed {
				reported = cause
			}
			notify = func() { b.onClosed(reported) }
		}
	})
	if notify != nil {
		notify()
	}
}

// Status returns the opaque flags the UI layer consumes.
func (b *Bridge) Status() Status {
	state := State(b.state.Load())
	b.mu.Lock()
	errMsg := b.errMsg
	b.mu.Unlock()
	return Status{
		State:       state,
		IsConnected: state == StateOpen,
		IsTalking:   b.talking.Load(),
		MicActive:   b.micActive.Load(),
		Err:         errMsg,
	}
}

// Done is closed when the session has fully torn down.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}
