package media

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/fluentvoice/fluentvoice/pkg/audio"
	"github.com/fluentvoice/fluentvoice/pkg/bridge"
)

const defaultPlaybackRate = 24000

// Playback schedules decoded buffers onto the speaker against a monotonic
// context clock. Each scheduled buffer gets its own player so an
// interruption can preempt any of them individually.
type Playback struct {
	rate int

	ctx   *oto.Context
	ready chan struct{}

	mu     sync.Mutex
	epoch  time.Time
	closed bool
}

// PlaybackOptions configure the speaker device.
type PlaybackOptions struct {
	// SampleRate is the output rate. Defaults to 24000.
	SampleRate int
}

// NewPlayback opens the speaker context. The context may not be ready for
// playback until Resume returns.
func NewPlayback(opts PlaybackOptions) (*Playback, error) {
	rate := opts.SampleRate
	if rate <= 0 {
		rate = defaultPlaybackRate
	}
	// At 24kHz mono 16-bit, 4800 bytes is 100ms: enough to absorb jitter
	// without adding noticeable latency.
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4800,
	})
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &Playback{
		rate:  rate,
		ctx:   otoCtx,
		ready: ready,
		epoch: time.Now(),
	}, nil
}

// SampleRate returns the output rate.
func (p *Playback) SampleRate() int { return p.rate }

// Resume blocks until the speaker context is ready, resetting the clock
// epoch so Now starts near zero.
func (p *Playback) Resume(ctx context.Context) error {
	select {
	case <-p.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	p.epoch = time.Now()
	p.mu.Unlock()
	return nil
}

// Now returns seconds of context time since Resume.
func (p *Playback) Now() float64 {
	p.mu.Lock()
	epoch := p.epoch
	p.mu.Unlock()
	return time.Since(epoch).Seconds()
}

// Play schedules buf to start at the given context time. The done callback
// fires after the buffer's full duration unless the source is stopped first.
func (p *Playback) Play(buf *audio.Buffer, at float64, done func()) (bridge.Source, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("playback context is closed")
	}
	p.mu.Unlock()

	data := pcmBytes(buf.Samples)
	delay := time.Duration((at - p.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}

	src := &playerSource{octx: p.ctx, data: data, duration: buf.Duration(), done: done}
	src.startTimer = time.AfterFunc(delay, src.begin)
	return src, nil
}

// Close suspends the speaker. oto contexts have no teardown; suspending
// stops the output stream.
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.ctx.Suspend()
}

// playerSource is one scheduled buffer: a start timer, a player, and a
// completion timer. Stop at any phase suppresses the rest.
type playerSource struct {
	octx     *oto.Context
	data     []byte
	duration time.Duration
	done     func()

	mu         sync.Mutex
	startTimer *time.Timer
	doneTimer  *time.Timer
	player     *oto.Player
	stopped    bool
}

func (s *playerSource) begin() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.player = s.octx.NewPlayer(bytes.NewReader(s.data))
	s.player.Play()
	s.doneTimer = time.AfterFunc(s.duration, s.finish)
	s.mu.Unlock()
}

func (s *playerSource) finish() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.player != nil {
		_ = s.player.Close()
		s.player = nil
	}
	done := s.done
	s.mu.Unlock()

	if done != nil {
		done()
	}
}

// Stop preempts the source whether it is pending or already playing, and
// suppresses its done callback.
func (s *playerSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.startTimer != nil {
		s.startTimer.Stop()
	}
	if s.doneTimer != nil {
		s.doneTimer.Stop()
	}
	if s.player != nil {
		s.player.Pause()
		_ = s.player.Close()
		s.player = nil
	}
}

// pcmBytes converts float samples to the s16le layout the speaker consumes.
func pcmBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		v := int16(sample * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
