package bridge

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/fluentvoice/fluentvoice/pkg/audio"
)

// fakePlayback is a playback context with a manually advanced clock.
type fakePlayback struct {
	mu      sync.Mutex
	now     float64
	rate    int
	plays   []*fakeSource
	closed  bool
	resumed bool
}

type fakeSource struct {
	start    float64
	duration float64
	done     func()
	stopped  bool
}

func (s *fakeSource) Stop() { s.stopped = true }

func newFakePlayback() *fakePlayback {
	return &fakePlayback{rate: 24000}
}

func (p *fakePlayback) SampleRate() int { return p.rate }

func (p *fakePlayback) Resume(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumed = true
	return nil
}

func (p *fakePlayback) Now() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

func (p *fakePlayback) advance(seconds float64) {
	p.mu.Lock()
	p.now += seconds
	p.mu.Unlock()
}

func (p *fakePlayback) Play(buf *audio.Buffer, at float64, done func()) (Source, error) {
	src := &fakeSource{start: at, duration: buf.Duration().Seconds(), done: done}
	p.mu.Lock()
	p.plays = append(p.plays, src)
	p.mu.Unlock()
	return src, nil
}

func (p *fakePlayback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayback) sources() []*fakeSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeSource(nil), p.plays...)
}

func bufferOfSeconds(t *testing.T, seconds float64) *audio.Buffer {
	t.Helper()
	return &audio.Buffer{
		Samples:    make([]float32, int(seconds*24000)),
		SampleRate: 24000,
		Channels:   1,
	}
}

func TestScheduler_GaplessCursorAdvance(t *testing.T) {
	pb := newFakePlayback()
	s := newScheduler(pb, nil)
	s.ResetCursor()

	durations := []float64{0.25, 0.5, 0.125}
	for _, d := range durations {
		if err := s.Schedule(bufferOfSeconds(t, d)); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}

	if got, want := s.Cursor(), 0.875; math.Abs(got-want) > 1e-9 {
		t.Fatalf("cursor=%f, want %f", got, want)
	}

	// Successive windows must neither overlap nor leave gaps.
	srcs := pb.sources()
	if len(srcs) != 3 {
		t.Fatalf("scheduled=%d, want 3", len(srcs))
	}
	for i := 1; i < len(srcs); i++ {
		prevEnd := srcs[i-1].start + srcs[i-1].duration
		if math.Abs(srcs[i].start-prevEnd) > 1e-9 {
			t.Fatalf("source %d starts at %f, previous ends at %f", i, srcs[i].start, prevEnd)
		}
	}
}

func TestScheduler_LateArrivalStartsAtNow(t *testing.T) {
	pb := newFakePlayback()
	s := newScheduler(pb, nil)
	s.ResetCursor()

	if err := s.Schedule(bufferOfSeconds(t, 0.1)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	// The clock runs past the queued audio before the next buffer arrives.
	pb.advance(1.0)
	if err := s.Schedule(bufferOfSeconds(t, 0.1)); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	srcs := pb.sources()
	if got := srcs[1].start; math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("late buffer starts at %f, want 1.0", got)
	}
	if got, want := s.Cursor(), 1.1; math.Abs(got-want) > 1e-9 {
		t.Fatalf("cursor=%f, want %f", got, want)
	}
}

func TestScheduler_InterruptStopsEverythingAndZerosCursor(t *testing.T) {
	pb := newFakePlayback()
	s := newScheduler(pb, nil)
	s.ResetCursor()

	for i := 0; i < 3; i++ {
		if err := s.Schedule(bufferOfSeconds(t, 0.2)); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	if got := s.ActiveCount(); got != 3 {
		t.Fatalf("active=%d, want 3", got)
	}

	s.Interrupt()

	if got := s.ActiveCount(); got != 0 {
		t.Fatalf("active after interrupt=%d, want 0", got)
	}
	if got := s.Cursor(); got != 0 {
		t.Fatalf("cursor after interrupt=%f, want 0", got)
	}
	for i, src := range pb.sources() {
		if !src.stopped {
			t.Fatalf("source %d not stopped", i)
		}
	}
}

func TestScheduler_IdleFiresWhenQueueEmpties(t *testing.T) {
	pb := newFakePlayback()
	var idle int
	s := newScheduler(pb, func() { idle++ })
	s.ResetCursor()

	_ = s.Schedule(bufferOfSeconds(t, 0.1))
	_ = s.Schedule(bufferOfSeconds(t, 0.1))

	srcs := pb.sources()
	srcs[0].done()
	if idle != 0 {
		t.Fatalf("idle fired with a live source remaining")
	}
	srcs[1].done()
	if idle != 1 {
		t.Fatalf("idle fired %d times, want 1", idle)
	}

	// Completion after an interrupt must not fire idle again.
	_ = s.Schedule(bufferOfSeconds(t, 0.1))
	s.Interrupt()
	pb.sources()[2].done()
	if idle != 1 {
		t.Fatalf("idle fired %d times after interrupt, want 1", idle)
	}
}
