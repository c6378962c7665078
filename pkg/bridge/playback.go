package bridge

import (
	"sync"

	"github.com/fluentvoice/fluentvoice/pkg/audio"
)

// scheduler owns the playback queue: the set of live sources and the
// monotonic nextStart cursor. Each new buffer starts at
// max(nextStart, now) and advances the cursor by exactly its duration,
// which keeps playback gapless and non-overlapping without any further
// drift correction.
//
// All mutations happen on the bridge's inbound-message path (scheduling,
// interruption) or on a source's completion callback; the mutex makes each
// mutation atomic.
type scheduler struct {
	ctx PlaybackContext

	mu        sync.Mutex
	nextStart float64
	live      map[int64]Source
	nextID    int64

	// onIdle fires when the live set empties through natural completion.
	onIdle func()
}

func newScheduler(ctx PlaybackContext, onIdle func()) *scheduler {
	return &scheduler{
		ctx:    ctx,
		live:   make(map[int64]Source),
		onIdle: onIdle,
	}
}

// ResetCursor aligns the cursor with the context clock. Called when the
// session opens.
func (s *scheduler) ResetCursor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextStart = s.ctx.Now()
}

// Schedule queues one decoded buffer for gapless playback.
func (s *scheduler) Schedule(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.nextStart
	if now := s.ctx.Now(); now > start {
		start = now
	}

	s.nextID++
	id := s.nextID
	src, err := s.ctx.Play(buf, start, func() { s.complete(id) })
	if err != nil {
		return err
	}
	s.live[id] = src
	s.nextStart = start + buf.Duration().Seconds()
	return nil
}

func (s *scheduler) complete(id int64) {
	s.mu.Lock()
	if _, ok := s.live[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.live, id)
	idle := len(s.live) == 0
	onIdle := s.onIdle
	s.mu.Unlock()

	if idle && onIdle != nil {
		onIdle()
	}
}

// Interrupt preempts every live source, in-flight ones included, clears the
// queue, and resets the cursor to zero.
func (s *scheduler) Interrupt() {
	s.mu.Lock()
	sources := make([]Source, 0, len(s.live))
	for _, src := range s.live {
		sources = append(sources, src)
	}
	s.live = make(map[int64]Source)
	s.nextStart = 0
	s.mu.Unlock()

	for _, src := range sources {
		src.Stop()
	}
}

// Cursor returns the current nextStart value in context seconds.
func (s *scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// ActiveCount returns the number of live sources.
func (s *scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
