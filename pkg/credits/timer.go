// Package credits tracks the remaining session time budget and keeps it
// loosely synchronized with persistent storage.
package credits

import (
	"context"
	"sync"
	"time"
)

const (
	tickInterval      = time.Second
	reconcileInterval = 10 * time.Second

	// driftThreshold bounds data loss on ungraceful termination to at most
	// 5 seconds of usage without persisting every tick.
	driftThreshold = 5
)

// Timer decrements a remaining-seconds budget once per second while running
// and pushes the value to storage when it has drifted far enough from the
// last persisted value. Reaching zero stops the countdown and fires the
// exhausted callback exactly once.
type Timer struct {
	mu         sync.Mutex
	remaining  int
	lastSynced int
	paused     bool
	exhausted  bool
	finished   bool

	onTick      func(remaining int)
	onExhausted func()
	sync        func(seconds int)
}

// Options configure a Timer. Sync is the fire-and-forget push to persistent
// storage; the timer never retries it.
type Options struct {
	OnTick      func(remaining int)
	OnExhausted func()
	Sync        func(seconds int)
}

// New creates a Timer starting from remaining seconds, which is also taken
// as the last persisted value.
func New(remaining int, opts Options) *Timer {
	if remaining < 0 {
		remaining = 0
	}
	return &Timer{
		remaining:   remaining,
		lastSynced:  remaining,
		onTick:      opts.OnTick,
		onExhausted: opts.OnExhausted,
		sync:        opts.Sync,
	}
}

// Run drives the one-second countdown and the slower reconciliation loop
// until ctx is cancelled or the budget is exhausted.
func (t *Timer) Run(ctx context.Context) {
	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	reconcile := time.NewTicker(reconcileInterval)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if t.Tick() == 0 && t.Exhausted() {
				return
			}
		case <-reconcile.C:
			t.Reconcile()
		}
	}
}

// Pause suspends the countdown, e.g. while a blocking modal is shown.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
}

// Resume re-enables the countdown.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
}

// Tick consumes one second of credit and returns the new remaining value.
// Hitting zero syncs immediately, bypassing the drift threshold, and fires
// the exhausted callback once.
func (t *Timer) Tick() int {
	t.mu.Lock()
	if t.paused || t.exhausted || t.finished {
		remaining := t.remaining
		t.mu.Unlock()
		return remaining
	}
	if t.remaining > 0 {
		t.remaining--
	}
	remaining := t.remaining
	var fireExhausted bool
	var syncFn func(int)
	if remaining == 0 {
		t.exhausted = true
		t.lastSynced = 0
		fireExhausted = true
		syncFn = t.sync
	}
	onTick := t.onTick
	t.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if syncFn != nil {
		syncFn(0)
	}
	if fireExhausted && t.onExhausted != nil {
		t.onExhausted()
	}
	return remaining
}

// Reconcile pushes the current value to storage when the drift since the
// last persisted value is at least the threshold.
func (t *Timer) Reconcile() {
	t.mu.Lock()
	drift := t.lastSynced - t.remaining
	if drift < driftThreshold || t.sync == nil {
		t.mu.Unlock()
		return
	}
	remaining := t.remaining
	t.lastSynced = remaining
	syncFn := t.sync
	t.mu.Unlock()

	syncFn(remaining)
}

// Finish syncs the current value unconditionally. Called once at session
// end; later calls are no-ops.
func (t *Timer) Finish() {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	remaining := t.remaining
	t.lastSynced = remaining
	syncFn := t.sync
	t.mu.Unlock()

	if syncFn != nil {
		syncFn(remaining)
	}
}

// Remaining returns the current budget in seconds.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Exhausted reports whether the budget has reached zero.
func (t *Timer) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exhausted
}
