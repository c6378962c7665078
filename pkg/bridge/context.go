package bridge

import (
	"context"

	"github.com/fluentvoice/fluentvoice/pkg/audio"
	"github.com/fluentvoice/fluentvoice/pkg/genlive"
)

// CaptureContext is the microphone side of the bridge. Implementations
// deliver fixed-size blocks of mono float samples at the device's native
// rate on their own cadence; a slow consumer must never be allowed to stall
// the device callback.
type CaptureContext interface {
	// SampleRate returns the device's native capture rate.
	SampleRate() int

	// Resume brings a suspended context to running before capture starts.
	Resume(ctx context.Context) error

	// Start begins delivering capture blocks. A denied microphone maps to
	// a permission error.
	Start(onBlock func(samples []float32)) error

	// Close releases the device and the underlying stream.
	Close() error
}

// Source is one scheduled playback buffer that can be preempted.
type Source interface {
	Stop()
}

// PlaybackContext is the speaker side of the bridge. It owns a monotonic
// clock (seconds of context time) against which buffers are scheduled.
type PlaybackContext interface {
	// SampleRate returns the fixed output rate.
	SampleRate() int

	// Resume brings a suspended context to running before scheduling.
	Resume(ctx context.Context) error

	// Now returns the current context time in seconds.
	Now() float64

	// Play schedules buf to start at the given context time and invokes
	// done when the buffer finishes naturally. Stopping the returned
	// source must suppress the done callback.
	Play(buf *audio.Buffer, at float64, done func()) (Source, error)

	// Close releases the context and stops any pending timers.
	Close() error
}

// Upstream is the duplex connection to the generative-audio endpoint.
// *genlive.Session satisfies it; tests substitute fakes.
type Upstream interface {
	Events() <-chan genlive.Event
	SendAudio(data string) error
	Close() error
	Err() error
}

// Dialer opens the upstream session during Connect.
type Dialer func(ctx context.Context) (Upstream, error)
