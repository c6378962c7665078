// Package media implements the bridge's audio device contexts on real
// hardware: malgo for microphone capture and oto for speaker playback.
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

const (
	// captureBlockSize is the number of samples delivered per capture
	// block, roughly 85ms at 48kHz.
	captureBlockSize = 4096

	defaultCaptureRate = 48000
)

// Capture reads mono samples from the default microphone and delivers them
// in fixed-size blocks on the device callback cadence.
type Capture struct {
	rate int

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	pending []float32
	onBlock func([]float32)
	closed  bool
}

// CaptureOptions configure the microphone device.
type CaptureOptions struct {
	// SampleRate is the native capture rate. Defaults to 48000.
	SampleRate int
}

// NewCapture creates an unopened capture context. The device is not touched
// until Resume.
func NewCapture(opts CaptureOptions) *Capture {
	rate := opts.SampleRate
	if rate <= 0 {
		rate = defaultCaptureRate
	}
	return &Capture{
		rate:    rate,
		pending: make([]float32, 0, captureBlockSize),
	}
}

// SampleRate returns the native capture rate.
func (c *Capture) SampleRate() int { return c.rate }

// Resume initializes the audio backend. This is the point where the OS may
// deny microphone access.
func (c *Capture) Resume(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("capture context is closed")
	}
	if c.ctx != nil {
		return nil
	}
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime
	mctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return fmt.Errorf("init capture backend: %w", err)
	}
	c.ctx = mctx
	return nil
}

// Start opens the microphone and begins delivering blocks. The device
// callback must stay fast: samples are converted and buffered, and onBlock
// fires once per full block.
func (c *Capture) Start(onBlock func(samples []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return fmt.Errorf("capture context not resumed")
	}
	if c.device != nil {
		return fmt.Errorf("capture already started")
	}
	c.onBlock = onBlock

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.rate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			c.onDeviceData(input)
		},
	}
	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start microphone: %w", err)
	}
	c.device = device
	return nil
}

// onDeviceData converts raw s16le bytes to float samples and emits full
// blocks.
func (c *Capture) onDeviceData(input []byte) {
	c.mu.Lock()
	for i := 0; i+1 < len(input); i += 2 {
		v := int16(input[i]) | int16(input[i+1])<<8
		c.pending = append(c.pending, float32(v)/32768.0)
	}
	var blocks [][]float32
	for len(c.pending) >= captureBlockSize {
		block := make([]float32, captureBlockSize)
		copy(block, c.pending[:captureBlockSize])
		c.pending = c.pending[captureBlockSize:]
		blocks = append(blocks, block)
	}
	onBlock := c.onBlock
	c.mu.Unlock()

	if onBlock == nil {
		return
	}
	for _, block := range blocks {
		onBlock(block)
	}
}

// Close stops the device and releases the backend.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
	return nil
}
