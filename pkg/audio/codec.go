package audio

import (
	"encoding/base64"
	"time"

	"github.com/fluentvoice/fluentvoice/pkg/core"
)

// EncodePCM16 quantizes normalized float samples to 16-bit signed
// little-endian PCM and returns the base64 wire payload. Samples outside
// [-1, 1] are clamped. Quantization is the only loss. A zero-length input
// yields an empty payload.
func EncodePCM16(samples []float32) string {
	if len(samples) == 0 {
		return ""
	}
	raw := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		raw[i*2] = byte(s)
		raw[i*2+1] = byte(s >> 8)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeBase64 decodes a base64 text payload into raw bytes.
func DecodeBase64(payload string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, core.NewFormatError("malformed base64 payload", err)
	}
	return raw, nil
}

// Buffer is a decoded block of playable audio at a fixed rate.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(float64(frames) / float64(b.SampleRate) * float64(time.Second))
}

// DecodeBuffer interprets raw bytes as 16-bit signed little-endian PCM at
// the given rate and channel count and converts them to normalized float
// samples ready for scheduling.
func DecodeBuffer(raw []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, core.NewDecodeError("sample rate must be positive", nil)
	}
	if channels <= 0 {
		return nil, core.NewDecodeError("channel count must be positive", nil)
	}
	if len(raw)%(2*channels) != 0 {
		return nil, core.NewDecodeError("PCM byte length is not a multiple of the frame size", nil)
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}
