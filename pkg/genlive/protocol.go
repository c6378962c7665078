package genlive

// Wire types for the bidirectional generate-content websocket endpoint.
// Field names follow the endpoint's JSON contract, so structs here use the
// endpoint's camelCase tags rather than the snake_case used elsewhere.

const (
	// InputSampleRate is the fixed rate the endpoint requires for
	// microphone audio.
	InputSampleRate = 16000

	// OutputSampleRate is the fixed rate of model audio deltas.
	OutputSampleRate = 24000

	inputMIMEType = "audio/pcm;rate=16000"
)

// Blob is a base64-encoded media payload.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one piece of model or user content.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Content is an ordered list of parts.
type Content struct {
	Parts []Part `json:"parts"`
}

// PrebuiltVoiceConfig selects a named synthetic voice.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// VoiceConfig wraps the voice selection.
type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

// SpeechConfig configures audio synthesis.
type SpeechConfig struct {
	VoiceConfig *VoiceConfig `json:"voiceConfig,omitempty"`
}

// GenerationConfig configures the session's response behavior.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// TranscriptionConfig enables transcription for one direction. The empty
// object is the enable signal on the wire.
type TranscriptionConfig struct{}

// Setup is the session establishment frame, sent once after dialing.
type Setup struct {
	Model                    string               `json:"model"`
	GenerationConfig         *GenerationConfig    `json:"generationConfig,omitempty"`
	SystemInstruction        *Content             `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *TranscriptionConfig `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *TranscriptionConfig `json:"outputAudioTranscription,omitempty"`
}

type setupMessage struct {
	Setup *Setup `json:"setup"`
}

// RealtimeInput carries streamed media frames up to the endpoint.
type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks"`
}

type realtimeInputMessage struct {
	RealtimeInput *RealtimeInput `json:"realtimeInput"`
}

// Transcription is an incremental transcript fragment.
type Transcription struct {
	Text string `json:"text"`
}

// ServerContent is the subset of downstream content the pipeline consumes.
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
}

// ServerMessage is the envelope for every downstream frame.
type ServerMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
}

// Event is a typed event emitted by Session.Events().
type Event interface {
	liveEventType() string
}

// AudioDeltaEvent carries one base64 PCM audio delta at OutputSampleRate.
type AudioDeltaEvent struct {
	Data string
}

func (e AudioDeltaEvent) liveEventType() string { return "audio_delta" }

// TranscriptDeltaEvent carries one incremental transcript fragment.
// IsUser distinguishes input (user) from output (model) transcription.
type TranscriptDeltaEvent struct {
	Text   string
	IsUser bool
}

func (e TranscriptDeltaEvent) liveEventType() string { return "transcript_delta" }

// InterruptedEvent signals that the user barged in over model speech and
// local playback must be cancelled immediately.
type InterruptedEvent struct{}

func (e InterruptedEvent) liveEventType() string { return "interrupted" }

// TurnCompleteEvent marks the end of a model turn.
type TurnCompleteEvent struct{}

func (e TurnCompleteEvent) liveEventType() string { return "turn_complete" }
