package openairt

import "encoding/json"

// Outbound client events.
const (
	typeSessionUpdate = "session.update"
	typeAudioAppend   = "input_audio_buffer.append"
	typeAudioCommit   = "input_audio_buffer.commit"
	typeAudioClear    = "input_audio_buffer.clear"
)

// Inbound server events.
const (
	typeSessionCreated      = "session.created"
	typeSessionUpdated      = "session.updated"
	typeSpeechStarted       = "input_audio_buffer.speech_started"
	typeSpeechStopped       = "input_audio_buffer.speech_stopped"
	typeBufferCommitted     = "input_audio_buffer.committed"
	typeInputTranscriptDone = "conversation.item.input_audio_transcription.completed"
	typeAudioDelta          = "response.audio.delta"
	typeTranscriptDelta     = "response.audio_transcript.delta"
	typeResponseDone        = "response.done"
	typeError               = "error"
)

type turnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

type sessionConfig struct {
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format"`
	OutputAudioFormat       string               `json:"output_audio_format"`
	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetectionConfig `json:"turn_detection,omitempty"`
}

type sessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type audioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64 pcm16
}

type audioBufferEvent struct {
	Type string `json:"type"`
}

// serverEvent is the union shape of every inbound event; only the fields
// relevant to the event type are populated.
type serverEvent struct {
	Type       string          `json:"type"`
	Delta      string          `json:"delta,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Error      *serverError    `json:"error,omitempty"`
	Session    json.RawMessage `json:"session,omitempty"`
}

type serverError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
