package frames

import (
	"time"
)

type Kind string

const (
	KindAudio      Kind = "audio"
	KindTranscript Kind = "transcript"
	KindControl    Kind = "control"
)

// Direction identifies which leg of the call an audio frame belongs to.
type Direction string

const (
	// DirectionOutgoing is the local microphone leg (local -> remote).
	DirectionOutgoing Direction = "outgoing"
	// DirectionIncoming is the remote decoded leg (remote -> local).
	DirectionIncoming Direction = "incoming"
)

// Encoding names the byte-level representation of audio samples.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm16"
	EncodingPCM8  Encoding = "pcm8"
	EncodingALaw  Encoding = "alaw"
	EncodingMuLaw Encoding = "mulaw"
	EncodingWAV   Encoding = "wav"
)

// PCMFormat declares how the bytes of an AudioFrame are to be interpreted.
type PCMFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Encoding      Encoding
}

// BytesPerSecond returns the raw byte rate of the format.
func (f PCMFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// Canonical8K and Canonical16K are the two transport formats providers accept.
var (
	Canonical8K  = PCMFormat{SampleRate: 8000, Channels: 1, BitsPerSample: 16, Encoding: EncodingPCM16}
	Canonical16K = PCMFormat{SampleRate: 16000, Channels: 1, BitsPerSample: 16, Encoding: EncodingPCM16}
)

type Frame interface {
	Kind() Kind
	Meta() map[string]string
}

// AudioFrame is an immutable, owned chunk of audio. The payload is copied on
// construction so no two pipeline stages ever alias the same backing array.
type AudioFrame struct {
	data      []byte
	format    PCMFormat
	direction Direction
	captured  time.Time
	meta      map[string]string
}

func NewAudioFrame(sessionID string, data []byte, format PCMFormat, direction Direction, meta map[string]string) AudioFrame {
	owned := make([]byte, len(data))
	copy(owned, data)
	return AudioFrame{
		data:      owned,
		format:    format,
		direction: direction,
		captured:  time.Now(),
		meta:      mergeMeta(sessionID, meta),
	}
}

// NewAudioFrameAt builds a frame with an explicit capture timestamp.
func NewAudioFrameAt(sessionID string, data []byte, format PCMFormat, direction Direction, captured time.Time, meta map[string]string) AudioFrame {
	f := NewAudioFrame(sessionID, data, format, direction, meta)
	f.captured = captured
	return f
}

func (a AudioFrame) Kind() Kind              { return KindAudio }
func (a AudioFrame) Meta() map[string]string { return cloneMeta(a.meta) }
func (a AudioFrame) Data() []byte            { return append([]byte(nil), a.data...) }
func (a AudioFrame) RawPayload() []byte      { return a.data }
func (a AudioFrame) Format() PCMFormat       { return a.format }
func (a AudioFrame) Direction() Direction    { return a.direction }
func (a AudioFrame) CapturedAt() time.Time   { return a.captured }

// Duration derives playback length from the payload size and declared format.
func (a AudioFrame) Duration() time.Duration {
	bps := a.format.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(len(a.data)) * time.Second / time.Duration(bps)
}

// TranscriptFrame carries streaming text from a provider session. Zero or more
// partials are followed by exactly one final per speech turn; finals are
// immutable, partials may be superseded.
type TranscriptFrame struct {
	text       string
	final      bool
	confidence float64
	language   string
	at         time.Time
	meta       map[string]string
}

func NewTranscriptFrame(sessionID, text string, final bool, confidence float64, language string, meta map[string]string) TranscriptFrame {
	return TranscriptFrame{
		text:       text,
		final:      final,
		confidence: confidence,
		language:   language,
		at:         time.Now(),
		meta:       mergeMeta(sessionID, meta),
	}
}

func (t TranscriptFrame) Kind() Kind              { return KindTranscript }
func (t TranscriptFrame) Meta() map[string]string { return cloneMeta(t.meta) }
func (t TranscriptFrame) Text() string            { return t.text }
func (t TranscriptFrame) IsFinal() bool           { return t.final }
func (t TranscriptFrame) Confidence() float64     { return t.confidence }
func (t TranscriptFrame) Language() string        { return t.language }
func (t TranscriptFrame) Timestamp() time.Time    { return t.at }

type ControlCode string

const (
	ControlStop        ControlCode = "stop"
	ControlFlush       ControlCode = "flush"
	ControlError       ControlCode = "session_error"
	ControlPassthrough ControlCode = "passthrough"
)

type ControlFrame struct {
	code ControlCode
	meta map[string]string
}

func NewControlFrame(sessionID string, code ControlCode, meta map[string]string) ControlFrame {
	return ControlFrame{code: code, meta: mergeMeta(sessionID, meta)}
}

func (c ControlFrame) Kind() Kind              { return KindControl }
func (c ControlFrame) Meta() map[string]string { return cloneMeta(c.meta) }
func (c ControlFrame) Code() ControlCode       { return c.code }

func mergeMeta(sessionID string, meta map[string]string) map[string]string {
	out := make(map[string]string, 2+len(meta))
	if sessionID != "" {
		out[MetaSessionID] = sessionID
	}
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func cloneMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
