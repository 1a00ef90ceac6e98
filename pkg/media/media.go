// Package media defines the seams between the translation engine and the host
// softphone: where call audio comes from, where translated audio goes, and how
// capability negotiation rides the signaling path.
package media

import (
	"time"

	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/negotiate"
)

// MediaTransport is the call-audio boundary. LocalCaptured yields microphone
// audio before encoding; RemoteDecoded yields far-end audio after decoding.
// Inject replaces the corresponding stream with translated audio; the original
// is never mixed in.
type MediaTransport interface {
	LocalCaptured() <-chan frames.AudioFrame
	RemoteDecoded() <-chan frames.AudioFrame

	// InjectOutgoing sends translated local speech toward the remote party.
	InjectOutgoing(frame frames.AudioFrame) error
	// InjectIncoming plays translated remote speech to the local party.
	InjectIncoming(frame frames.AudioFrame) error

	// Format declares the wire format of captured and injected audio.
	Format() frames.PCMFormat
}

// SignalingHooks reads and writes translation capability fields on call setup
// messages. Implementations map these to whatever the signaling stack carries
// (SIP headers, SDP attributes, or a proprietary envelope).
type SignalingHooks interface {
	ReadRemoteCapability(headers map[string]string) negotiate.Capability
	WriteLocalCapability(headers map[string]string, capability negotiate.Capability)
}

// RecordingSession is the metadata record for one recorded call.
type RecordingSession struct {
	ID             string    `json:"id"`
	CallID         string    `json:"call_id"`
	StartedAt      time.Time `json:"started_at"`
	StoppedAt      time.Time `json:"stopped_at,omitempty"`
	SourceLanguage string    `json:"source_language,omitempty"`
	TargetLanguage string    `json:"target_language,omitempty"`
	Path           string    `json:"path"`
	Files          []string  `json:"files,omitempty"`
}

// SessionStore persists recording session metadata.
type SessionStore interface {
	Put(session RecordingSession) error
	Get(id string) (RecordingSession, bool)
	List() []RecordingSession
	Delete(id string) error
}
