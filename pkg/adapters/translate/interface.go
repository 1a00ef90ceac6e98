package translate

import (
	"context"
	"time"

	"github.com/andratama/lisan/pkg/frames"
)

// TurnDetection configures the provider's server-side speech turn detector.
type TurnDetection struct {
	Type              string
	Threshold         float64
	PrefixPaddingMS   int
	SilenceDurationMS int
}

// Config is the immutable configuration of one directional provider session.
// Reconfiguring means creating a new session, never mutating a live one.
type Config struct {
	CallID         string
	SessionID      string
	Direction      frames.Direction
	SourceLanguage string
	TargetLanguage string
	Voice          string
	Instructions   string
	Format         frames.PCMFormat
	TurnDetection  TurnDetection
	ConnectTimeout time.Duration
}

// StateChange is emitted whenever a session moves between states.
type StateChange struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// Session is one directional, stateful connection to a translation provider.
// Implementations own their network lifecycle. Connect does not retry
// internally; callers apply their own backoff policy.
type Session interface {
	// Connect opens the streaming connection and sends the session
	// configuration. Bounded by Config.ConnectTimeout; never hangs.
	Connect(ctx context.Context) error
	// SendAudio appends a canonical frame to the provider input buffer.
	// Valid in Ready, DetectingSpeech and Processing; a logged no-op
	// in any other state.
	SendAudio(frame frames.AudioFrame) error
	// Disconnect closes the connection. Idempotent, callable from any state.
	Disconnect() error
	// State returns the current lifecycle state.
	State() State

	// Audio streams synthesized translated audio in the canonical format.
	// Consumers convert it before playback or injection.
	Audio() <-chan frames.AudioFrame
	// Transcripts streams partial and final transcript events.
	Transcripts() <-chan frames.TranscriptFrame
	// StateChanges streams lifecycle transitions.
	StateChanges() <-chan StateChange
	// Errors streams connection and provider errors.
	Errors() <-chan error
}

// Provider builds sessions. One provider instance serves many calls.
type Provider interface {
	Name() string
	NewSession(cfg Config) Session
}
