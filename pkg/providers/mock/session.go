// Package mock provides a scripted translation session for tests and local
// development. It exercises the full session state machine without any
// network dependency.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/andratama/lisan/pkg/adapters/translate"
	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
)

// Script describes the canned behavior of a mock session.
type Script struct {
	// ConnectErr, when set, makes Connect fail and land the session in ERROR.
	ConnectErr error
	// FramesPerTurn is how many audio frames trigger one scripted response
	// cycle. Defaults to 5.
	FramesPerTurn int
	// FailAfterFrames, when positive, emits a provider error and moves the
	// session to ERROR once that many frames have been sent.
	FailAfterFrames int
	// TranslatedAudio is the payload emitted per completed turn. Defaults to
	// 20ms of canonical silence.
	TranslatedAudio []byte
	// Transcript is the final source transcript emitted per turn.
	Transcript string
}

type Provider struct {
	script Script
}

func NewProvider(script Script) *Provider {
	if script.FramesPerTurn <= 0 {
		script.FramesPerTurn = 5
	}
	if script.Transcript == "" {
		script.Transcript = "mock transcript"
	}
	return &Provider{script: script}
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) NewSession(cfg translate.Config) translate.Session {
	if cfg.Format.SampleRate == 0 {
		cfg.Format = frames.Canonical16K
	}
	return &Session{
		script:      p.script,
		cfg:         cfg,
		machine:     translate.NewStateMachine(),
		audioOut:    make(chan frames.AudioFrame, 64),
		transcripts: make(chan frames.TranscriptFrame, 64),
		errs:        make(chan error, 16),
	}
}

// Session walks the real transition table in response to audio, synchronously
// in SendAudio, which keeps tests deterministic.
type Session struct {
	script Script
	cfg    translate.Config

	machine *translate.StateMachine

	mu     sync.Mutex
	sent   int
	failed bool

	audioOut    chan frames.AudioFrame
	transcripts chan frames.TranscriptFrame
	errs        chan error
}

func (s *Session) State() translate.State                     { return s.machine.Current() }
func (s *Session) Audio() <-chan frames.AudioFrame            { return s.audioOut }
func (s *Session) Transcripts() <-chan frames.TranscriptFrame { return s.transcripts }
func (s *Session) StateChanges() <-chan translate.StateChange { return s.machine.Events() }
func (s *Session) Errors() <-chan error                       { return s.errs }

func (s *Session) Connect(ctx context.Context) error {
	if err := s.machine.Transition(translate.StateConnecting, "connect"); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonProviderConnect)
	}
	if s.script.ConnectErr != nil {
		_ = s.machine.Transition(translate.StateError, "scripted connect failure")
		return errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrConnection, s.script.ConnectErr), errorsx.ReasonProviderConnect)
	}
	if ctx != nil && ctx.Err() != nil {
		_ = s.machine.Transition(translate.StateError, "context cancelled")
		return errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrConnection, ctx.Err()), errorsx.ReasonProviderConnect)
	}
	return s.machine.Transition(translate.StateReady, "session.created")
}

func (s *Session) SendAudio(frame frames.AudioFrame) error {
	if !s.machine.Current().CanSendAudio() {
		return nil
	}

	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return nil
	}
	s.sent++
	sent := s.sent
	if s.script.FailAfterFrames > 0 && sent >= s.script.FailAfterFrames {
		s.failed = true
		s.mu.Unlock()
		_ = s.machine.Transition(translate.StateError, "scripted failure")
		s.emitError(errorsx.Wrap(fmt.Errorf("%w: scripted failure after %d frames", errorsx.ErrProvider, sent), errorsx.ReasonProviderEvent))
		return nil
	}
	s.mu.Unlock()

	_ = s.machine.Transition(translate.StateDetectingSpeech, "speech started")
	if sent%s.script.FramesPerTurn == 0 {
		s.completeTurn()
	}
	return nil
}

// completeTurn plays one scripted response: processing, translated audio, a
// final transcript, then back to ready.
func (s *Session) completeTurn() {
	_ = s.machine.Transition(translate.StateProcessing, "speech stopped")

	payload := s.script.TranslatedAudio
	if payload == nil {
		payload = make([]byte, s.cfg.Format.BytesPerSecond()/50)
	}
	audio := frames.NewAudioFrame(s.cfg.SessionID, payload, s.cfg.Format, s.cfg.Direction, map[string]string{
		frames.MetaCallID:         s.cfg.CallID,
		frames.MetaSource:         "provider",
		frames.MetaSourceLanguage: s.cfg.SourceLanguage,
		frames.MetaTargetLanguage: s.cfg.TargetLanguage,
	})
	select {
	case s.audioOut <- audio:
	default:
	}

	transcript := frames.NewTranscriptFrame(s.cfg.SessionID, s.script.Transcript, true, 0.95, s.cfg.SourceLanguage, map[string]string{
		frames.MetaCallID:    s.cfg.CallID,
		frames.MetaDirection: string(s.cfg.Direction),
		frames.MetaSource:    "provider",
	})
	select {
	case s.transcripts <- transcript:
	default:
	}

	_ = s.machine.Transition(translate.StateReady, "response done")
}

func (s *Session) Disconnect() error {
	s.machine.ForceIdle("disconnect")
	s.mu.Lock()
	s.sent = 0
	s.failed = false
	s.mu.Unlock()
	return nil
}

func (s *Session) emitError(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

var _ translate.Session = (*Session)(nil)
var _ translate.Provider = (*Provider)(nil)
