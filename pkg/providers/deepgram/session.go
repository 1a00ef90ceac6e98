// Package deepgram implements a transcription-only translation session. It
// produces source-language transcripts but no translated audio, which makes it
// useful for captioning calls and for LOCAL_ONLY operation where the far end
// cannot receive translated media anyway.
package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/andratama/lisan/pkg/adapters/translate"
	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/logging"
)

// ProviderConfig carries the credentials and model selection shared by every
// session built from this provider.
type ProviderConfig struct {
	APIKey string
	Model  string
}

type Provider struct {
	cfg ProviderConfig
}

func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string { return "deepgram" }

func (p *Provider) NewSession(cfg translate.Config) translate.Session {
	if cfg.Format.SampleRate == 0 {
		cfg.Format = frames.Canonical16K
	}
	return &Session{
		provider: p.cfg,
		cfg:      cfg,
		machine:  translate.NewStateMachine(),
		logger: logging.NewCallLogger(
			logging.NewComponentLogger(slog.Default(), "deepgram"),
			cfg.CallID, cfg.SessionID),
		audioOut:    make(chan frames.AudioFrame),
		transcripts: make(chan frames.TranscriptFrame, 256),
		errs:        make(chan error, 16),
	}
}

// Session streams audio to the transcription endpoint through an io.Pipe and
// surfaces results via the transcript channel. Audio() never emits; callers
// that need translated audio must negotiate a different provider.
type Session struct {
	provider ProviderConfig
	cfg      translate.Config

	machine *translate.StateMachine
	logger  *slog.Logger

	mu         sync.Mutex
	dgClient   *client.WSCallback
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter

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
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.machine.Transition(translate.StateConnecting, "connect"); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonProviderConnect)
	}

	runCtx, cancel := context.WithCancel(ctx)

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.provider.Model,
		Language:       s.cfg.SourceLanguage,
		Encoding:       "linear16",
		SampleRate:     s.cfg.Format.SampleRate,
		InterimResults: true,
		VadEvents:      true,
		SmartFormat:    true,
	}

	pr, pw := io.Pipe()
	cb := &callback{parent: s}

	dgClient, err := client.NewWSUsingCallback(runCtx, s.provider.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		cancel()
		_ = pw.Close()
		_ = s.machine.Transition(translate.StateError, "client create failed")
		return errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrConnection, err), errorsx.ReasonProviderConnect)
	}
	if connected := dgClient.Connect(); !connected {
		cancel()
		_ = pw.Close()
		_ = s.machine.Transition(translate.StateError, "connect failed")
		return errorsx.Wrap(fmt.Errorf("%w: transcription endpoint refused connection", errorsx.ErrConnection), errorsx.ReasonProviderConnect)
	}

	s.mu.Lock()
	s.dgClient = dgClient
	s.cancel = cancel
	s.pipeReader = pr
	s.pipeWriter = pw
	s.mu.Unlock()

	go func() {
		if err := dgClient.Stream(pr); err != nil && runCtx.Err() == nil {
			s.logger.Error("transcription_stream_error", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("transcription_session_connected",
		slog.String("direction", string(s.cfg.Direction)),
		slog.String("language", s.cfg.SourceLanguage),
		slog.String("model", s.provider.Model))
	return s.machine.Transition(translate.StateReady, "connected")
}

func (s *Session) SendAudio(frame frames.AudioFrame) error {
	if !s.machine.Current().CanSendAudio() {
		s.logger.Debug("send_audio_ignored", slog.String("state", s.machine.Current().String()))
		return nil
	}
	s.mu.Lock()
	pw := s.pipeWriter
	s.mu.Unlock()
	if pw == nil {
		return nil
	}
	if _, err := pw.Write(frame.RawPayload()); err != nil {
		return errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrProvider, err), errorsx.ReasonProviderSend)
	}
	return nil
}

func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.pipeWriter != nil {
		_ = s.pipeWriter.Close()
		s.pipeWriter = nil
	}
	dgClient := s.dgClient
	s.dgClient = nil
	s.mu.Unlock()

	if dgClient != nil {
		dgClient.Stop()
		s.logger.Info("transcription_session_closed")
	}
	s.machine.ForceIdle("disconnect")
	return nil
}

func (s *Session) emitTranscript(text string, final bool, confidence float64) {
	f := frames.NewTranscriptFrame(s.cfg.SessionID, text, final, confidence, s.cfg.SourceLanguage, map[string]string{
		frames.MetaCallID:    s.cfg.CallID,
		frames.MetaDirection: string(s.cfg.Direction),
		frames.MetaSource:    "provider",
	})
	select {
	case s.transcripts <- f:
	default:
		s.logger.Warn("transcript_buffer_full")
	}
}

func (s *Session) emitError(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

type callback struct {
	parent *Session
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("transcription_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil
	}
	isFinal := mr.IsFinal || mr.SpeechFinal
	if isFinal {
		_ = c.parent.machine.Transition(translate.StateProcessing, "transcript final")
	}
	c.parent.emitTranscript(alt.Transcript, isFinal, alt.Confidence)
	if isFinal {
		_ = c.parent.machine.Transition(translate.StateReady, "transcript delivered")
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.logger.Debug("transcription_metadata", slog.String("request_id", md.RequestID))
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	_ = c.parent.machine.Transition(translate.StateDetectingSpeech, "speech started")
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	_ = c.parent.machine.Transition(translate.StateReady, "utterance end")
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("transcription_connection_closed")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("transcription_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	_ = c.parent.machine.Transition(translate.StateError, er.ErrMsg)
	c.parent.emitError(errorsx.Wrap(fmt.Errorf("%w: %s", errorsx.ErrProvider, er.ErrMsg), errorsx.ReasonProviderEvent))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("transcription_unhandled_event", slog.String("data", string(byData)))
	return nil
}

var _ translate.Session = (*Session)(nil)
var _ translate.Provider = (*Provider)(nil)
