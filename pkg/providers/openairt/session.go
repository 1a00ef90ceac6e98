package openairt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andratama/lisan/pkg/adapters/translate"
	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/logging"
	"github.com/andratama/lisan/pkg/resilience"
)

const (
	defaultConnectTimeout = 5 * time.Second
	transcriptionModel    = "whisper-1"
)

// ProviderConfig configures the realtime provider endpoint.
type ProviderConfig struct {
	APIKey  string
	BaseURL string // wss endpoint; defaults to the public realtime URL
	Model   string
}

// Provider builds realtime translation sessions, one per call direction.
type Provider struct {
	cfg ProviderConfig
}

func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://api.openai.com/v1/realtime"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-realtime-preview"
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string { return "openairt" }

func (p *Provider) NewSession(cfg translate.Config) translate.Session {
	return newSession(p.cfg, cfg)
}

// Session speaks the provider's JSON event protocol over one persistent
// websocket. A single reader goroutine keeps event order; writes funnel
// through a write loop so the capture path never touches the socket.
type Session struct {
	provider ProviderConfig
	cfg      translate.Config

	machine *translate.StateMachine
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc

	writeCh     chan []byte
	audioOut    chan frames.AudioFrame
	transcripts chan frames.TranscriptFrame
	errs        chan error

	// ready is the current connect attempt's ack latch, replaced on every
	// Connect so a reconnect waits for a fresh session ack.
	ready chan struct{}
}

func newSession(provider ProviderConfig, cfg translate.Config) *Session {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Format.SampleRate == 0 {
		cfg.Format = frames.Canonical16K
	}
	return &Session{
		provider: provider,
		cfg:      cfg,
		machine:  translate.NewStateMachine(),
		logger: logging.NewCallLogger(
			logging.NewComponentLogger(slog.Default(), "openairt"),
			cfg.CallID, cfg.SessionID),
		writeCh:     make(chan []byte, 256),
		audioOut:    make(chan frames.AudioFrame, 256),
		transcripts: make(chan frames.TranscriptFrame, 256),
		errs:        make(chan error, 16),
	}
}

func (s *Session) State() translate.State                        { return s.machine.Current() }
func (s *Session) Audio() <-chan frames.AudioFrame               { return s.audioOut }
func (s *Session) Transcripts() <-chan frames.TranscriptFrame    { return s.transcripts }
func (s *Session) StateChanges() <-chan translate.StateChange    { return s.machine.Events() }
func (s *Session) Errors() <-chan error                          { return s.errs }

// Connect dials the provider, sends the session configuration and waits for
// the session acknowledgment, bounded by the configured timeout. It never
// retries; callers own the backoff policy.
func (s *Session) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.machine.Transition(translate.StateConnecting, "connect"); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonProviderConnect)
	}

	ready := make(chan struct{})
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()

	u, err := s.buildURL()
	if err != nil {
		_ = s.machine.Transition(translate.StateError, "bad endpoint")
		return errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrConnection, err), errorsx.ReasonProviderConnect)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: s.cfg.ConnectTimeout,
	}
	header := http.Header{}
	if s.provider.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.provider.APIKey)
		header.Set("OpenAI-Beta", "realtime=v1")
	}

	conn, resp, err := dialer.DialContext(ctx, u, header)
	if err != nil {
		_ = s.machine.Transition(translate.StateError, "dial failed")
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return errorsx.Wrap(resilience.RateLimitError{Provider: "openairt", Message: resp.Status}, errorsx.ReasonProviderRateLimit)
		}
		return errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrConnection, err), errorsx.ReasonProviderConnect)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	go s.readLoop(runCtx)
	go s.writeLoop(runCtx)

	if err := s.sendSessionUpdate(); err != nil {
		s.teardown("configure failed")
		_ = s.machine.Transition(translate.StateError, "configure failed")
		return errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrConnection, err), errorsx.ReasonProviderConnect)
	}

	select {
	case <-ready:
		s.logger.Info("provider_session_ready",
			slog.String("direction", string(s.cfg.Direction)),
			slog.String("source_language", s.cfg.SourceLanguage),
			slog.String("target_language", s.cfg.TargetLanguage))
		return nil
	case <-time.After(s.cfg.ConnectTimeout):
		s.teardown("handshake timeout")
		_ = s.machine.Transition(translate.StateError, "handshake timeout")
		return errorsx.Wrap(fmt.Errorf("%w: no session ack within %s", errorsx.ErrConnection, s.cfg.ConnectTimeout), errorsx.ReasonProviderConnect)
	case <-ctx.Done():
		s.teardown("context cancelled")
		_ = s.machine.Transition(translate.StateError, "context cancelled")
		return errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrConnection, ctx.Err()), errorsx.ReasonProviderConnect)
	}
}

// SendAudio base64-encodes the canonical frame and appends it to the provider
// input buffer. Outside the sendable states this is a logged no-op.
func (s *Session) SendAudio(frame frames.AudioFrame) error {
	state := s.machine.Current()
	if !state.CanSendAudio() {
		s.logger.Debug("send_audio_ignored",
			slog.String("state", state.String()),
			slog.Int("size_bytes", len(frame.RawPayload())))
		return nil
	}

	payload, err := json.Marshal(audioAppendEvent{
		Type:  typeAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(frame.RawPayload()),
	})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonProviderSend)
	}

	select {
	case s.writeCh <- payload:
		return nil
	default:
		s.logger.Warn("provider_write_buffer_full",
			slog.Int("size_bytes", len(frame.RawPayload())))
		return nil
	}
}

// CommitAudio asks the provider to close the current input buffer turn.
func (s *Session) CommitAudio() error {
	return s.enqueueControl(typeAudioCommit)
}

// ClearAudio drops whatever is in the provider's input buffer.
func (s *Session) ClearAudio() error {
	return s.enqueueControl(typeAudioClear)
}

// Disconnect closes the connection. Safe from any state, any number of times.
func (s *Session) Disconnect() error {
	s.teardown("disconnect")
	s.machine.ForceIdle("disconnect")
	return nil
}

// markReady releases the connect attempt waiting on the session ack. Repeated
// acks on one connection are no-ops.
func (s *Session) markReady() {
	s.mu.Lock()
	ready := s.ready
	s.ready = nil
	s.mu.Unlock()
	if ready != nil {
		close(ready)
	}
}

func (s *Session) teardown(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
		s.conn = nil
		s.logger.Info("provider_connection_closed", slog.String("reason", reason))
	}
}

func (s *Session) buildURL() (string, error) {
	u, err := url.Parse(s.provider.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", s.provider.Model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Session) sendSessionUpdate() error {
	format := wireFormat(s.cfg.Format)
	td := s.cfg.TurnDetection
	if td.Type == "" {
		td.Type = "server_vad"
	}
	update := sessionUpdateEvent{
		Type: typeSessionUpdate,
		Session: sessionConfig{
			Instructions:      s.instructions(),
			Voice:             s.cfg.Voice,
			InputAudioFormat:  format,
			OutputAudioFormat: format,
			InputAudioTranscription: &transcriptionConfig{
				Model: transcriptionModel,
			},
			TurnDetection: &turnDetectionConfig{
				Type:              td.Type,
				Threshold:         td.Threshold,
				PrefixPaddingMS:   td.PrefixPaddingMS,
				SilenceDurationMS: td.SilenceDurationMS,
			},
		},
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return s.writeDirect(payload)
}

func (s *Session) instructions() string {
	if s.cfg.Instructions != "" {
		return s.cfg.Instructions
	}
	src := s.cfg.SourceLanguage
	if src == "" {
		src = "the speaker's language"
	}
	return fmt.Sprintf(
		"You are a simultaneous interpreter. Translate speech from %s to %s. Speak only the translation, nothing else.",
		src, s.cfg.TargetLanguage)
}

func (s *Session) enqueueControl(eventType string) error {
	payload, err := json.Marshal(audioBufferEvent{Type: eventType})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonProviderSend)
	}
	select {
	case s.writeCh <- payload:
		return nil
	default:
		return errorsx.Wrap(fmt.Errorf("write buffer full dropping %s", eventType), errorsx.ReasonProviderSend)
	}
}

func (s *Session) writeDirect(payload []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.writeCh:
			if err := s.writeDirect(payload); err != nil {
				s.logger.Error("provider_write_error", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && s.machine.Current() != translate.StateIdle {
				s.logger.Error("provider_read_error", slog.String("error", err.Error()))
				_ = s.machine.Transition(translate.StateError, "read failed")
				s.emitError(errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrConnection, err), errorsx.ReasonProviderConnect))
			}
			return
		}
		s.handleServerEvent(data)
	}
}

// handleServerEvent dispatches one inbound wire event to state transitions
// and the typed output channels. Events are processed in arrival order by the
// single reader.
func (s *Session) handleServerEvent(data []byte) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("provider_unparseable_event", slog.String("data", string(data)))
		return
	}

	switch ev.Type {
	case typeSessionCreated, typeSessionUpdated:
		s.markReady()
		_ = s.machine.Transition(translate.StateReady, ev.Type)

	case typeSpeechStarted:
		_ = s.machine.Transition(translate.StateDetectingSpeech, "speech started")

	case typeSpeechStopped, typeBufferCommitted:
		_ = s.machine.Transition(translate.StateProcessing, ev.Type)

	case typeAudioDelta:
		raw, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			s.logger.Error("audio_delta_decode_error", slog.String("error", err.Error()))
			return
		}
		frame := frames.NewAudioFrame(s.cfg.SessionID, raw, s.cfg.Format, s.cfg.Direction, map[string]string{
			frames.MetaCallID:         s.cfg.CallID,
			frames.MetaSource:         "provider",
			frames.MetaSourceLanguage: s.cfg.SourceLanguage,
			frames.MetaTargetLanguage: s.cfg.TargetLanguage,
		})
		select {
		case s.audioOut <- frame:
		default:
			s.logger.Warn("audio_out_buffer_full", slog.Int("size_bytes", len(raw)))
		}

	case typeTranscriptDelta:
		s.emitTranscript(ev.Delta, false, s.cfg.TargetLanguage)

	case typeInputTranscriptDone:
		s.emitTranscript(ev.Transcript, true, s.cfg.SourceLanguage)

	case typeResponseDone:
		_ = s.machine.Transition(translate.StateReady, "response done")

	case typeError:
		message := "provider error"
		if ev.Error != nil {
			message = ev.Error.Message
		}
		s.logger.Error("provider_error_event", slog.String("message", message))
		_ = s.machine.Transition(translate.StateError, message)
		s.emitError(errorsx.Wrap(fmt.Errorf("%w: %s", errorsx.ErrProvider, message), errorsx.ReasonProviderEvent))

	default:
		s.logger.Debug("provider_unhandled_event", slog.String("type", ev.Type))
	}
}

func (s *Session) emitTranscript(text string, final bool, language string) {
	if text == "" {
		return
	}
	f := frames.NewTranscriptFrame(s.cfg.SessionID, text, final, 0, language, map[string]string{
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

func wireFormat(f frames.PCMFormat) string {
	switch f.Encoding {
	case frames.EncodingMuLaw:
		return "g711_ulaw"
	case frames.EncodingALaw:
		return "g711_alaw"
	default:
		return "pcm16"
	}
}

var _ translate.Session = (*Session)(nil)
var _ translate.Provider = (*Provider)(nil)
