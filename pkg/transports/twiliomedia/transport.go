// Package twiliomedia is the reference MediaTransport over Twilio Media
// Streams. The websocket stream carries the remote party's audio as base64
// µ-law 8k; translated local speech is written back onto the same stream.
// Local microphone audio and local playback cross the host softphone through
// PushLocal and LocalPlayback.
package twiliomedia

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/logging"
	"github.com/andratama/lisan/pkg/media"
	"github.com/andratama/lisan/pkg/transports"
)

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	PublicURL      string   `mapstructure:"public_url"`
	AccountSID     string   `mapstructure:"account_sid"`
	AuthToken      string   `mapstructure:"auth_token"`
	VoicePath      string   `mapstructure:"voice_path"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/voice"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/media"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// wireFormat is what Twilio Media Streams carry.
var wireFormat = frames.PCMFormat{SampleRate: 8000, Channels: 1, BitsPerSample: 8, Encoding: frames.EncodingMuLaw}

// Transport serves the Media Streams websocket endpoint and adapts it to the
// MediaTransport seam for a single active call leg.
type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger

	localCaptured chan frames.AudioFrame
	remoteDecoded chan frames.AudioFrame
	localPlayback chan frames.AudioFrame

	mu       sync.Mutex
	stream   *stream
	streamID string
	callSID  string

	draining atomic.Bool
}

func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg:           cfg,
		logger:        logging.NewComponentLogger(slog.Default(), "twiliomedia"),
		localCaptured: make(chan frames.AudioFrame, 512),
		remoteDecoded: make(chan frames.AudioFrame, 512),
		localPlayback: make(chan frames.AudioFrame, 512),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Format() frames.PCMFormat { return wireFormat }

func (t *Transport) LocalCaptured() <-chan frames.AudioFrame { return t.localCaptured }
func (t *Transport) RemoteDecoded() <-chan frames.AudioFrame { return t.remoteDecoded }

// PushLocal feeds microphone audio captured by the host softphone.
func (t *Transport) PushLocal(frame frames.AudioFrame) {
	if t.draining.Load() {
		return
	}
	select {
	case t.localCaptured <- frame:
	default:
	}
}

// LocalPlayback yields translated remote speech for the local speaker.
func (t *Transport) LocalPlayback() <-chan frames.AudioFrame { return t.localPlayback }

// InjectOutgoing writes translated local speech onto the media stream. The
// pipeline clears the playout buffer at speech start, so frames written here
// replace rather than trail the original.
func (t *Transport) InjectOutgoing(frame frames.AudioFrame) error {
	t.mu.Lock()
	s := t.stream
	streamID := t.streamID
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	msg := map[string]any{
		"event":     "media",
		"streamSid": streamID,
		"media": map[string]any{
			"payload": base64.StdEncoding.EncodeToString(frame.RawPayload()),
		},
	}
	return s.enqueue(msg)
}

// InjectIncoming hands translated remote speech to the local playback path.
func (t *Transport) InjectIncoming(frame frames.AudioFrame) error {
	select {
	case t.localPlayback <- frame:
	default:
	}
	return nil
}

// ClearRemotePlayout asks Twilio to drop any queued outbound media.
func (t *Transport) ClearRemotePlayout() error {
	t.mu.Lock()
	s := t.stream
	streamID := t.streamID
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.enqueue(map[string]any{"event": "clear", "streamSid": streamID})
}

// CallSID returns the Twilio call SID of the attached stream.
func (t *Transport) CallSID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callSID
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.VoicePath, t.handleVoice)
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("media_server_error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	t.mu.Lock()
	s := t.stream
	t.stream = nil
	t.mu.Unlock()
	if s != nil {
		_ = s.close()
	}
	return nil
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var streamID string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var evt streamEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			continue
		}
		switch evt.Event {
		case "start":
			if evt.Start == nil {
				continue
			}
			streamID = evt.Start.StreamID
			t.attach(streamID, evt.Start.CallSID, conn)
			t.logger.Info("media_stream_started",
				slog.String("stream_sid", streamID),
				slog.String("call_sid", evt.Start.CallSID))

		case "media":
			if evt.Media == nil || streamID == "" {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(evt.Media.Payload)
			if err != nil {
				continue
			}
			frame := frames.NewAudioFrame(streamID, payload, wireFormat, frames.DirectionIncoming, map[string]string{
				frames.MetaEncoding: string(frames.EncodingMuLaw),
				frames.MetaSource:   "transport",
			})
			select {
			case t.remoteDecoded <- frame:
			default:
			}

		case "stop":
			t.logger.Info("media_stream_stopped", slog.String("stream_sid", streamID))
			t.detach(streamID)
			return
		}
	}
	if streamID != "" {
		t.detach(streamID)
	}
}

func (t *Transport) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateRequest(r) {
		t.logger.Warn("invalid_twilio_signature", slog.String("path", r.URL.Path))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	twiml := `<Response><Connect><Stream url="` + t.websocketURL(r) + `"/></Connect></Response>`
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(twiml))
}

func (t *Transport) attach(streamID, callSID string, conn *websocket.Conn) {
	s := &stream{conn: conn, sendCh: make(chan []byte, 256)}
	t.mu.Lock()
	old := t.stream
	t.stream = s
	t.streamID = streamID
	t.callSID = callSID
	t.mu.Unlock()
	if old != nil {
		_ = old.close()
	}
	go s.loop()
}

func (t *Transport) detach(streamID string) {
	t.mu.Lock()
	var s *stream
	if t.streamID == streamID {
		s = t.stream
		t.stream = nil
		t.streamID = ""
		t.callSID = ""
	}
	t.mu.Unlock()
	if s != nil {
		_ = s.close()
	}
}

func (t *Transport) websocketURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		return "wss://" + trimScheme(t.cfg.PublicURL) + t.cfg.WebsocketPath
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return "wss://" + host + t.cfg.WebsocketPath
}

func (t *Transport) validateRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" || t.cfg.AuthToken == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	validator := twilioclient.NewRequestValidator(t.cfg.AuthToken)
	return validator.ValidateBody(t.requestURL(r), body, signature)
}

func (t *Transport) requestURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		return "https://" + trimScheme(t.cfg.PublicURL) + r.URL.RequestURI()
	}
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin == "" {
		return true
	}
	originHost := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

func trimScheme(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	return strings.TrimRight(v, "/")
}

// stream is one attached websocket with its write pump. Writes funnel
// through the channel so InjectOutgoing never touches the socket directly.
// The mutex orders enqueue against close; an inject racing a stream stop
// must drop the frame, not panic on the closed channel.
type stream struct {
	conn   *websocket.Conn
	sendCh chan []byte

	mu     sync.Mutex
	closed bool
}

func (s *stream) enqueue(msg map[string]any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.sendCh <- b:
	default:
	}
	return nil
}

func (s *stream) loop() {
	for msg := range s.sendCh {
		_ = s.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *stream) close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.sendCh)
	}
	s.mu.Unlock()
	return s.conn.Close()
}

type streamStart struct {
	CallSID  string `json:"callSid"`
	StreamID string `json:"streamSid"`
	From     string `json:"from"`
}

type streamMedia struct {
	Payload string `json:"payload"`
}

type streamEvent struct {
	Event string       `json:"event"`
	Start *streamStart `json:"start,omitempty"`
	Media *streamMedia `json:"media,omitempty"`
}

// ReadyFields reports the endpoints the transport serves, for startup logs.
func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"server_addr": t.cfg.ServerAddr,
		"voice_path":  t.cfg.VoicePath,
		"ws_path":     t.cfg.WebsocketPath,
	}
}

var (
	_ media.MediaTransport      = (*Transport)(nil)
	_ transports.PlayoutClearer = (*Transport)(nil)
	_ transports.ReadyReporter  = (*Transport)(nil)
	_ transports.OutboundDialer = (*Dialer)(nil)
)
