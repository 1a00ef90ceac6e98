package twiliomedia

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/andratama/lisan/pkg/frames"
)

type stubCreator struct {
	last *api.CreateCallParams
	sid  string
	err  error
}

func (s *stubCreator) CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error) {
	s.last = params
	if s.err != nil {
		return nil, s.err
	}
	return &api.ApiV2010Call{Sid: &s.sid}, nil
}

func TestDialerCreatesCall(t *testing.T) {
	stub := &stubCreator{sid: "CA123"}
	d := NewDialer(Config{AccountSID: "AC1", AuthToken: "token", PublicURL: "https://example.com"})
	d.client = stub

	sid, err := d.Dial(context.Background(), "+100", "+200")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if sid != "CA123" {
		t.Fatalf("expected CA123, got %s", sid)
	}
	if stub.last == nil || stub.last.Url == nil || !strings.HasPrefix(*stub.last.Url, "https://example.com") {
		t.Fatalf("expected voice webhook url, got %+v", stub.last)
	}
}

func TestDialerRequiresCredentials(t *testing.T) {
	d := NewDialer(Config{})
	if _, err := d.Dial(context.Background(), "+100", "+200"); err == nil {
		t.Fatalf("expected credentials error")
	}
}

func dialStream(t *testing.T, tr *Transport) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(tr)
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMediaEventsBecomeRemoteFrames(t *testing.T) {
	tr := New(Config{})
	conn := dialStream(t, tr)

	start := map[string]any{
		"event": "start",
		"start": map[string]any{"callSid": "CA1", "streamSid": "MZ1"},
	}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}

	payload := []byte{0xFF, 0x7F, 0xFF, 0x7F}
	mediaEvt := map[string]any{
		"event": "media",
		"media": map[string]any{"payload": base64.StdEncoding.EncodeToString(payload)},
	}
	if err := conn.WriteJSON(mediaEvt); err != nil {
		t.Fatalf("write media: %v", err)
	}

	select {
	case frame := <-tr.RemoteDecoded():
		if frame.Format() != wireFormat {
			t.Fatalf("unexpected format %+v", frame.Format())
		}
		if len(frame.RawPayload()) != len(payload) {
			t.Fatalf("payload mangled: %d bytes", len(frame.RawPayload()))
		}
		if frame.Direction() != frames.DirectionIncoming {
			t.Fatalf("remote audio must be incoming, got %s", frame.Direction())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no remote frame decoded")
	}

	if tr.CallSID() != "CA1" {
		t.Fatalf("call sid not recorded: %q", tr.CallSID())
	}
}

func TestInjectOutgoingWritesMediaMessage(t *testing.T) {
	tr := New(Config{})
	conn := dialStream(t, tr)

	start := map[string]any{
		"event": "start",
		"start": map[string]any{"callSid": "CA1", "streamSid": "MZ1"},
	}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}
	// Wait for attach before injecting.
	deadline := time.Now().Add(2 * time.Second)
	for tr.CallSID() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	payload := []byte{0x01, 0x02, 0x03}
	frame := frames.NewAudioFrame("MZ1", payload, wireFormat, frames.DirectionOutgoing, nil)
	if err := tr.InjectOutgoing(frame); err != nil {
		t.Fatalf("inject: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read injected media: %v", err)
	}
	var evt struct {
		Event     string `json:"event"`
		StreamSid string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	if err := json.Unmarshal(msg, &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if evt.Event != "media" || evt.StreamSid != "MZ1" {
		t.Fatalf("unexpected message: %s", msg)
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Media.Payload)
	if err != nil || len(decoded) != len(payload) {
		t.Fatalf("payload corrupted: %v", err)
	}
}

func TestInjectAfterStreamCloseDropsFrame(t *testing.T) {
	tr := New(Config{})
	conn := dialStream(t, tr)

	start := map[string]any{
		"event": "start",
		"start": map[string]any{"callSid": "CA1", "streamSid": "MZ1"},
	}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for tr.CallSID() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	tr.mu.Lock()
	s := tr.stream
	tr.mu.Unlock()
	if s == nil {
		t.Fatalf("stream not attached")
	}

	// An inject racing the stream teardown must drop the frame, not panic.
	_ = s.close()
	if err := s.enqueue(map[string]any{"event": "media"}); err != nil {
		t.Fatalf("enqueue after close: %v", err)
	}
	_ = s.close()
}

func TestInjectIncomingFeedsLocalPlayback(t *testing.T) {
	tr := New(Config{})
	frame := frames.NewAudioFrame("MZ1", []byte{1, 2, 3}, wireFormat, frames.DirectionIncoming, nil)
	if err := tr.InjectIncoming(frame); err != nil {
		t.Fatalf("inject incoming: %v", err)
	}
	select {
	case <-tr.LocalPlayback():
	default:
		t.Fatalf("playback frame not queued")
	}
}

func TestVoiceWebhookRejectsBadSignature(t *testing.T) {
	tr := New(Config{AuthToken: "secret", PublicURL: "https://example.com"})
	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader("CallSid=CA1"))
	req.Header.Set("X-Twilio-Signature", "bogus")
	rec := httptest.NewRecorder()
	tr.handleVoice(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestVoiceWebhookRequiresPost(t *testing.T) {
	tr := New(Config{})
	rec := httptest.NewRecorder()
	tr.handleVoice(rec, httptest.NewRequest(http.MethodGet, "/voice", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
