package openairt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andratama/lisan/pkg/adapters/translate"
	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
)

func testSession() *Session {
	return newSession(ProviderConfig{Model: "test-model"}, translate.Config{
		CallID:         "call-1",
		SessionID:      "sess-1",
		Direction:      frames.DirectionOutgoing,
		SourceLanguage: "es",
		TargetLanguage: "en",
		Format:         frames.Canonical16K,
		ConnectTimeout: time.Second,
	})
}

func event(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestAudioDeltaEmitsDecodedFrame(t *testing.T) {
	s := testSession()

	// Walk the session to PROCESSING the way the wire would.
	if err := s.machine.Transition(translate.StateConnecting, "test"); err != nil {
		t.Fatal(err)
	}
	s.handleServerEvent(event(t, map[string]string{"type": typeSessionCreated}))
	s.handleServerEvent(event(t, map[string]string{"type": typeSpeechStarted}))
	s.handleServerEvent(event(t, map[string]string{"type": typeSpeechStopped}))
	if s.State() != translate.StateProcessing {
		t.Fatalf("expected PROCESSING, got %s", s.State())
	}

	// 480 raw bytes encode to 640 base64 characters (4:3 ratio).
	raw := make([]byte, 480)
	for i := range raw {
		raw[i] = byte(i)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	if len(encoded) != 640 {
		t.Fatalf("expected 640 base64 bytes, got %d", len(encoded))
	}
	s.handleServerEvent(event(t, map[string]string{"type": typeAudioDelta, "delta": encoded}))

	select {
	case frame := <-s.Audio():
		if len(frame.RawPayload()) != 480 {
			t.Fatalf("expected 480 decoded bytes, got %d", len(frame.RawPayload()))
		}
		if frame.Format() != frames.Canonical16K {
			t.Fatalf("translated audio must be canonical, got %+v", frame.Format())
		}
	default:
		t.Fatalf("expected exactly one translated frame")
	}
	select {
	case <-s.Audio():
		t.Fatalf("expected exactly one translated frame, got more")
	default:
	}

	s.handleServerEvent(event(t, map[string]string{"type": typeResponseDone}))
	if s.State() != translate.StateReady {
		t.Fatalf("expected READY after response.done, got %s", s.State())
	}
}

func TestTranscriptEvents(t *testing.T) {
	s := testSession()
	_ = s.machine.Transition(translate.StateConnecting, "test")
	s.handleServerEvent(event(t, map[string]string{"type": typeSessionCreated}))

	s.handleServerEvent(event(t, map[string]string{"type": typeTranscriptDelta, "delta": "hola"}))
	s.handleServerEvent(event(t, map[string]string{"type": typeInputTranscriptDone, "transcript": "hola mundo"}))

	partial := <-s.Transcripts()
	if partial.IsFinal() || partial.Text() != "hola" || partial.Language() != "en" {
		t.Fatalf("unexpected partial: %q final=%v lang=%s", partial.Text(), partial.IsFinal(), partial.Language())
	}
	final := <-s.Transcripts()
	if !final.IsFinal() || final.Text() != "hola mundo" || final.Language() != "es" {
		t.Fatalf("unexpected final: %q final=%v lang=%s", final.Text(), final.IsFinal(), final.Language())
	}
}

func TestErrorEventMovesToErrorState(t *testing.T) {
	s := testSession()
	_ = s.machine.Transition(translate.StateConnecting, "test")
	s.handleServerEvent(event(t, map[string]string{"type": typeSessionCreated}))

	s.handleServerEvent(event(t, map[string]any{
		"type":  typeError,
		"error": map[string]string{"message": "rate limited"},
	}))

	if s.State() != translate.StateError {
		t.Fatalf("expected ERROR state, got %s", s.State())
	}
	select {
	case err := <-s.Errors():
		if !errors.Is(err, errorsx.ErrProvider) {
			t.Fatalf("expected ErrProvider, got %v", err)
		}
		if !strings.Contains(err.Error(), "rate limited") {
			t.Fatalf("provider message lost: %v", err)
		}
	default:
		t.Fatalf("expected error on Errors channel")
	}

	// Disconnect must still work from ERROR.
	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect from error: %v", err)
	}
	if s.State() != translate.StateIdle {
		t.Fatalf("expected IDLE after disconnect, got %s", s.State())
	}
}

func TestSendAudioOutsideSendableStatesIsNoop(t *testing.T) {
	s := testSession()
	frame := frames.NewAudioFrame("sess-1", make([]byte, 320), frames.Canonical16K, frames.DirectionOutgoing, nil)

	if err := s.SendAudio(frame); err != nil {
		t.Fatalf("idle send must be a silent no-op: %v", err)
	}
	select {
	case <-s.writeCh:
		t.Fatalf("no payload may be queued while IDLE")
	default:
	}

	_ = s.machine.Transition(translate.StateConnecting, "test")
	if err := s.SendAudio(frame); err != nil {
		t.Fatalf("connecting send must be a silent no-op: %v", err)
	}
	select {
	case <-s.writeCh:
		t.Fatalf("no payload may be queued while CONNECTING")
	default:
	}

	s.handleServerEvent(event(t, map[string]string{"type": typeSessionCreated}))
	if err := s.SendAudio(frame); err != nil {
		t.Fatalf("ready send: %v", err)
	}
	payload := <-s.writeCh
	var sent audioAppendEvent
	if err := json.Unmarshal(payload, &sent); err != nil {
		t.Fatalf("unmarshal append: %v", err)
	}
	if sent.Type != typeAudioAppend {
		t.Fatalf("unexpected event type %q", sent.Type)
	}
	decoded, err := base64.StdEncoding.DecodeString(sent.Audio)
	if err != nil || len(decoded) != 320 {
		t.Fatalf("audio payload corrupted: %d bytes, %v", len(decoded), err)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	s := testSession()
	for i := 0; i < 3; i++ {
		if err := s.Disconnect(); err != nil {
			t.Fatalf("disconnect %d: %v", i, err)
		}
	}
	if s.State() != translate.StateIdle {
		t.Fatalf("expected IDLE, got %s", s.State())
	}
}

// fakeProvider upgrades inbound connections and acks the session config the
// way the real endpoint does.
func fakeProvider(t *testing.T, ack bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev map[string]any
			if json.Unmarshal(data, &ev) != nil {
				continue
			}
			if ev["type"] == typeSessionUpdate && ack {
				_ = conn.WriteJSON(map[string]string{"type": typeSessionCreated})
			}
		}
	}))
}

func TestConnectReachesReady(t *testing.T) {
	srv := fakeProvider(t, true)
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	s := p.NewSession(translate.Config{
		CallID:         "call-1",
		SessionID:      "sess-1",
		Direction:      frames.DirectionOutgoing,
		TargetLanguage: "en",
		ConnectTimeout: 2 * time.Second,
	})
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if s.State() != translate.StateReady {
		t.Fatalf("expected READY after connect, got %s", s.State())
	}
}

func TestReconnectReachesReadyAgain(t *testing.T) {
	srv := fakeProvider(t, true)
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	s := p.NewSession(translate.Config{
		CallID:         "call-1",
		SessionID:      "sess-1",
		Direction:      frames.DirectionOutgoing,
		TargetLanguage: "en",
		ConnectTimeout: 2 * time.Second,
	})
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if s.State() != translate.StateReady {
		t.Fatalf("expected READY after reconnect, got %s", s.State())
	}
}

func TestReconnectWaitsForFreshAck(t *testing.T) {
	// Acks only the first connection; a reconnect must not ride the stale ack.
	var conns atomic.Int32
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := conns.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev map[string]any
			if json.Unmarshal(data, &ev) != nil {
				continue
			}
			if ev["type"] == typeSessionUpdate && n == 1 {
				_ = conn.WriteJSON(map[string]string{"type": typeSessionCreated})
			}
		}
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	s := p.NewSession(translate.Config{
		CallID:         "call-1",
		SessionID:      "sess-1",
		Direction:      frames.DirectionOutgoing,
		TargetLanguage: "en",
		ConnectTimeout: 300 * time.Millisecond,
	})
	defer s.Disconnect()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	_ = s.Disconnect()

	err := s.Connect(context.Background())
	if err == nil {
		t.Fatalf("reconnect without a fresh ack must fail, not report ready")
	}
	if !errors.Is(err, errorsx.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if s.State() != translate.StateError {
		t.Fatalf("expected ERROR after unacked reconnect, got %s", s.State())
	}
}

func TestConnectTimesOutWithoutAck(t *testing.T) {
	srv := fakeProvider(t, false)
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	s := p.NewSession(translate.Config{
		CallID:         "call-1",
		SessionID:      "sess-1",
		Direction:      frames.DirectionOutgoing,
		TargetLanguage: "en",
		ConnectTimeout: 200 * time.Millisecond,
	})
	defer s.Disconnect()

	start := time.Now()
	err := s.Connect(context.Background())
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !errors.Is(err, errorsx.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("connect did not respect its bound")
	}
	if s.State() != translate.StateError {
		t.Fatalf("expected ERROR after timeout, got %s", s.State())
	}

	// disconnect() then connect() must be possible again.
	_ = s.Disconnect()
	if s.State() != translate.StateIdle {
		t.Fatalf("expected IDLE after disconnect, got %s", s.State())
	}
}
