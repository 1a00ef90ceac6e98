package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func event(name string) MetricsEvent {
	return MetricsEvent{Name: name, Time: time.Now(), Value: 1}
}

func TestSamplingKeepsLifecycleEvents(t *testing.T) {
	sink := NewMemoryObserver()
	s := NewSamplingObserver(sink, 0.1)
	for i := 0; i < 10; i++ {
		s.RecordEvent(event(EventCallStarted))
	}
	if got := sink.CountByName(EventCallStarted); got != 10 {
		t.Fatalf("lifecycle events must never be sampled, got %d of 10", got)
	}
}

func TestSamplingThinsFrameEvents(t *testing.T) {
	sink := NewMemoryObserver()
	s := NewSamplingObserver(sink, 0.1)
	for i := 0; i < 100; i++ {
		s.RecordEvent(event(EventFrameSent))
	}
	if got := sink.CountByName(EventFrameSent); got != 10 {
		t.Fatalf("expected 10 sampled frame events, got %d", got)
	}
}

func TestSamplingRateZeroDropsFrameEvents(t *testing.T) {
	sink := NewMemoryObserver()
	s := NewSamplingObserver(sink, 0)
	s.RecordEvent(event(EventFrameSent))
	s.RecordEvent(event(EventCallStopped))
	if sink.CountByName(EventFrameSent) != 0 {
		t.Fatalf("rate 0 must drop frame events")
	}
	if sink.CountByName(EventCallStopped) != 1 {
		t.Fatalf("rate 0 must still record lifecycle events")
	}
}

func TestAsyncObserverDrainsOnClose(t *testing.T) {
	sink := NewMemoryObserver()
	a := NewAsyncObserver(sink, 64)
	for i := 0; i < 50; i++ {
		a.RecordEvent(event(EventFrameInjected))
	}
	a.Close()
	if got := sink.CountByName(EventFrameInjected); got != 50 {
		t.Fatalf("expected all events delivered before Close returns, got %d", got)
	}
	// Safe after close.
	a.RecordEvent(event(EventFrameInjected))
	a.Close()
}

func TestJSONLObserverWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	o := NewJSONLObserver(&buf)
	o.RecordEvent(MetricsEvent{
		Name:  EventCallStarted,
		Time:  time.Now(),
		Value: 1,
		Tags:  map[string]string{"call_id": "c1"},
	})
	o.RecordEvent(event(EventCallStopped))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var rec struct {
		Name string            `json:"name"`
		Tags map[string]string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line not valid JSON: %v", err)
	}
	if rec.Name != EventCallStarted || rec.Tags["call_id"] != "c1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
