package priority

import (
	"testing"

	"github.com/andratama/lisan/pkg/frames"
)

func audioFrame() frames.Frame {
	return frames.NewAudioFrame("sess-1", make([]byte, 320), frames.Canonical16K, frames.DirectionOutgoing, nil)
}

func controlFrame(code frames.ControlCode) frames.Frame {
	return frames.NewControlFrame("sess-1", code, nil)
}

func TestControlJumpsAudio(t *testing.T) {
	q := New(4, 16, 4)
	for i := 0; i < 5; i++ {
		if !q.PushAudio(audioFrame()) {
			t.Fatalf("audio push %d rejected", i)
		}
	}
	if !q.PushControl(controlFrame(frames.ControlStop)) {
		t.Fatalf("control push rejected")
	}

	f, ok := q.Pop()
	if !ok {
		t.Fatalf("pop failed")
	}
	if f.Kind() != frames.KindControl {
		t.Fatalf("expected control first, got %s", f.Kind())
	}
}

func TestFairnessYieldsToAudio(t *testing.T) {
	q := New(16, 16, 2)
	for i := 0; i < 4; i++ {
		q.PushControl(controlFrame(frames.ControlFlush))
	}
	q.PushAudio(audioFrame())

	kinds := make([]frames.Kind, 0, 5)
	for {
		f, ok := q.Pop()
		if !ok {
			break
		}
		kinds = append(kinds, f.Kind())
	}
	if len(kinds) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(kinds))
	}
	// After two control pops the audio frame must get a slot.
	if kinds[2] != frames.KindAudio {
		t.Fatalf("audio starved: order %v", kinds)
	}
}

func TestFullLanesRejectWithoutBlocking(t *testing.T) {
	q := New(1, 1, 4)
	if !q.PushControl(controlFrame(frames.ControlStop)) || !q.PushAudio(audioFrame()) {
		t.Fatalf("first pushes must succeed")
	}
	if q.PushControl(controlFrame(frames.ControlStop)) {
		t.Fatalf("full high lane must reject")
	}
	if q.PushAudio(audioFrame()) {
		t.Fatalf("full low lane must reject")
	}
	if s := q.Stats(); s.Dropped != 2 {
		t.Fatalf("expected 2 drops, got %d", s.Dropped)
	}
}

func TestPopEmpty(t *testing.T) {
	q := New(1, 1, 4)
	if f, ok := q.Pop(); ok || f != nil {
		t.Fatalf("empty queue must return not-ok")
	}
}
