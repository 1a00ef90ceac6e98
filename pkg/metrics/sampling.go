package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver thins the per-frame events that fire every 20ms. Lifecycle
// events (call start/stop, degradation, detection) always pass through; at
// 50 frames per second per direction, sampling only the frame counters keeps
// the sink readable without losing the story of the call.
type SamplingObserver struct {
	inner       Observer
	sampleEvery uint64
	counter     atomic.Uint64
}

func NewSamplingObserver(inner Observer, rate float64) *SamplingObserver {
	rate = math.Min(math.Max(rate, 0), 1)
	var every uint64
	switch {
	case rate == 0:
		every = 0
	case rate == 1:
		every = 1
	default:
		every = uint64(math.Round(1.0 / rate))
		if every == 0 {
			every = 1
		}
	}
	return &SamplingObserver{inner: inner, sampleEvery: every}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if !highFrequency(ev.Name) {
		s.inner.RecordEvent(ev)
		return
	}
	if s.sampleEvery == 0 {
		return
	}
	if s.sampleEvery == 1 || s.counter.Add(1)%s.sampleEvery == 0 {
		s.inner.RecordEvent(ev)
	}
}

func highFrequency(name string) bool {
	switch name {
	case EventFrameSent, EventFrameInjected:
		return true
	}
	return false
}
