// Package metrics records translation pipeline events through composable
// observers: async hand-off, sampling, JSONL output and an in-memory sink
// for tests.
package metrics

import "time"

// MetricsEvent is one named measurement with its tags. Tags identify the
// call and direction; Fields carry free-form detail.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
