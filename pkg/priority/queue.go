// Package priority provides the two-lane frame queue used on each call
// direction: control frames ride the high lane so a stop or flush is never
// stuck behind buffered audio.
package priority

import (
	"sync/atomic"

	"github.com/andratama/lisan/pkg/frames"
)

type Stats struct {
	HighPushed int64
	LowPushed  int64
	HighPopped int64
	LowPopped  int64
	Dropped    int64
}

// Queue is a non-blocking two-lane frame queue.
type Queue struct {
	high chan frames.Frame
	low  chan frames.Frame
	// fairness bounds how many consecutive high-lane pops may starve the
	// low lane.
	fairness int
	highRun  int

	highPushed atomic.Int64
	lowPushed  atomic.Int64
	highPopped atomic.Int64
	lowPopped  atomic.Int64
	dropped    atomic.Int64
}

func New(highCap, lowCap, fairness int) *Queue {
	if highCap <= 0 {
		highCap = 16
	}
	if lowCap <= 0 {
		lowCap = 256
	}
	if fairness <= 0 {
		fairness = 4
	}
	return &Queue{
		high:     make(chan frames.Frame, highCap),
		low:      make(chan frames.Frame, lowCap),
		fairness: fairness,
	}
}

// PushControl enqueues on the high lane. Returns false when full.
func (q *Queue) PushControl(f frames.Frame) bool {
	select {
	case q.high <- f:
		q.highPushed.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// PushAudio enqueues on the low lane. Returns false when full.
func (q *Queue) PushAudio(f frames.Frame) bool {
	select {
	case q.low <- f:
		q.lowPushed.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop returns the next frame, preferring the high lane but yielding to the
// low lane after fairness consecutive high pops.
func (q *Queue) Pop() (frames.Frame, bool) {
	if q.highRun >= q.fairness {
		select {
		case f := <-q.low:
			q.highRun = 0
			q.lowPopped.Add(1)
			return f, true
		default:
		}
	}
	select {
	case f := <-q.high:
		q.highRun++
		q.highPopped.Add(1)
		return f, true
	default:
	}
	select {
	case f := <-q.low:
		q.highRun = 0
		q.lowPopped.Add(1)
		return f, true
	default:
		return nil, false
	}
}

func (q *Queue) Stats() Stats {
	return Stats{
		HighPushed: q.highPushed.Load(),
		LowPushed:  q.lowPushed.Load(),
		HighPopped: q.highPopped.Load(),
		LowPopped:  q.lowPopped.Load(),
		Dropped:    q.dropped.Load(),
	}
}
