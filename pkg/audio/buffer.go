package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
)

// DefaultMaxBuffered caps the accumulator at ten seconds of audio. A capture
// path that outruns its consumer by that much is not going to catch up.
const DefaultMaxBuffered = 10 * time.Second

// Buffer accumulates raw capture bytes and hands them out as fixed-duration
// frames. It sits directly on the real-time capture path: one producer calls
// Push from the capture callback, one consumer calls TryTakeChunk from the
// processing loop. The critical section is a plain append/cut, nothing heavier.
type Buffer struct {
	mu        sync.Mutex
	data      []byte
	format    frames.PCMFormat
	direction frames.Direction
	sessionID string
	maxBytes  int
	overflow  error
}

func NewBuffer(sessionID string, format frames.PCMFormat, direction frames.Direction) *Buffer {
	return NewBufferWithCap(sessionID, format, direction, DefaultMaxBuffered)
}

func NewBufferWithCap(sessionID string, format frames.PCMFormat, direction frames.Direction, maxBuffered time.Duration) *Buffer {
	if maxBuffered <= 0 {
		maxBuffered = DefaultMaxBuffered
	}
	return &Buffer{
		format:    format,
		direction: direction,
		sessionID: sessionID,
		maxBytes:  int(int64(format.BytesPerSecond()) * int64(maxBuffered) / int64(time.Second)),
	}
}

// Push appends captured bytes. It never blocks beyond the short lock and never
// performs I/O. Once the accumulator exceeds its cap the buffer is poisoned:
// further pushes are dropped and Err reports the overflow.
func (b *Buffer) Push(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.overflow != nil {
		return b.overflow
	}
	if len(b.data)+len(raw) > b.maxBytes {
		b.overflow = errorsx.Wrap(
			fmt.Errorf("%w: %d bytes buffered, cap %d", errorsx.ErrBufferOverflow, len(b.data), b.maxBytes),
			errorsx.ReasonBufferOverflow)
		b.data = nil
		return b.overflow
	}
	b.data = append(b.data, raw...)
	return nil
}

// TryTakeChunk returns a frame covering the requested duration once enough
// bytes have accumulated, removing them atomically. It never blocks.
func (b *Buffer) TryTakeChunk(d time.Duration) (frames.AudioFrame, bool) {
	need := b.SizeFor(d)
	if need <= 0 {
		return frames.AudioFrame{}, false
	}

	b.mu.Lock()
	if b.overflow != nil || len(b.data) < need {
		b.mu.Unlock()
		return frames.AudioFrame{}, false
	}
	chunk := make([]byte, need)
	copy(chunk, b.data)
	rest := copy(b.data, b.data[need:])
	b.data = b.data[:rest]
	b.mu.Unlock()

	return frames.NewAudioFrame(b.sessionID, chunk, b.format, b.direction, nil), true
}

// SizeFor derives the byte count covering a duration in this buffer's format.
func (b *Buffer) SizeFor(d time.Duration) int {
	return int(int64(b.format.BytesPerSecond()) * int64(d) / int64(time.Second))
}

// Buffered reports how many bytes are currently accumulated.
func (b *Buffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Err returns the sticky overflow error, if the buffer has been poisoned.
func (b *Buffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}

// Reset clears accumulated data and any overflow condition.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.data = nil
	b.overflow = nil
	b.mu.Unlock()
}
