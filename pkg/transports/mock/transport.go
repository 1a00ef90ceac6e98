// Package mock provides an in-memory MediaTransport for tests and local
// development, with no audio device or network dependency.
package mock

import (
	"sync/atomic"

	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/media"
	"github.com/andratama/lisan/pkg/transports"
)

// Transport simulates a call's media path. Tests push captured audio with
// PushLocal/PushRemote and inspect injected audio via OutgoingInjected and
// IncomingInjected.
type Transport struct {
	format frames.PCMFormat

	localCaptured chan frames.AudioFrame
	remoteDecoded chan frames.AudioFrame

	outgoingInjected chan frames.AudioFrame
	incomingInjected chan frames.AudioFrame

	cleared atomic.Int64
	closed  atomic.Bool
}

func New(format frames.PCMFormat) *Transport {
	if format.SampleRate == 0 {
		format = frames.Canonical16K
	}
	return &Transport{
		format:           format,
		localCaptured:    make(chan frames.AudioFrame, 256),
		remoteDecoded:    make(chan frames.AudioFrame, 256),
		outgoingInjected: make(chan frames.AudioFrame, 256),
		incomingInjected: make(chan frames.AudioFrame, 256),
	}
}

func (t *Transport) Format() frames.PCMFormat { return t.format }

func (t *Transport) LocalCaptured() <-chan frames.AudioFrame { return t.localCaptured }
func (t *Transport) RemoteDecoded() <-chan frames.AudioFrame { return t.remoteDecoded }

func (t *Transport) InjectOutgoing(frame frames.AudioFrame) error {
	if t.closed.Load() {
		return nil
	}
	select {
	case t.outgoingInjected <- frame:
	default:
	}
	return nil
}

func (t *Transport) InjectIncoming(frame frames.AudioFrame) error {
	if t.closed.Load() {
		return nil
	}
	select {
	case t.incomingInjected <- frame:
	default:
	}
	return nil
}

// PushLocal simulates microphone capture.
func (t *Transport) PushLocal(frame frames.AudioFrame) {
	if t.closed.Load() {
		return
	}
	select {
	case t.localCaptured <- frame:
	default:
	}
}

// PushRemote simulates decoded far-end audio.
func (t *Transport) PushRemote(frame frames.AudioFrame) {
	if t.closed.Load() {
		return
	}
	select {
	case t.remoteDecoded <- frame:
	default:
	}
}

// ClearRemotePlayout counts playout clears instead of dropping anything, so
// tests can assert a fresh translation invalidated the queued one.
func (t *Transport) ClearRemotePlayout() error {
	t.cleared.Add(1)
	return nil
}

// RemoteCleared reports how many times the playout buffer was cleared.
func (t *Transport) RemoteCleared() int64 { return t.cleared.Load() }

// OutgoingInjected exposes translated local speech headed to the remote party.
func (t *Transport) OutgoingInjected() <-chan frames.AudioFrame { return t.outgoingInjected }

// IncomingInjected exposes translated remote speech headed to the speaker.
func (t *Transport) IncomingInjected() <-chan frames.AudioFrame { return t.incomingInjected }

// Close stops accepting frames. Channels stay open so pending reads drain.
func (t *Transport) Close() {
	t.closed.Store(true)
}

var (
	_ media.MediaTransport      = (*Transport)(nil)
	_ transports.PlayoutClearer = (*Transport)(nil)
)
