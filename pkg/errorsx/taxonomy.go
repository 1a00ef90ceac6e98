package errorsx

import "errors"

// Sentinel errors for the pipeline failure taxonomy. All of them are
// recoverable at the call level: none may tear down the underlying voice call.
var (
	// ErrConnection means the provider was unreachable or rejected the handshake.
	ErrConnection = errors.New("provider connection failed")
	// ErrProvider is an in-band error event from a connected provider.
	ErrProvider = errors.New("provider reported error")
	// ErrFormat means input audio was unrecognized or corrupt; the frame is dropped.
	ErrFormat = errors.New("unsupported audio format")
	// ErrPermission means the recording directory could not be created or probed.
	ErrPermission = errors.New("recording permission denied")
	// ErrIO is a disk write failure while recording.
	ErrIO = errors.New("recording i/o failure")
	// ErrNegotiationMismatch means the two ends disagreed on translation capability.
	ErrNegotiationMismatch = errors.New("translation capability mismatch")
	// ErrBufferOverflow signals unbounded growth in the frame buffer; the
	// translation pipeline self-disables, the call itself is unaffected.
	ErrBufferOverflow = errors.New("frame buffer overflow")
)

// IsRecoverable reports whether the error leaves the voice call intact.
// Everything except buffer overflow degrades translation rather than ending it.
func IsRecoverable(err error) bool {
	return !errors.Is(err, ErrBufferOverflow)
}
