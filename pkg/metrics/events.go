package metrics

// Event names recorded by the translation pipeline.
const (
	EventCallStarted       = "call_started"
	EventCallStopped       = "call_stopped"
	EventCallPassthrough   = "call_passthrough"
	EventDirectionDegraded = "direction_degraded"
	EventFrameSent         = "frames_sent"
	EventFrameInjected     = "frames_injected"
	EventLanguageDetected  = "language_detected"
	EventBufferOverflow    = "buffer_overflow"
)
