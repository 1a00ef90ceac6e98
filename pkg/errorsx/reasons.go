package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonProviderConnect   ReasonCode = "provider_connect"
	ReasonProviderSend      ReasonCode = "provider_send"
	ReasonProviderEvent     ReasonCode = "provider_event"
	ReasonProviderRateLimit ReasonCode = "provider_rate_limit"

	ReasonFormatDecode      ReasonCode = "format_decode"
	ReasonFormatUnsupported ReasonCode = "format_unsupported"

	ReasonRecordingPermission ReasonCode = "recording_permission"
	ReasonRecordingIO         ReasonCode = "recording_io"

	ReasonNegotiationMismatch ReasonCode = "negotiation_mismatch"

	ReasonBufferOverflow ReasonCode = "buffer_overflow"

	ReasonTransportSend             ReasonCode = "transport_send"
	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
)
