package frames

// Shared metadata keys attached to frames as they move between stages.
const (
	MetaSessionID      = "session_id"
	MetaCallID         = "call_id"
	MetaDirection      = "direction"
	MetaSourceLanguage = "source_language"
	MetaTargetLanguage = "target_language"
	MetaEncoding       = "encoding"
	MetaIsFinal        = "is_final"
	MetaReason         = "reason"
	MetaSource         = "source"
)
