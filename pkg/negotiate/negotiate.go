package negotiate

// Capability is the translation capability one end advertises during call
// setup. Immutable once exchanged.
type Capability struct {
	Supports bool
	Language string // preferred language, ISO 639-1
	Enabled  bool
}

// Decision is the outcome of the one-time capability exchange.
type Decision string

const (
	FullySupported       Decision = "FULLY_SUPPORTED"
	LocalOnly            Decision = "LOCAL_ONLY"
	RemoteOnly           Decision = "REMOTE_ONLY"
	NotSupported         Decision = "NOT_SUPPORTED"
	SupportedButDisabled Decision = "SUPPORTED_BUT_DISABLED"
)

// Translates reports whether the decision allows session creation.
// Only FullySupported does.
func (d Decision) Translates() bool { return d == FullySupported }

// Reason is the diagnostic attached to a negative decision.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNotSupportedEither Reason = "not-supported-either-side"
	ReasonLocalOnly          Reason = "local-only"
	ReasonRemoteOnly         Reason = "remote-only"
	ReasonDisabledByPolicy   Reason = "disabled-by-policy"
)

// Outcome pairs the decision with its diagnostic reason and the two
// advertised languages.
type Outcome struct {
	Decision       Decision
	Reason         Reason
	LocalLanguage  string
	RemoteLanguage string
}

// Decide applies the capability decision table:
//
//	both support+enabled            -> FULLY_SUPPORTED
//	only local supports             -> LOCAL_ONLY
//	only remote supports            -> REMOTE_ONLY
//	neither supports                -> NOT_SUPPORTED
//	both support, either disabled   -> SUPPORTED_BUT_DISABLED
func Decide(local, remote Capability) Outcome {
	out := Outcome{
		LocalLanguage:  local.Language,
		RemoteLanguage: remote.Language,
	}
	switch {
	case !local.Supports && !remote.Supports:
		out.Decision = NotSupported
		out.Reason = ReasonNotSupportedEither
	case local.Supports && !remote.Supports:
		out.Decision = LocalOnly
		out.Reason = ReasonLocalOnly
	case !local.Supports && remote.Supports:
		out.Decision = RemoteOnly
		out.Reason = ReasonRemoteOnly
	case !local.Enabled || !remote.Enabled:
		out.Decision = SupportedButDisabled
		out.Reason = ReasonDisabledByPolicy
	default:
		out.Decision = FullySupported
	}
	return out
}
