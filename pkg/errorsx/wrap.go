package errorsx

import "errors"

// ReasonedError carries a stable reason code alongside the underlying error,
// so failures can be classified without parsing messages.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e ReasonedError) Unwrap() error {
	return e.Err
}

// Wrap attaches a reason code to err. The first reason on a chain wins;
// wrapping an already-reasoned error returns it unchanged.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	if _, ok := reasonOf(err); ok {
		return err
	}
	return ReasonedError{Err: err, Reason: reason}
}

// Reason returns the reason code on err's chain, or ReasonUnknown.
func Reason(err error) ReasonCode {
	if code, ok := reasonOf(err); ok {
		return code
	}
	return ReasonUnknown
}

// HasReason reports whether err carries the given reason code.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

func reasonOf(err error) (ReasonCode, bool) {
	if err == nil {
		return ReasonUnknown, false
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return ReasonUnknown, false
}
