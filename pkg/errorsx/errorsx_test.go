package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonProviderConnect)
	if Reason(err) != ReasonProviderConnect {
		t.Fatalf("expected reason %s, got %s", ReasonProviderConnect, Reason(err))
	}
	if !HasReason(err, ReasonProviderConnect) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonProviderSend)
	second := Wrap(first, ReasonProviderConnect)
	if Reason(second) != ReasonProviderSend {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestRecoverableTaxonomy(t *testing.T) {
	for _, err := range []error{ErrConnection, ErrProvider, ErrFormat, ErrPermission, ErrIO, ErrNegotiationMismatch} {
		if !IsRecoverable(err) {
			t.Fatalf("expected %v to be recoverable at call level", err)
		}
	}
	wrapped := Wrap(fmt.Errorf("accumulator grew past cap: %w", ErrBufferOverflow), ReasonBufferOverflow)
	if IsRecoverable(wrapped) {
		t.Fatalf("buffer overflow must be fatal to the translation pipeline")
	}
	if !errors.Is(wrapped, ErrBufferOverflow) {
		t.Fatalf("wrap must preserve the sentinel")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
