package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond)
	attempts := 0
	err := policy.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	policy := NewRetryPolicy(5, time.Millisecond)
	policy.Retryable = func(err error) bool { return !IsRateLimit(err) }

	attempts := 0
	err := policy.Do(context.Background(), func() error {
		attempts++
		return RateLimitError{Provider: "test"}
	})
	if !IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("non-retryable error must not be retried, attempts = %d", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond)
	attempts := 0
	sentinel := errors.New("down")
	err := policy.Do(context.Background(), func() error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := NewRetryPolicy(10, 50*time.Millisecond)
	attempts := 0
	err := policy.Do(ctx, func() error {
		attempts++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("cancelled context must stop retries, attempts = %d", attempts)
	}
}

func TestBreakerOpensOnRateLimits(t *testing.T) {
	b := NewCircuitBreaker(2, time.Minute)
	if !b.Allow() {
		t.Fatalf("new breaker must be closed")
	}
	b.OnError(RateLimitError{Provider: "test"})
	if !b.Allow() {
		t.Fatalf("one failure below threshold must not open the breaker")
	}
	b.OnError(RateLimitError{Provider: "test"})
	if b.Allow() {
		t.Fatalf("breaker must open at the threshold")
	}
	if b.RetryAfter() <= 0 {
		t.Fatalf("open breaker must report a positive retry delay")
	}
}

func TestBreakerIgnoresOtherErrors(t *testing.T) {
	b := NewCircuitBreaker(1, time.Minute)
	b.OnError(errors.New("connection reset"))
	if !b.Allow() {
		t.Fatalf("non rate-limit errors must not trip the breaker")
	}
}

func TestBreakerResetsOnSuccess(t *testing.T) {
	b := NewCircuitBreaker(2, time.Minute)
	b.OnError(RateLimitError{Provider: "test"})
	b.OnSuccess()
	b.OnError(RateLimitError{Provider: "test"})
	if !b.Allow() {
		t.Fatalf("success must reset the failure count")
	}
}
