package resilience

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCircuitOpensOnRateLimits(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	rl := func() error { return fmt.Errorf("classify: %w", RateLimitError{Provider: "baidu", Code: 18}) }
	for i := 0; i < 2; i++ {
		if err := cb.Do(rl); !IsRateLimit(err) {
			t.Fatalf("expected rate limit error, got %v", err)
		}
	}
	calls := 0
	err := cb.Do(func() error { calls++; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("fn must not run while open")
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Do(func() error { calls++; return nil }); err != nil {
		t.Fatalf("expected half-open success, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call after cooldown, got %d", calls)
	}
}

func TestCircuitIgnoresOtherErrors(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	for i := 0; i < 5; i++ {
		_ = cb.Do(func() error { return errors.New("network down") })
	}
	if !cb.Allow() {
		t.Fatalf("non rate-limit errors must not open the circuit")
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := RateLimitError{Provider: "baidu", Message: "qps limit"}
	if err.Error() != "baidu: qps limit" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
