package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Do while the breaker is cooling down.
var ErrCircuitOpen = errors.New("circuit open")

// RateLimitError represents a provider rate limit response.
type RateLimitError struct {
	Provider string
	Code     int
	Message  string
}

func (e RateLimitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "rate limit"
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	return msg
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// CircuitBreaker blocks requests after repeated rate limit failures. It never
// retries; callers fail fast until the cooldown elapses.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openUntil time.Time
	cooldown  time.Duration
	now       func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.openUntil)
}

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.failures = 0
	c.openUntil = time.Time{}
	c.mu.Unlock()
}

func (c *CircuitBreaker) OnError(err error) {
	if !IsRateLimit(err) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openUntil = c.now().Add(c.cooldown)
	}
}

// Do runs fn unless the breaker is open and records its outcome.
func (c *CircuitBreaker) Do(fn func() error) error {
	if c == nil {
		return fn()
	}
	if !c.Allow() {
		return ErrCircuitOpen
	}
	err := fn()
	if err != nil {
		c.OnError(err)
		return err
	}
	c.OnSuccess()
	return nil
}
