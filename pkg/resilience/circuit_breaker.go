package resilience

import (
	"errors"
	"sync"
	"time"
)

// RateLimitError represents a backend rate limit response.
type RateLimitError struct {
	Provider   string
	Message    string
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "rate limit"
	}
	if e.Provider != "" {
		return e.Provider + ": " + msg
	}
	return msg
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// CircuitBreaker stops admitting calls for a cooldown once threshold
// consecutive rate limit failures are seen. Other errors neither trip nor
// reset it.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	strikes   int
	tripped   bool
	until     time.Time
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

// Allow reports whether a call may proceed now.
func (c *CircuitBreaker) Allow() bool {
	return c.Remaining() == 0
}

// Remaining is the time left before calls are admitted again.
func (c *CircuitBreaker) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if left := c.until.Sub(c.now()); left > 0 {
		return left
	}
	return 0
}

// OnSuccess resets the strike count. It returns true when this success
// closes a previously tripped breaker.
func (c *CircuitBreaker) OnSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	closed := c.tripped
	c.strikes = 0
	c.tripped = false
	c.until = time.Time{}
	return closed
}

// OnError counts rate limit failures. It returns true when err trips the
// breaker; a RetryAfter longer than the cooldown extends the pause.
func (c *CircuitBreaker) OnError(err error) bool {
	var rl RateLimitError
	if !errors.As(err, &rl) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strikes++
	if c.strikes < c.threshold {
		return false
	}
	pause := max(c.cooldown, rl.RetryAfter)
	c.until = c.now().Add(pause)
	opened := !c.tripped
	c.tripped = true
	return opened
}
