// Package budget implements the per-tool rate limiter and circuit breaker
// admission check the PTC Runtime's step 5 consults (§4.7). The breaker
// state machine is grounded on the donor pack's
// haasonsaas-nexus/internal/infra/circuit.go; the token bucket is
// reimplemented on top of golang.org/x/time/rate, the Go-ecosystem-idiomatic
// analogue of haasonsaas-nexus/internal/ratelimit/limiter.go.
package budget

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BreakerState is one of the three circuit breaker states.
type BreakerState string

// BreakerState values.
const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// ErrCircuitOpen is returned by Execute when the breaker refuses admission.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrRateLimited is returned by Admit when the token bucket has no tokens
// available.
var ErrRateLimited = errors.New("rate limit exceeded")

// BreakerConfig configures a single tool's circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures in Closed that
	// opens the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes in HalfOpen
	// that closes the breaker.
	SuccessThreshold int
	// Cooldown is how long the breaker stays Open before allowing one trial
	// call through as HalfOpen.
	Cooldown time.Duration
}

// defaulted fills zero fields with sensible defaults.
func (c BreakerConfig) defaulted() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// breaker is a single tool's circuit breaker.
type breaker struct {
	config BreakerConfig

	mu              sync.Mutex
	state           BreakerState
	failures        int
	successes       int
	lastStateChange time.Time
}

func newBreaker(config BreakerConfig) *breaker {
	return &breaker{config: config.defaulted(), state: StateClosed, lastStateChange: time.Now()}
}

// admit reports whether a call may proceed now, transitioning Open->HalfOpen
// once the cooldown has elapsed.
func (b *breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastStateChange) >= b.config.Cooldown {
			b.transitionLocked(StateHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	}
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.transitionLocked(StateOpen)
	}
}

func (b *breaker) transitionLocked(next BreakerState) {
	b.state = next
	b.lastStateChange = time.Now()
	b.failures = 0
	b.successes = 0
}

func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute wraps fn with the breaker's admission check and result recording.
func (b *breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil {
		b.recordFailure()
	} else {
		b.recordSuccess()
	}
	return err
}
