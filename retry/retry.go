// Package retry implements exponential backoff with jitter (§4.8), grounded
// on the donor pack's haasonsaas-nexus/internal/backoff package (the same
// base/factor/jitter formula and deterministic-rand test seam).
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"toolhub.dev/hub/toolerrors"
)

// Policy is the backoff parameterization.
type Policy struct {
	// BaseDelay is the attempt-1 delay before jitter.
	BaseDelay time.Duration
	// Factor is the exponential growth factor per attempt (spec mandates 2).
	Factor float64
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
	// Jitter is a randomization fraction in [0,1) multiplied onto the base
	// delay and added on top (multiplicative jitter).
	Jitter float64
	// MaxRetries is the number of retries attempted after the first try (so
	// up to MaxRetries+1 total attempts).
	MaxRetries int
}

// DefaultPolicy mirrors the donor's backoff.DefaultPolicy scaled to
// time.Duration: 100ms base, factor 2, 30s cap, 10% jitter, 3 retries.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:  100 * time.Millisecond,
		Factor:     2,
		MaxDelay:   30 * time.Second,
		Jitter:     0.1,
		MaxRetries: 3,
	}
}

// computeDelay returns the delay before attempt (1-indexed: attempt 1 is the
// first retry, i.e. the second overall try) using the same
// base*factor^(attempt-1) + base*jitter*rand formula as the donor.
func computeDelay(p Policy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.BaseDelay) * math.Pow(p.Factor, exp)
	jitterAmount := base * p.Jitter * randomValue
	total := math.Min(float64(p.MaxDelay), base+jitterAmount)
	return time.Duration(math.Round(total))
}

// Classifier reports an error's ErrorKind string so withRetry can consult
// the non-retryable set without importing the root toolhub package (which
// would create an import cycle with toolerrors-based callers); callers pass
// a function backed by toolhub.ErrorKind.Retryable.
type Classifier func(err error) (kind string, retryable bool)

// OnRetry is invoked before each retry attempt with the error that triggered
// it and the 1-indexed attempt number about to be made.
type OnRetry func(err error, attempt int)

// WithRetry retries fn according to policy, classifying each failure with
// classify to decide whether to retry. fn's error, if non-nil and classified
// non-retryable, is returned immediately after a single attempt; otherwise
// up to policy.MaxRetries additional attempts are made.
func WithRetry[T any](ctx context.Context, policy Policy, classify Classifier, onRetry OnRetry, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if classify != nil {
			if _, retryable := classify(err); !retryable {
				return zero, err
			}
		}
		if attempt == policy.MaxRetries {
			break
		}
		if onRetry != nil {
			onRetry(err, attempt+1)
		}
		delay := computeDelay(policy, attempt+1, rand.Float64()) //nolint:gosec // jitter, not security-sensitive
		select {
		case <-ctx.Done():
			return zero, toolerrors.NewWithCause("retry canceled", ctx.Err())
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}
