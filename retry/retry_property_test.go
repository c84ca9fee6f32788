package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRetrySafetyProperty verifies §8's retry-safety invariant: regardless
// of MaxRetries or how many times fn fails, WithRetry never makes more than
// MaxRetries+1 attempts, and a non-retryable classification always stops
// after exactly one.
func TestRetrySafetyProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("attempts never exceed MaxRetries+1", prop.ForAll(
		func(maxRetries, alwaysFailAfter int, retryable bool) bool {
			calls := 0
			classify := func(error) (string, bool) { return "UPSTREAM_ERROR", retryable }
			policy := Policy{BaseDelay: time.Microsecond, Factor: 2, MaxDelay: time.Microsecond, MaxRetries: maxRetries}

			_, err := WithRetry(context.Background(), policy, classify, nil, func(context.Context) (int, error) {
				calls++
				if calls > alwaysFailAfter {
					return calls, nil
				}
				return 0, errors.New("transient")
			})

			if !retryable {
				return calls == 1
			}
			if err == nil {
				return calls <= maxRetries+1
			}
			return calls == maxRetries+1
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 10),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
