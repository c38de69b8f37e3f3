package join

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy builds a fresh retry schedule for one join attempt.
type Policy func() backoff.BackOff

// FixedPolicy waits delay between each of up to retries re-syncs.
func FixedPolicy(retries int, delay time.Duration) Policy {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(retries))
	}
}

// ExponentialPolicy doubles the wait from initial up to max, without jitter.
func ExponentialPolicy(retries int, initial, max time.Duration) Policy {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		return backoff.WithMaxRetries(b, uint64(retries))
	}
}
