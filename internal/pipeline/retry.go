package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/quizgest/internal/config"
	"github.com/dgallion1/quizgest/internal/generate"
)

// IsRetryable reports whether the provider marked err as transient.
func IsRetryable(err error) bool {
	var retryErr *generate.RetryableError
	return errors.As(err, &retryErr)
}

// retryPolicy spaces out the attempts of one unit: exponential from base,
// with up to 50% jitter, never longer than max.
type retryPolicy struct {
	base time.Duration
	max  time.Duration
}

func newRetryPolicy(cfg config.Config) retryPolicy {
	return retryPolicy{base: cfg.RetryBaseDelay, max: cfg.RetryMaxDelay}
}

// delay returns the wait before retrying after attempt (0-indexed).
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.max
	if attempt < 32 {
		if b := p.base << attempt; b > 0 && b < p.max {
			d = b
		}
	}
	d += rand.N(d/2 + 1)
	return min(d, p.max)
}
