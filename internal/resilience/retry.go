package resilience

import (
	"errors"

	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Retry holds the fixed-count, fixed-delay retry policy applied to broker
// calls.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// Do runs fn up to r.Attempts times with a constant delay between attempts,
// logging each failure with its attempt count. The last error is returned
// once attempts are exhausted. An ErrBreakerOpen from fn is terminal: there
// is no point waiting out a delay the breaker will reject anyway.
func (r Retry) Do(name string, fn func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrBreakerOpen) {
			return backoff.Permanent(err)
		}
		log.Warn().
			Str("component", "retry").
			Str("op", name).
			Int("attempt", attempt).
			Int("max_attempts", r.Attempts).
			Err(err).
			Msgf("API call failed, retrying in %s", r.Delay)
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(r.Delay), uint64(r.Attempts-1))
	err := backoff.Retry(op, policy)
	if err != nil && !errors.Is(err, ErrBreakerOpen) {
		log.Error().
			Str("component", "retry").
			Str("op", name).
			Int("attempts", attempt).
			Err(err).
			Msg("API call failed after all retries")
	}
	return err
}
