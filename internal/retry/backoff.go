// Package retry wraps cenkalti/backoff/v3 into the small policy-manager
// interface the transmitter needs: an exponential backoff with jitter,
// paused and reset as a whole rather than per-envelope.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v3"
)

// Policy hands out successive wait intervals for a retry-triggering
// outcome and resets once a delivery succeeds.
type Policy interface {
	// NextInterval returns how long to pause before the next attempt.
	NextInterval() time.Duration
	// Reset clears accumulated backoff state after a successful delivery.
	Reset()
}

type exponentialPolicy struct {
	b *backoff.ExponentialBackOff
}

// NewExponential builds the default policy: exponential growth with
// jitter, seeded by cenkalti/backoff/v3's own randomization factor, capped
// at maxInterval so a long outage doesn't starve the drain loop entirely.
func NewExponential(initial, maxInterval time.Duration) Policy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0 // the transmitter decides when to give up, not the policy
	b.Reset()
	return &exponentialPolicy{b: b}
}

func (p *exponentialPolicy) NextInterval() time.Duration {
	d := p.b.NextBackOff()
	if d == backoff.Stop || d > p.b.MaxInterval {
		return p.b.MaxInterval
	}
	return d
}

func (p *exponentialPolicy) Reset() { p.b.Reset() }
