// Package config defines queue retry configuration.
package config

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewReceiveBackoff builds the backoff used between failed queue receives.
// The loop must outlive transient broker outages, so elapsed time is
// unbounded and only the interval grows. Test environments use much
// shorter intervals for fast test execution.
func (c Config) NewReceiveBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	if c.IsTest() {
		b.InitialInterval = 10 * time.Millisecond
		b.MaxInterval = 100 * time.Millisecond
		return b
	}
	b.InitialInterval = c.RetryInitialDelay
	b.MaxInterval = c.RetryMaxDelay
	b.Multiplier = c.RetryMultiplier
	return b
}
