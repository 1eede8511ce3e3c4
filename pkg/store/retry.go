package store

import (
	"math/rand"
	"time"
)

// Retryer decides how reconnection attempts are spaced out.
type Retryer interface {
	// NextDelay returns the delay before retry number attempt
	// (0-based) and whether to keep retrying.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)

	// Reset is called after a successful connection.
	Reset()
}

// ExponentialBackoffRetryer grows the delay multiplicatively up to a
// cap. With Jitter enabled each delay is scaled by a random factor in
// [1-JitterFactor, 1+JitterFactor] so a fleet of clients losing the
// same backend does not reconnect in lockstep.
type ExponentialBackoffRetryer struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// MaxRetries bounds attempts per disconnect; 0 retries until the
	// connection is back.
	MaxRetries int

	Jitter       bool
	JitterFactor float64
}

// NewExponentialBackoffRetryer returns the defaults the reconnecting
// store uses: 1s doubling to 30s, unbounded, 30% jitter.
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		JitterFactor: 0.3,
	}
}

// NextDelay implements Retryer.
func (r *ExponentialBackoffRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}

	delay := float64(r.InitialDelay)
	for i := 0; i < attempt && delay < float64(r.MaxDelay); i++ {
		delay *= r.Multiplier
	}
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter && r.JitterFactor > 0 {
		delay *= 1 + r.JitterFactor*(2*rand.Float64()-1)
	}

	return time.Duration(delay), true
}

// Reset implements Retryer.
func (r *ExponentialBackoffRetryer) Reset() {}

// FixedDelayRetryer retries at a constant interval.
type FixedDelayRetryer struct {
	Delay      time.Duration
	MaxRetries int
}

// NextDelay implements Retryer.
func (r *FixedDelayRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}
	return r.Delay, true
}

// Reset implements Retryer.
func (r *FixedDelayRetryer) Reset() {}
