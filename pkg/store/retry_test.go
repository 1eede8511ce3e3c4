package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffGrowth(t *testing.T) {
	r := &ExponentialBackoffRetryer{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}

	d0, ok := r.NextDelay(0, nil)
	assert.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, d0)

	d2, ok := r.NextDelay(2, nil)
	assert.True(t, ok)
	assert.Equal(t, 400*time.Millisecond, d2)

	d10, ok := r.NextDelay(10, nil)
	assert.True(t, ok)
	assert.Equal(t, 1*time.Second, d10, "delay is capped at MaxDelay")
}

func TestExponentialBackoffMaxRetries(t *testing.T) {
	r := &ExponentialBackoffRetryer{
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxRetries:   3,
	}

	_, ok := r.NextDelay(2, nil)
	assert.True(t, ok)
	_, ok = r.NextDelay(3, nil)
	assert.False(t, ok)
}

func TestExponentialBackoffJitterStaysPositive(t *testing.T) {
	r := NewExponentialBackoffRetryer()
	for attempt := 0; attempt < 20; attempt++ {
		d, ok := r.NextDelay(attempt, nil)
		assert.True(t, ok)
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestFixedDelayRetryer(t *testing.T) {
	r := &FixedDelayRetryer{Delay: 50 * time.Millisecond, MaxRetries: 2}

	d, ok := r.NextDelay(0, nil)
	assert.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, d)

	_, ok = r.NextDelay(2, nil)
	assert.False(t, ok)
}

func TestConnStateTransitions(t *testing.T) {
	legal := []struct {
		from, to ConnState
	}{
		{ConnStateDisconnected, ConnStateConnecting},
		{ConnStateConnecting, ConnStateConnected},
		{ConnStateConnecting, ConnStateDisconnected},
		{ConnStateConnected, ConnStateDisconnecting},
		{ConnStateConnected, ConnStateDisconnected},
		{ConnStateDisconnecting, ConnStateDisconnected},
		{ConnStateDisconnected, ConnStateDisconnected},
	}
	for _, tt := range legal {
		got, err := tt.from.TransitionTo(tt.to)
		assert.NoError(t, err, "%v -> %v", tt.from, tt.to)
		assert.Equal(t, tt.to, got)
	}

	illegal := []struct {
		from, to ConnState
	}{
		{ConnStateDisconnected, ConnStateConnected},
		{ConnStateConnected, ConnStateConnecting},
		{ConnStateDisconnecting, ConnStateConnecting},
		{ConnStateConnecting, ConnStateConnecting},
	}
	for _, tt := range illegal {
		_, err := tt.from.TransitionTo(tt.to)
		assert.Error(t, err, "%v -> %v", tt.from, tt.to)
	}
}
