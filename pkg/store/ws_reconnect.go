package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ConnState is the lifecycle state of a ReconnectingWebSocketStore.
type ConnState int

const (
	ConnStateUnknown ConnState = iota
	ConnStateConnecting
	ConnStateConnected
	ConnStateDisconnecting
	ConnStateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case ConnStateConnecting:
		return "connecting"
	case ConnStateConnected:
		return "connected"
	case ConnStateDisconnecting:
		return "disconnecting"
	case ConnStateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// TransitionTo validates a state change.
func (s ConnState) TransitionTo(newState ConnState) (ConnState, error) {
	switch s {
	case ConnStateConnecting:
		switch newState {
		case ConnStateConnected, ConnStateDisconnected:
			return newState, nil
		}
	case ConnStateConnected:
		switch newState {
		case ConnStateDisconnecting, ConnStateDisconnected:
			return newState, nil
		}
	case ConnStateDisconnecting:
		if newState == ConnStateDisconnected {
			return newState, nil
		}
	case ConnStateDisconnected:
		switch newState {
		case ConnStateConnecting, ConnStateDisconnected:
			return newState, nil
		}
	}
	return ConnStateUnknown, fmt.Errorf("invalid state transition from %v to %v", s, newState)
}

// ReconnectingWebSocketStore wraps a WebSocketStore with automatic
// reconnection. After a reconnect it re-issues every live subscription
// and fires its reset signal, because the change feed cannot replay
// what was missed.
//
// The reconnection loop starts only after the initial Connect
// succeeds; what to do about an initial connection failure is the
// caller's decision.
type ReconnectingWebSocketStore struct {
	*WebSocketStore

	// CheckInterval is how often the connection is probed once the
	// loop is running.
	CheckInterval time.Duration

	// Retryer spaces out consecutive failed reconnection attempts.
	// Nil means a single attempt per check interval.
	Retryer Retryer

	connCloseCh       chan struct{}
	reconnLoopCloseCh chan struct{}

	state ConnState
	mu    sync.Mutex
}

func NewReconnectingWebSocketStore(ws *WebSocketStore, checkInterval time.Duration) *ReconnectingWebSocketStore {
	return &ReconnectingWebSocketStore{
		WebSocketStore: ws,
		CheckInterval:  checkInterval,
		Retryer:        NewExponentialBackoffRetryer(),
		state:          ConnStateDisconnected,
	}
}

func (r *ReconnectingWebSocketStore) transitionTo(newState ConnState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, err := r.state.TransitionTo(newState)
	if err != nil {
		return err
	}
	r.state = next
	r.log.Debug("connection state transitioned", "new_state", next.String())
	return nil
}

func (r *ReconnectingWebSocketStore) mustTransitionTo(newState ConnState) {
	if err := r.transitionTo(newState); err != nil {
		panic(fmt.Sprintf("BUG: %v", err))
	}
}

// Connect establishes the connection and starts the reconnection loop.
func (r *ReconnectingWebSocketStore) Connect(ctx context.Context) error {
	if err := r.transitionTo(ConnStateConnecting); err != nil {
		return err
	}

	if err := r.WebSocketStore.Connect(ctx); err != nil {
		r.mustTransitionTo(ConnStateDisconnected)
		return err
	}

	r.connCloseCh = make(chan struct{})
	r.reconnLoopCloseCh = make(chan struct{})
	go r.reconnectionLoop()

	r.mustTransitionTo(ConnStateConnected)
	return nil
}

// Close stops the reconnection loop, then closes the underlying
// connection.
func (r *ReconnectingWebSocketStore) Close(ctx context.Context) error {
	if err := r.transitionTo(ConnStateDisconnecting); err != nil {
		return fmt.Errorf("connection is already closing or closed: %w", err)
	}
	defer r.mustTransitionTo(ConnStateDisconnected)

	close(r.connCloseCh)
	<-r.reconnLoopCloseCh

	return r.WebSocketStore.Close(ctx)
}

func (r *ReconnectingWebSocketStore) reconnectionLoop() {
	checkInterval := r.CheckInterval
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}
	defer close(r.reconnLoopCloseCh)

	for {
		select {
		case <-r.connCloseCh:
			return
		case <-time.After(checkInterval):
		}

		if !r.IsDisconnected() {
			continue
		}
		r.reconnect()
	}
}

// reconnect retries until the connection is back or the retryer gives
// up; the outer loop will try again at the next check interval.
func (r *ReconnectingWebSocketStore) reconnect() {
	for attempt := 0; ; attempt++ {
		r.log.Info("attempting to reconnect", "attempt", attempt)
		err := r.WebSocketStore.Connect(context.Background())
		if err == nil {
			r.log.Info("reconnected")
			if r.Retryer != nil {
				r.Retryer.Reset()
			}
			r.resubscribeAll(context.Background())
			return
		}
		r.log.Error("reconnect failed", "attempt", attempt, "error", err)

		if r.Retryer == nil {
			return
		}
		delay, retry := r.Retryer.NextDelay(attempt, err)
		if !retry {
			r.log.Warn("retryer gave up, deferring to next check interval")
			return
		}
		select {
		case <-r.connCloseCh:
			return
		case <-time.After(delay):
		}
	}
}
