// Package mock provides an in-memory, scriptable Store for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/kamalraji/planit-go/pkg/models"
	"github.com/kamalraji/planit-go/pkg/store"
)

// Store is an in-memory store.Store. Queries and writes operate on
// seeded rows; both can be overridden or gated for interleaving tests.
type Store struct {
	mu         sync.Mutex
	rows       map[string][]models.Row
	nextID     int
	queryCalls int

	// QueryGate, when non-nil, blocks every Query until the gate
	// receives a value (or is closed).
	QueryGate chan struct{}

	// QueryErr fails every Query when set.
	QueryErr error

	// WriteFunc, when non-nil, replaces the default write behavior.
	WriteFunc func(ctx context.Context, resource string, op store.Op, payload models.Row) (models.Row, error)

	principal    models.Principal
	hasPrincipal bool

	subs []*Subscription
}

func New() *Store {
	return &Store{rows: make(map[string][]models.Row)}
}

func slot(resource, tenant string) string {
	return resource + "|" + tenant
}

// Seed replaces the stored rows for one resource and tenant.
func (s *Store) Seed(resource, tenant string, rows []models.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[slot(resource, tenant)] = models.CloneRows(rows)
}

// Rows returns a copy of the stored rows.
func (s *Store) Rows(resource, tenant string) []models.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneRows(s.rows[slot(resource, tenant)])
}

// QueryCalls reports how many Query calls were issued in total.
func (s *Store) QueryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCalls
}

// SetIdentity sets the principal returned by Identity.
func (s *Store) SetIdentity(p models.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = p
	s.hasPrincipal = true
}

// ClearIdentity makes the store unauthenticated.
func (s *Store) ClearIdentity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = models.Principal{}
	s.hasPrincipal = false
}

// Query implements store.Store.
func (s *Store) Query(ctx context.Context, resource, tenant string, filters map[string]string) ([]models.Row, error) {
	s.mu.Lock()
	s.queryCalls++
	gate := s.QueryGate
	queryErr := s.QueryErr
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if queryErr != nil {
		return nil, queryErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Row, 0)
	for _, r := range s.rows[slot(resource, tenant)] {
		if matches(r, filters) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func matches(r models.Row, filters map[string]string) bool {
	for f, want := range filters {
		if got, _ := r[f].(string); got != want {
			return false
		}
	}
	return true
}

// Write implements store.Store. The default behavior applies the
// operation to the seeded rows and, on insert, replaces temp ids with
// server ids of the form srv-N.
func (s *Store) Write(ctx context.Context, resource string, op store.Op, payload models.Row) (models.Row, error) {
	s.mu.Lock()
	writeFunc := s.WriteFunc
	s.mu.Unlock()
	if writeFunc != nil {
		return writeFunc(ctx, resource, op, payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, _ := payload["tenant_id"].(string)
	key := slot(resource, tenant)

	switch op {
	case store.OpInsert:
		row := payload.Clone()
		if id := row.ID(); id == "" || models.IsTempID(id) {
			s.nextID++
			row["id"] = fmt.Sprintf("srv-%d", s.nextID)
		}
		s.rows[key] = append(s.rows[key], row)
		return row.Clone(), nil
	case store.OpUpdate:
		id := payload.ID()
		for i, r := range s.rows[key] {
			if r.ID() != id {
				continue
			}
			merged := r.Clone()
			for k, v := range payload {
				merged[k] = v
			}
			s.rows[key][i] = merged
			return merged.Clone(), nil
		}
		return nil, store.ErrNotFound
	case store.OpDelete:
		id := payload.ID()
		for i, r := range s.rows[key] {
			if r.ID() == id {
				s.rows[key] = append(s.rows[key][:i], s.rows[key][i+1:]...)
				return nil, nil
			}
		}
		return nil, store.ErrNotFound
	}
	return nil, store.ErrInvalidOp
}

// Subscribe implements store.Store.
func (s *Store) Subscribe(ctx context.Context, tenant string, resources []string) (store.Subscription, error) {
	sub := &Subscription{
		Tenant:    tenant,
		Resources: resources,
		events:    make(chan store.Event, 16),
		resets:    make(chan struct{}, 1),
	}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub, nil
}

// OpenSubscriptions returns how many subscriptions are currently open.
func (s *Store) OpenSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if !sub.IsClosed() {
			n++
		}
	}
	return n
}

// LastSubscription returns the most recently opened subscription.
func (s *Store) LastSubscription() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return nil
	}
	return s.subs[len(s.subs)-1]
}

// Identity implements store.Store.
func (s *Store) Identity() (models.Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal, s.hasPrincipal
}

// Subscription is a scriptable change feed.
type Subscription struct {
	Tenant    string
	Resources []string

	mu     sync.Mutex
	closed bool
	events chan store.Event
	resets chan struct{}
}

func (s *Subscription) Events() <-chan store.Event { return s.events }
func (s *Subscription) Resets() <-chan struct{}    { return s.resets }

func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (s *Subscription) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Emit synchronously delivers one change event to the subscriber.
func (s *Subscription) Emit(ev store.Event) {
	s.events <- ev
}

// Reset simulates a reconnect after a transient disconnect.
func (s *Subscription) Reset() {
	s.resets <- struct{}{}
}
