// Package store defines the contract the data-access layer consumes
// from the remote backend: tenant-filtered reads, writes, a push
// change feed, and the current actor identity. The websocket
// implementation in this package talks to the hosted backend; tests
// substitute their own.
package store

import (
	"context"

	"github.com/kamalraji/planit-go/pkg/models"
)

// Op is a write operation kind.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ChangeKind tags a change-feed event with what happened to the row.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Event is one push notification from the change feed. Delivery order
// is not guaranteed to match write order; consumers must treat events
// as idempotent invalidation hints, not as a replayable log.
type Event struct {
	Resource string
	Kind     ChangeKind
	RowID    string
	Tenant   string
}

// Subscription is one open change-feed channel scoped to a tenant and
// a set of watched resource types.
type Subscription interface {
	// Events delivers change notifications. The channel is closed
	// when the subscription is closed.
	Events() <-chan Event

	// Resets fires once after every successful re-subscribe that
	// follows a transient disconnect. Missed events are not replayed;
	// the consumer must treat everything it watches as unknown.
	Resets() <-chan struct{}

	// Close releases the channel. Idempotent.
	Close() error
}

// Store is the remote backend as seen by the caching layer.
type Store interface {
	// Query returns a snapshot of the rows of one resource type,
	// filtered by tenant and optional equality filters.
	Query(ctx context.Context, resource, tenant string, filters map[string]string) ([]models.Row, error)

	// Write performs one insert, update or delete. Insert and update
	// return the server-confirmed row including generated fields;
	// delete returns nil on success.
	Write(ctx context.Context, resource string, op Op, payload models.Row) (models.Row, error)

	// Subscribe opens a change feed for the tenant covering the given
	// resource types.
	Subscribe(ctx context.Context, tenant string, resources []string) (Subscription, error)

	// Identity returns the authenticated principal, if any.
	Identity() (models.Principal, bool)
}
