package planit

import (
	"context"
	"time"

	"github.com/kamalraji/planit-go/pkg/logger"
	"github.com/kamalraji/planit-go/pkg/models"
	"github.com/kamalraji/planit-go/pkg/store"
)

// Client is the data-access surface the application consumes: cache
// reads through leases, optimistic mutations, and tenant-scoped change
// watching, all against one remote store.
type Client struct {
	store    store.Store
	cache    *Cache
	binding  *Binding
	mutator  *Mutator
	registry *Registry
	log      logger.Logger
}

type Option func(*clientOptions)

type clientOptions struct {
	log   logger.Logger
	grace time.Duration
}

// WithLogger sets the logger used by every component of the client.
func WithLogger(log logger.Logger) Option {
	return func(o *clientOptions) { o.log = log }
}

// WithEvictionGrace overrides how long unwatched entries linger before
// eviction.
func WithEvictionGrace(d time.Duration) Option {
	return func(o *clientOptions) { o.grace = d }
}

func New(st store.Store, opts ...Option) *Client {
	o := clientOptions{log: logger.Nop(), grace: DefaultEvictionGrace}
	for _, opt := range opts {
		opt(&o)
	}
	cache := NewCache(o.log)
	return &Client{
		store:    st,
		cache:    cache,
		binding:  NewBinding(cache, o.grace, o.log),
		mutator:  NewMutator(cache, o.log),
		registry: NewRegistry(cache, st, o.log),
		log:      o.log,
	}
}

// Cache exposes the underlying cache, mainly for consumers that need
// Watch or CancelPending directly.
func (c *Client) Cache() *Cache { return c.cache }

// Bind registers interest in a key and keeps it fresh. The fetch runs
// against the remote store with the key's tenant and filters.
func (c *Client) Bind(key Key) *Lease {
	return c.binding.Bind(key, func(ctx context.Context) (any, error) {
		rows, err := c.store.Query(ctx, key.Resource, key.Tenant, key.Filters())
		if err != nil {
			return nil, err
		}
		return rows, nil
	})
}

// Watch opens (or joins) the shared change feed for a tenant.
func (c *Client) Watch(ctx context.Context, tenant string, resources ...string) (*Handle, error) {
	return c.registry.Watch(ctx, tenant, resources...)
}

// Mutate runs a custom optimistic mutation. Most callers want Insert,
// Update or Delete instead.
func (c *Client) Mutate(ctx context.Context, key Key, patch Patch, write RemoteWrite) error {
	return c.mutator.Mutate(ctx, key, patch, write)
}

// WriteOption adjusts how convenience mutations build their payloads.
type WriteOption func(*writeOptions)

type writeOptions struct {
	requireActor bool
}

// Authored requires an authenticated actor and stamps the audit
// columns. Without an identity the mutation fails fast, before any
// optimistic patch is applied; a null actor must never be written
// where the domain requires one.
func Authored() WriteOption {
	return func(o *writeOptions) { o.requireActor = true }
}

// Insert optimistically prepends row to the key's cached collection
// and writes it to the remote store. Rows without an id get a temp-
// placeholder until reconciliation brings back the generated one.
func (c *Client) Insert(ctx context.Context, key Key, row models.Row, opts ...WriteOption) error {
	payload, err := c.payload(key, row, "created_by", opts)
	if err != nil {
		return err
	}
	return c.mutator.Mutate(ctx, key, InsertRow(row), func(ctx context.Context) error {
		_, err := c.store.Write(ctx, key.Resource, store.OpInsert, payload)
		return err
	})
}

// Update optimistically merges changes into the collection row with
// the given id and writes them remotely.
func (c *Client) Update(ctx context.Context, key Key, id string, changes models.Row, opts ...WriteOption) error {
	payload, err := c.payload(key, changes, "updated_by", opts)
	if err != nil {
		return err
	}
	payload["id"] = id
	return c.mutator.Mutate(ctx, key, MergeRow(id, changes), func(ctx context.Context) error {
		_, err := c.store.Write(ctx, key.Resource, store.OpUpdate, payload)
		return err
	})
}

// Delete optimistically removes the row from the cached collection and
// deletes it remotely. On failure the collection is restored exactly,
// original position included.
func (c *Client) Delete(ctx context.Context, key Key, id string) error {
	return c.mutator.Mutate(ctx, key, RemoveRow(id), func(ctx context.Context) error {
		_, err := c.store.Write(ctx, key.Resource, store.OpDelete, models.Row{
			"id":        id,
			"tenant_id": key.Tenant,
		})
		return err
	})
}

// payload builds the wire row: the caller's fields, the tenant column,
// and the actor stamp when one is available or required.
func (c *Client) payload(key Key, row models.Row, actorField string, opts []WriteOption) (models.Row, error) {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}

	out := row.Clone()
	if out == nil {
		out = models.Row{}
	}
	if _, ok := out["tenant_id"]; !ok {
		out["tenant_id"] = key.Tenant
	}

	principal, ok := c.store.Identity()
	if !ok && o.requireActor {
		return nil, store.ErrNoIdentity
	}
	if ok {
		if _, set := out[actorField]; !set {
			out[actorField] = principal.ID
		}
	}
	return out, nil
}
