package planit

import (
	"context"
	"errors"
	"sync"

	"github.com/kamalraji/planit-go/pkg/logger"
	"github.com/kamalraji/planit-go/pkg/models"
)

// ErrDisabledKey is returned when a mutation targets a key without a
// tenant.
var ErrDisabledKey = errors.New("key has no tenant")

// Patch is a pure structural transform over cached data. It must not
// mutate its input; the helpers in this file copy before changing.
type Patch func(data any) any

// RemoteWrite performs the remote side of a mutation.
type RemoteWrite func(ctx context.Context) error

// Mutator applies optimistic mutations: the local patch lands in the
// cache before the remote write is issued, and the write's outcome
// decides between reconciliation (invalidate and refetch) and exact
// rollback to the pre-mutation snapshot.
type Mutator struct {
	cache *Cache
	log   logger.Logger

	mu  sync.Mutex
	seq map[string]uint64
}

func NewMutator(cache *Cache, log logger.Logger) *Mutator {
	if log == nil {
		log = logger.Nop()
	}
	return &Mutator{cache: cache, log: log, seq: make(map[string]uint64)}
}

// Mutate runs one optimistic mutation against key. The patch is
// applied synchronously before Mutate blocks on the write, so a caller
// running Mutate in its own goroutine observes the local change
// immediately.
//
// On success the key is invalidated so the binding refetches
// authoritative state; the optimistic patch is never trusted as final
// truth. On failure the entry is restored to the snapshot taken at the
// start of this mutation and the error is returned, unless a later
// mutation on the same key has started in the meantime, in which case
// the rollback is suppressed because the snapshot no longer describes
// anything current.
//
// The write runs detached from the caller's cancellation: a consumer
// going away must not abandon a write the shared cache depends on.
//
// The start (sequence claim plus optimistic patch) and the failure
// settle (suppression check plus restore) each run under one lock, so
// no mutation can interleave between a snapshot check and the cache
// write it guards.
func (m *Mutator) Mutate(ctx context.Context, key Key, patch Patch, write RemoteWrite) error {
	if key.Disabled() {
		return ErrDisabledKey
	}

	canon := key.String()

	m.mu.Lock()
	m.seq[canon]++
	mySeq := m.seq[canon]
	snapshot := m.cache.Get(key)
	gen := m.cache.Generation(key)
	m.cache.Set(key, patch(snapshot.Data), StatusPending)
	m.mu.Unlock()

	err := write(context.WithoutCancel(ctx))

	m.mu.Lock()
	if !m.cache.Current(key, gen) {
		m.mu.Unlock()
		m.log.Debug("mutation result dropped after cancel", "key", canon)
		return err
	}

	if err != nil {
		if m.seq[canon] == mySeq {
			m.rollback(key, snapshot)
		} else {
			m.log.Debug("rollback suppressed by later mutation", "key", canon)
		}
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.cache.Invalidate(key)
	return nil
}

// rollback restores the pre-mutation snapshot exactly. The one
// exception: a snapshot captured while an earlier mutation was still
// pending must not be restored as pending: that state belongs to a
// mutation that has since settled, so it comes back stale and the
// binding reconverges from the server.
func (m *Mutator) rollback(key Key, snapshot Entry) {
	if snapshot.Status == StatusPending {
		snapshot.Status = StatusStale
	}
	m.cache.restore(key, snapshot)
	m.log.Warn("mutation rolled back", "key", key.String())
}

// InsertRow returns a patch that prepends row to the cached
// collection. A row without an id gets a temp- placeholder that
// reconciliation replaces with the server-generated one.
func InsertRow(row models.Row) Patch {
	return func(data any) any {
		r := row.Clone()
		if r == nil {
			r = models.Row{}
		}
		if r.ID() == "" {
			r["id"] = models.TempID()
		}
		rows := collection(data)
		out := make([]models.Row, 0, len(rows)+1)
		out = append(out, r)
		out = append(out, models.CloneRows(rows)...)
		return out
	}
}

// MergeRow returns a patch that merges changes into the collection row
// with the given id, leaving every other row untouched.
func MergeRow(id string, changes models.Row) Patch {
	return func(data any) any {
		rows := collection(data)
		out := make([]models.Row, len(rows))
		for i, r := range rows {
			if r.ID() != id {
				out[i] = r
				continue
			}
			merged := r.Clone()
			for k, v := range changes {
				merged[k] = v
			}
			out[i] = merged
		}
		return out
	}
}

// RemoveRow returns a patch that filters the row with the given id out
// of the cached collection.
func RemoveRow(id string) Patch {
	return func(data any) any {
		rows := collection(data)
		out := make([]models.Row, 0, len(rows))
		for _, r := range rows {
			if r.ID() == id {
				continue
			}
			out = append(out, r)
		}
		return out
	}
}

// SetField returns a patch for single-item entries: it sets one field
// on the cached row, creating the row when nothing is cached yet.
func SetField(field string, value any) Patch {
	return func(data any) any {
		row, _ := data.(models.Row)
		out := row.Clone()
		if out == nil {
			out = models.Row{}
		}
		out[field] = value
		return out
	}
}

func collection(data any) []models.Row {
	rows, _ := data.([]models.Row)
	return rows
}
