package planit

import (
	"sync"

	"github.com/kamalraji/planit-go/pkg/logger"
)

// Status is the freshness state of one cache entry.
type Status int

const (
	// StatusIdle means no fetch has been requested yet.
	StatusIdle Status = iota
	// StatusFetching means a fetch is in flight.
	StatusFetching
	// StatusFresh means Data is the last confirmed remote state.
	StatusFresh
	// StatusPending means an optimistic patch is applied and its
	// remote write has not settled yet.
	StatusPending
	// StatusStale means Data is the last known value but a change has
	// been signalled; a refetch is due.
	StatusStale
	// StatusError means the last fetch failed; Data is retained from
	// before the failure, Err carries the cause.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusFresh:
		return "fresh"
	case StatusPending:
		return "pending"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Entry is the cached state of one Key. Data is either a []models.Row
// collection or a single models.Row; nil means nothing is known yet.
// Consumers must treat Data as immutable.
type Entry struct {
	Data   any
	Status Status
	Err    error
}

// Cache is the process-wide store of last-known remote state, keyed by
// Key. All mutation goes through Set/SetError/Invalidate; Get never
// blocks and never fails.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	keys     map[string]Key
	watchers map[string]map[int]func(Key, Entry)
	nextID   int
	gens     map[string]uint64

	log logger.Logger
}

func NewCache(log logger.Logger) *Cache {
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		entries:  make(map[string]Entry),
		keys:     make(map[string]Key),
		watchers: make(map[string]map[int]func(Key, Entry)),
		gens:     make(map[string]uint64),
		log:      log,
	}
}

// Get returns the current entry, or an idle placeholder when the key
// has never been seen.
func (c *Cache) Get(key Key) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key.String()]; ok {
		return e
	}
	return Entry{Status: StatusIdle}
}

// Set replaces the entry and synchronously notifies watchers of the
// key. Err is cleared.
func (c *Cache) Set(key Key, data any, status Status) {
	c.put(key, Entry{Data: data, Status: status})
}

// SetError records a fetch failure. The previous data is retained so
// consumers can keep rendering the last-known value.
func (c *Cache) SetError(key Key, err error) {
	c.update(key, func(prev Entry, _ bool) (Entry, bool) {
		return Entry{Data: prev.Data, Status: StatusError, Err: err}, true
	})
}

// Invalidate marks the entry stale while retaining its data
// (stale-while-revalidate). Invalidating an already-stale or unknown
// key is a no-op, which makes repeated and out-of-order invalidations
// harmless.
func (c *Cache) Invalidate(key Key) {
	c.update(key, func(prev Entry, ok bool) (Entry, bool) {
		if !ok || prev.Status == StatusStale {
			return prev, false
		}
		return Entry{Data: prev.Data, Status: StatusStale, Err: prev.Err}, true
	})
}

// InvalidateResource invalidates every cached key of one resource type
// within a tenant, whatever its filters. The subscription bridge maps
// change events onto cache state through this.
func (c *Cache) InvalidateResource(resource, tenant string) {
	c.mu.Lock()
	matched := make([]Key, 0, 4)
	for canon, k := range c.keys {
		if k.Resource != resource || k.Tenant != tenant {
			continue
		}
		if e, ok := c.entries[canon]; ok && e.Status != StatusStale {
			matched = append(matched, k)
		}
	}
	c.mu.Unlock()
	for _, k := range matched {
		c.Invalidate(k)
	}
}

// CancelPending tells in-flight fetches and mutations against the key
// to discard their result when it eventually arrives.
func (c *Cache) CancelPending(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key.String()]++
}

// Generation returns the cancellation generation for the key. An
// asynchronous operation captures it at start and checks it with
// Current before applying its result.
func (c *Cache) Generation(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key.String()]
}

// Current reports whether a generation captured earlier is still the
// live one, i.e. no CancelPending happened in between.
func (c *Cache) Current(key Key, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key.String()] == gen
}

// Watch registers a synchronous change callback for the key. The
// returned stop function unregisters it.
func (c *Cache) Watch(key Key, fn func(Key, Entry)) (stop func()) {
	canon := key.String()
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	if c.watchers[canon] == nil {
		c.watchers[canon] = make(map[int]func(Key, Entry))
	}
	c.watchers[canon][id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers[canon], id)
		if len(c.watchers[canon]) == 0 {
			delete(c.watchers, canon)
		}
	}
}

// Evict drops the entry entirely. The query binding calls this after
// the idle grace period; nothing else should.
func (c *Cache) Evict(key Key) {
	canon := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, canon)
	delete(c.keys, canon)
	delete(c.gens, canon)
}

// restore puts back an exact pre-mutation snapshot, including any
// recorded error. Used only by rollback.
func (c *Cache) restore(key Key, e Entry) {
	c.put(key, e)
}

// demoteFetching marks a fetching entry stale. The binding uses this
// when it discards a cancelled fetch result, so the key is not left
// stranded in StatusFetching with nothing in flight.
func (c *Cache) demoteFetching(key Key) {
	c.update(key, func(prev Entry, ok bool) (Entry, bool) {
		if !ok || prev.Status != StatusFetching {
			return prev, false
		}
		return Entry{Data: prev.Data, Status: StatusStale, Err: prev.Err}, true
	})
}

func (c *Cache) put(key Key, e Entry) {
	c.update(key, func(Entry, bool) (Entry, bool) { return e, true })
}

// update applies transform to the current entry in one critical
// section, so a concurrent Set cannot land between the read of the
// previous entry and the write derived from it. Watchers are notified
// after the lock is released, and only when transform reports a
// change.
func (c *Cache) update(key Key, transform func(prev Entry, ok bool) (Entry, bool)) {
	canon := key.String()
	c.mu.Lock()
	prev, ok := c.entries[canon]
	next, changed := transform(prev, ok)
	if !changed {
		c.mu.Unlock()
		return
	}
	c.entries[canon] = next
	c.keys[canon] = key
	notify := make([]func(Key, Entry), 0, len(c.watchers[canon]))
	for _, fn := range c.watchers[canon] {
		notify = append(notify, fn)
	}
	c.mu.Unlock()

	c.log.Debug("cache entry updated", "key", canon, "status", next.Status.String())
	for _, fn := range notify {
		fn(key, next)
	}
}
