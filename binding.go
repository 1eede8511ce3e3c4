package planit

import (
	"context"
	"sync"
	"time"

	"github.com/kamalraji/planit-go/pkg/logger"
	"github.com/kamalraji/planit-go/pkg/models"
)

// FetchFunc loads the authoritative remote state for one key.
type FetchFunc func(ctx context.Context) (any, error)

// DefaultEvictionGrace is how long an entry with no interested
// consumers is kept before eviction.
const DefaultEvictionGrace = 30 * time.Second

// Binding keeps cache entries fresh for as long as someone is
// interested in them: it fetches on first interest, deduplicates
// concurrent fetches for the same key, refetches when an entry goes
// stale, and evicts entries a grace period after the last consumer
// releases them.
type Binding struct {
	cache *Cache
	log   logger.Logger
	grace time.Duration

	mu     sync.Mutex
	states map[string]*bindState
}

type bindState struct {
	key       Key
	fetch     FetchFunc
	interest  int
	flight    *flight
	evict     *time.Timer
	stopWatch func()
}

type flight struct {
	done chan struct{}
}

func NewBinding(cache *Cache, grace time.Duration, log logger.Logger) *Binding {
	if log == nil {
		log = logger.Nop()
	}
	if grace <= 0 {
		grace = DefaultEvictionGrace
	}
	return &Binding{
		cache:  cache,
		log:    log,
		grace:  grace,
		states: make(map[string]*bindState),
	}
}

// Lease represents one consumer's interest in a key. Release must be
// called when the consumer goes away; it is idempotent.
type Lease struct {
	binding  *Binding
	key      Key
	disabled bool

	once sync.Once
}

// Entry returns the current cache entry for the leased key.
func (l *Lease) Entry() Entry {
	if l.disabled {
		return Entry{Data: []models.Row{}, Status: StatusIdle}
	}
	return l.binding.cache.Get(l.key)
}

// Ready returns a channel closed once the fetch in flight (if any) has
// settled. When nothing is being fetched it is already closed.
func (l *Lease) Ready() <-chan struct{} {
	if l.disabled {
		return closedChan
	}
	l.binding.mu.Lock()
	defer l.binding.mu.Unlock()
	st := l.binding.states[l.key.String()]
	if st == nil || st.flight == nil {
		return closedChan
	}
	return st.flight.done
}

// Release withdraws this consumer's interest in the key.
func (l *Lease) Release() {
	l.once.Do(func() {
		if !l.disabled {
			l.binding.release(l.key)
		}
	})
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Bind registers interest in a key. A disabled key (no tenant yet)
// performs no fetch and yields an idle lease with an empty collection.
func (b *Binding) Bind(key Key, fetch FetchFunc) *Lease {
	if key.Disabled() {
		return &Lease{binding: b, key: key, disabled: true}
	}

	canon := key.String()
	b.mu.Lock()
	st, ok := b.states[canon]
	if !ok {
		st = &bindState{key: key, fetch: fetch}
		b.states[canon] = st
		st.stopWatch = b.cache.Watch(key, b.onChange)
	}
	st.fetch = fetch
	st.interest++
	if st.evict != nil {
		st.evict.Stop()
		st.evict = nil
	}
	b.mu.Unlock()

	entry := b.cache.Get(key)
	switch entry.Status {
	case StatusIdle, StatusStale, StatusError:
		b.startFetch(st)
	}

	return &Lease{binding: b, key: key}
}

// Interest returns how many consumers currently hold the key.
func (b *Binding) Interest(key Key) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.states[key.String()]; ok {
		return st.interest
	}
	return 0
}

// onChange refetches a key that went stale while consumers still hold
// it. Pending entries belong to an unsettled optimistic mutation and
// are left alone until the mutator invalidates them.
func (b *Binding) onChange(key Key, e Entry) {
	if e.Status != StatusStale {
		return
	}
	b.mu.Lock()
	st, ok := b.states[key.String()]
	if !ok || st.interest == 0 {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.startFetch(st)
}

// startFetch begins a fetch for the key unless one is already in
// flight (single-flight per key).
func (b *Binding) startFetch(st *bindState) {
	b.mu.Lock()
	if st.flight != nil {
		b.mu.Unlock()
		return
	}
	f := &flight{done: make(chan struct{})}
	st.flight = f
	fetch := st.fetch
	b.mu.Unlock()

	key := st.key
	gen := b.cache.Generation(key)
	prev := b.cache.Get(key)
	b.cache.Set(key, prev.Data, StatusFetching)

	go func() {
		data, err := fetch(context.Background())

		b.mu.Lock()
		if st.flight == f {
			st.flight = nil
		}
		b.mu.Unlock()

		if !b.cache.Current(key, gen) {
			b.log.Debug("dropping cancelled fetch result", "key", key.String())
			// A dropped result would otherwise strand the entry in
			// StatusFetching with nothing in flight; demoting it to
			// stale lets held interest trigger a fresh fetch.
			b.cache.demoteFetching(key)
			close(f.done)
			return
		}
		if err != nil {
			b.log.Warn("fetch failed", "key", key.String(), "error", err)
			b.cache.SetError(key, err)
		} else {
			b.cache.Set(key, data, StatusFresh)
		}
		close(f.done)
	}()
}

func (b *Binding) release(key Key) {
	canon := key.String()
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[canon]
	if !ok || st.interest == 0 {
		return
	}
	st.interest--
	if st.interest > 0 {
		return
	}
	st.evict = time.AfterFunc(b.grace, func() {
		b.mu.Lock()
		cur, ok := b.states[canon]
		if !ok || cur.interest > 0 || cur != st {
			b.mu.Unlock()
			return
		}
		stop := cur.stopWatch
		delete(b.states, canon)
		b.mu.Unlock()

		if stop != nil {
			stop()
		}
		b.cache.Evict(key)
		b.log.Debug("evicted idle entry", "key", canon)
	})
}
