package planit

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/kamalraji/planit-go/pkg/logger"
	"github.com/kamalraji/planit-go/pkg/store"
)

// ErrNoTenant is returned when a watch is requested without a tenant.
var ErrNoTenant = errors.New("tenant id required")

// Registry bridges the remote change feed into cache invalidation.
// Consumers watching the same tenant and resource set share one
// underlying subscription; the channel is closed when the last handle
// is released.
type Registry struct {
	cache *Cache
	store store.Store
	log   logger.Logger

	mu     sync.Mutex
	shared map[string]*sharedSub
}

type sharedSub struct {
	tenant    string
	resources []string
	refs      int
	sub       store.Subscription
	done      chan struct{}
}

func NewRegistry(cache *Cache, st store.Store, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		cache:  cache,
		store:  st,
		log:    log,
		shared: make(map[string]*sharedSub),
	}
}

// Handle is one consumer's stake in a shared subscription. Close is
// idempotent and must be called on every exit path of the owner.
type Handle struct {
	reg  *Registry
	sig  string
	once sync.Once
}

func (h *Handle) Close() error {
	h.once.Do(func() {
		h.reg.release(h.sig)
	})
	return nil
}

// Watch subscribes to change events for the given resource types
// within a tenant. Every event invalidates the matching cache entries;
// after a reconnect all watched resources are invalidated wholesale,
// since missed events cannot be recovered.
func (r *Registry) Watch(ctx context.Context, tenant string, resources ...string) (*Handle, error) {
	if tenant == "" {
		return nil, ErrNoTenant
	}
	watched := make([]string, len(resources))
	copy(watched, resources)
	sort.Strings(watched)
	sig := tenant + "\x1f" + strings.Join(watched, ",")

	r.mu.Lock()
	if s, ok := r.shared[sig]; ok {
		s.refs++
		r.mu.Unlock()
		return &Handle{reg: r, sig: sig}, nil
	}
	r.mu.Unlock()

	sub, err := r.store.Subscribe(ctx, tenant, watched)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// Lost the race with another Watch for the same signature: keep
	// theirs, fold into it.
	if s, ok := r.shared[sig]; ok {
		s.refs++
		r.mu.Unlock()
		_ = sub.Close()
		return &Handle{reg: r, sig: sig}, nil
	}
	s := &sharedSub{
		tenant:    tenant,
		resources: watched,
		refs:      1,
		sub:       sub,
		done:      make(chan struct{}),
	}
	r.shared[sig] = s
	r.mu.Unlock()

	go r.pump(s)
	r.log.Debug("change feed opened", "tenant", tenant, "resources", strings.Join(watched, ","))
	return &Handle{reg: r, sig: sig}, nil
}

// Watchers reports how many handles share the subscription for the
// given tenant and resource set.
func (r *Registry) Watchers(tenant string, resources ...string) int {
	watched := make([]string, len(resources))
	copy(watched, resources)
	sort.Strings(watched)
	sig := tenant + "\x1f" + strings.Join(watched, ",")

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.shared[sig]; ok {
		return s.refs
	}
	return 0
}

func (r *Registry) pump(s *sharedSub) {
	for {
		select {
		case ev, ok := <-s.sub.Events():
			if !ok {
				return
			}
			// Invalidation is idempotent, so out-of-order or
			// duplicated events are harmless.
			r.cache.InvalidateResource(ev.Resource, s.tenant)
		case <-s.sub.Resets():
			r.log.Info("change feed reconnected, invalidating watched resources", "tenant", s.tenant)
			for _, res := range s.resources {
				r.cache.InvalidateResource(res, s.tenant)
			}
		case <-s.done:
			return
		}
	}
}

func (r *Registry) release(sig string) {
	r.mu.Lock()
	s, ok := r.shared[sig]
	if !ok {
		r.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.shared, sig)
	r.mu.Unlock()

	close(s.done)
	if err := s.sub.Close(); err != nil {
		r.log.Warn("closing change feed", "tenant", s.tenant, "error", err)
	}
	r.log.Debug("change feed closed", "tenant", s.tenant)
}
