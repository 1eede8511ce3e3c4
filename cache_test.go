package planit_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	planit "github.com/kamalraji/planit-go"
	"github.com/kamalraji/planit-go/pkg/models"
)

func rows(ids ...string) []models.Row {
	out := make([]models.Row, len(ids))
	for i, id := range ids {
		out[i] = models.Row{"id": id}
	}
	return out
}

func TestCacheIdlePlaceholder(t *testing.T) {
	c := planit.NewCache(nil)
	e := c.Get(planit.CollectionKey("campaigns", "evt-1"))

	assert.Equal(t, planit.StatusIdle, e.Status)
	assert.Nil(t, e.Data)
	assert.NoError(t, e.Err)
}

func TestCacheSetAndGet(t *testing.T) {
	c := planit.NewCache(nil)
	key := planit.CollectionKey("campaigns", "evt-1")

	c.Set(key, rows("c1", "c2"), planit.StatusFresh)

	e := c.Get(key)
	assert.Equal(t, planit.StatusFresh, e.Status)
	assert.Len(t, e.Data, 2)
}

func TestCacheStaleWhileRevalidate(t *testing.T) {
	c := planit.NewCache(nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	c.Set(key, rows("c1"), planit.StatusFresh)

	c.Invalidate(key)

	e := c.Get(key)
	assert.Equal(t, planit.StatusStale, e.Status)
	require.NotNil(t, e.Data, "invalidation must not discard last-known data")
	assert.Equal(t, rows("c1"), e.Data)
}

func TestCacheErrorRetainsData(t *testing.T) {
	c := planit.NewCache(nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	c.Set(key, rows("c1"), planit.StatusFresh)

	fetchErr := errors.New("permission denied")
	c.SetError(key, fetchErr)

	e := c.Get(key)
	assert.Equal(t, planit.StatusError, e.Status)
	assert.Equal(t, rows("c1"), e.Data, "consumers keep rendering the last-known value")
	assert.ErrorIs(t, e.Err, fetchErr)
}

func TestCacheInvalidateIsIdempotent(t *testing.T) {
	c := planit.NewCache(nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	c.Set(key, rows("c1"), planit.StatusFresh)

	var notified int
	stop := c.Watch(key, func(planit.Key, planit.Entry) { notified++ })
	defer stop()

	c.Invalidate(key)
	c.Invalidate(key)
	c.Invalidate(key)

	assert.Equal(t, 1, notified, "repeat invalidations before the next read must be no-ops")
	assert.Equal(t, planit.StatusStale, c.Get(key).Status)
}

func TestCacheInvalidateNeverResurrectsOlderData(t *testing.T) {
	c := planit.NewCache(nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	c.Set(key, 0, planit.StatusFresh)

	// Invalidate and SetError derive their entry from the previous one;
	// racing them against Set must never let an older read win.
	const writes = 500
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			c.Set(key, i, planit.StatusFresh)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			c.Invalidate(key)
			c.SetError(key, errors.New("transient"))
		}
	}()
	wg.Wait()

	assert.Equal(t, writes, c.Get(key).Data, "status transitions must retain the latest data")
}

func TestCacheInvalidateUnknownKeyIsNoop(t *testing.T) {
	c := planit.NewCache(nil)
	key := planit.CollectionKey("campaigns", "evt-1")

	c.Invalidate(key)

	assert.Equal(t, planit.StatusIdle, c.Get(key).Status)
}

func TestCacheInvalidateResource(t *testing.T) {
	c := planit.NewCache(nil)
	active := planit.NewKey("campaigns", "evt-1", map[string]string{"status": "active"})
	all := planit.CollectionKey("campaigns", "evt-1")
	otherTenant := planit.CollectionKey("campaigns", "evt-2")
	otherResource := planit.CollectionKey("sponsors", "evt-1")
	for _, k := range []planit.Key{active, all, otherTenant, otherResource} {
		c.Set(k, rows("x"), planit.StatusFresh)
	}

	c.InvalidateResource("campaigns", "evt-1")

	assert.Equal(t, planit.StatusStale, c.Get(active).Status, "filtered key of the resource must be hit")
	assert.Equal(t, planit.StatusStale, c.Get(all).Status)
	assert.Equal(t, planit.StatusFresh, c.Get(otherTenant).Status)
	assert.Equal(t, planit.StatusFresh, c.Get(otherResource).Status)
}

func TestCacheWatchStop(t *testing.T) {
	c := planit.NewCache(nil)
	key := planit.CollectionKey("campaigns", "evt-1")

	var notified int
	stop := c.Watch(key, func(planit.Key, planit.Entry) { notified++ })

	c.Set(key, rows("c1"), planit.StatusFresh)
	stop()
	c.Set(key, rows("c2"), planit.StatusFresh)

	assert.Equal(t, 1, notified)
}

func TestCacheCancelPendingGenerations(t *testing.T) {
	c := planit.NewCache(nil)
	key := planit.CollectionKey("campaigns", "evt-1")

	gen := c.Generation(key)
	assert.True(t, c.Current(key, gen))

	c.CancelPending(key)
	assert.False(t, c.Current(key, gen))
	assert.True(t, c.Current(key, c.Generation(key)))
}

func TestCacheEvict(t *testing.T) {
	c := planit.NewCache(nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	c.Set(key, rows("c1"), planit.StatusFresh)

	c.Evict(key)

	assert.Equal(t, planit.StatusIdle, c.Get(key).Status)
	assert.Nil(t, c.Get(key).Data)
}
