package planit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	planit "github.com/kamalraji/planit-go"
	"github.com/kamalraji/planit-go/pkg/models"
)

func TestMutateAppliesPatchBeforeWrite(t *testing.T) {
	cache := planit.NewCache(nil)
	m := planit.NewMutator(cache, nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	cache.Set(key, rows("c1"), planit.StatusFresh)

	var duringWrite planit.Entry
	err := m.Mutate(context.Background(), key, planit.InsertRow(models.Row{"id": "c2"}), func(ctx context.Context) error {
		duringWrite = cache.Get(key)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, planit.StatusPending, duringWrite.Status, "optimistic patch must land before the write runs")
	assert.Len(t, duringWrite.Data, 2)

	// Success invalidates so the binding refetches authoritative state.
	assert.Equal(t, planit.StatusStale, cache.Get(key).Status)
}

func TestMutateRollbackIsExact(t *testing.T) {
	cache := planit.NewCache(nil)
	m := planit.NewMutator(cache, nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	cache.Set(key, rows("c1", "c2"), planit.StatusFresh)
	snapshot := cache.Get(key)

	writeErr := errors.New("row level security violation")
	err := m.Mutate(context.Background(), key, planit.MergeRow("c1", models.Row{"title": "Edited"}), func(ctx context.Context) error {
		return writeErr
	})

	assert.ErrorIs(t, err, writeErr, "mutation failures surface to the caller")
	assert.Equal(t, snapshot, cache.Get(key), "rollback must restore the pre-mutation snapshot exactly")
}

func TestMutateRollbackSuppressedBySupersedingMutation(t *testing.T) {
	cache := planit.NewCache(nil)
	m := planit.NewMutator(cache, nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	cache.Set(key, rows("c1"), planit.StatusFresh)

	errA := make(chan error)
	doneA := make(chan error, 1)
	go func() {
		doneA <- m.Mutate(context.Background(), key, planit.MergeRow("c1", models.Row{"title": "A"}), func(ctx context.Context) error {
			return <-errA
		})
	}()
	require.Eventually(t, func() bool {
		e := cache.Get(key)
		if e.Status != planit.StatusPending {
			return false
		}
		return e.Data.([]models.Row)[0]["title"] == "A"
	}, waitFor, tick)

	errB := make(chan error)
	doneB := make(chan error, 1)
	go func() {
		doneB <- m.Mutate(context.Background(), key, planit.MergeRow("c1", models.Row{"title": "B"}), func(ctx context.Context) error {
			return <-errB
		})
	}()
	require.Eventually(t, func() bool {
		e := cache.Get(key)
		return e.Data.([]models.Row)[0]["title"] == "B"
	}, waitFor, tick)

	// A fails after B has superseded it: A's rollback must not clobber
	// B's optimistic state.
	errA <- errors.New("a failed")
	require.Error(t, <-doneA)
	e := cache.Get(key)
	assert.Equal(t, "B", e.Data.([]models.Row)[0]["title"], "stale rollback must be suppressed")
	assert.Equal(t, planit.StatusPending, e.Status)

	// B fails too: it rolls back to its own snapshot, which still
	// carries A's unsettled patch, demoted to stale so the binding can
	// reconverge from the server.
	errB <- errors.New("b failed")
	require.Error(t, <-doneB)
	e = cache.Get(key)
	assert.Equal(t, "A", e.Data.([]models.Row)[0]["title"])
	assert.Equal(t, planit.StatusStale, e.Status)
}

func TestMutateLateFailureAfterSupersederResolved(t *testing.T) {
	cache := planit.NewCache(nil)
	m := planit.NewMutator(cache, nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	cache.Set(key, rows("c1"), planit.StatusFresh)

	errA := make(chan error)
	doneA := make(chan error, 1)
	go func() {
		doneA <- m.Mutate(context.Background(), key, planit.MergeRow("c1", models.Row{"title": "A"}), func(ctx context.Context) error {
			return <-errA
		})
	}()
	require.Eventually(t, func() bool {
		e := cache.Get(key)
		return e.Status == planit.StatusPending && e.Data.([]models.Row)[0]["title"] == "A"
	}, waitFor, tick)

	// B starts and fails while A's write is still in flight. B is the
	// latest mutation on the key, so it rolls back to its own snapshot,
	// demoting A's unsettled patch to stale.
	errB := errors.New("b failed")
	err := m.Mutate(context.Background(), key, planit.MergeRow("c1", models.Row{"title": "B"}), func(ctx context.Context) error {
		return errB
	})
	require.ErrorIs(t, err, errB)
	resolved := cache.Get(key)
	require.Equal(t, "A", resolved.Data.([]models.Row)[0]["title"])
	require.Equal(t, planit.StatusStale, resolved.Status)

	// A's failure lands only after B has fully settled: its rollback
	// must be suppressed and B's resolution left untouched.
	errA <- errors.New("a failed")
	require.Error(t, <-doneA)
	assert.Equal(t, resolved, cache.Get(key), "a superseded rollback must not clobber settled state")
}

func TestMutateDeleteOptimism(t *testing.T) {
	cache := planit.NewCache(nil)
	m := planit.NewMutator(cache, nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	original := rows("c1", "c2", "c3")
	cache.Set(key, original, planit.StatusFresh)

	var duringWrite planit.Entry
	writeErr := errors.New("delete rejected")
	err := m.Mutate(context.Background(), key, planit.RemoveRow("c2"), func(ctx context.Context) error {
		duringWrite = cache.Get(key)
		return writeErr
	})
	require.ErrorIs(t, err, writeErr)

	assert.Equal(t, rows("c1", "c3"), duringWrite.Data, "optimistic delete excludes the row immediately")
	restored := cache.Get(key)
	assert.Equal(t, original, restored.Data, "failed delete restores the row in its original position")
	assert.Equal(t, planit.StatusFresh, restored.Status)
}

func TestMutateInsertBeforeAnyFetch(t *testing.T) {
	cache := planit.NewCache(nil)
	m := planit.NewMutator(cache, nil)
	key := planit.CollectionKey("campaigns", "evt-1")

	var duringWrite planit.Entry
	err := m.Mutate(context.Background(), key, planit.InsertRow(models.Row{"title": "New campaign"}), func(ctx context.Context) error {
		duringWrite = cache.Get(key)
		return nil
	})
	require.NoError(t, err)

	got := duringWrite.Data.([]models.Row)
	require.Len(t, got, 1, "patching an absent entry synthesizes a placeholder collection")
	assert.True(t, models.IsTempID(got[0].ID()), "placeholder must be distinguishable from confirmed rows")
	assert.Equal(t, "New campaign", got[0]["title"])
}

func TestMutateDisabledKey(t *testing.T) {
	cache := planit.NewCache(nil)
	m := planit.NewMutator(cache, nil)
	key := planit.CollectionKey("campaigns", "")

	called := false
	err := m.Mutate(context.Background(), key, planit.SetField("title", "x"), func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, planit.ErrDisabledKey)
	assert.False(t, called)
}

func TestMutateSurvivesCallerCancellation(t *testing.T) {
	cache := planit.NewCache(nil)
	m := planit.NewMutator(cache, nil)
	key := planit.CollectionKey("campaigns", "evt-1")
	cache.Set(key, rows("c1"), planit.StatusFresh)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Mutate(ctx, key, planit.MergeRow("c1", models.Row{"title": "x"}), func(ctx context.Context) error {
		// The write context must outlive the originating consumer.
		return ctx.Err()
	})
	assert.NoError(t, err, "in-flight writes run to completion even when the caller is gone")
}

func TestPatchesAreCopyOnWrite(t *testing.T) {
	original := rows("c1", "c2")

	patched := planit.MergeRow("c1", models.Row{"title": "Edited"})(original).([]models.Row)

	assert.Equal(t, "Edited", patched[0]["title"])
	_, mutated := original[0]["title"]
	assert.False(t, mutated, "patches must not mutate the snapshot they were given")

	removed := planit.RemoveRow("c1")(original).([]models.Row)
	assert.Len(t, removed, 1)
	assert.Len(t, original, 2)
}

func TestSetFieldOnItemEntry(t *testing.T) {
	row := models.Row{"id": "c1", "title": "Launch gala"}

	patched := planit.SetField("title", "Renamed")(row).(models.Row)

	assert.Equal(t, "Renamed", patched["title"])
	assert.Equal(t, "Launch gala", row["title"])

	created := planit.SetField("title", "From nothing")(nil).(models.Row)
	assert.Equal(t, "From nothing", created["title"])
}
