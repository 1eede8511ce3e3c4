// The [planit] package is the client-side data-access layer for the
// plan-it-together backend: a shared cache of last-known remote state,
// query bindings that keep it fresh, optimistic mutations with exact
// rollback, and a change-feed bridge that invalidates cached entries
// when other clients write.
//
// # Keys and the cache
//
// Every cached query is identified by a [Key]: a resource type, the
// tenant that scopes it, and optional equality filters. The [Cache]
// holds one [Entry] per key with stale-while-revalidate semantics:
// invalidation marks data stale without discarding it, so consumers
// keep rendering the last-known value while a refetch runs.
//
// # Bindings
//
// [Client.Bind] registers interest in a key and returns a [Lease].
// While any lease is held the binding keeps the entry converging to
// fresh: it fetches on first interest, deduplicates concurrent fetches
// (single-flight per key), and refetches whenever the entry goes
// stale. Entries are evicted a grace period after the last lease is
// released.
//
// # Optimistic mutations
//
// [Client.Insert], [Client.Update] and [Client.Delete] apply a local
// patch to the cache before the remote write is issued. On success the
// key is invalidated so the next fetch reconciles server-generated
// fields; on failure the entry is rolled back to the exact
// pre-mutation snapshot and the error is returned. Per-key sequence
// numbers suppress a rollback once a later mutation has superseded it.
//
// # Change feeds
//
// [Client.Watch] joins a reference-counted subscription to the
// backend's change feed for one tenant. Events invalidate the matching
// cache entries; after a reconnect everything watched is invalidated
// wholesale, since missed events cannot be replayed.
//
// The remote side is abstracted by [github.com/kamalraji/planit-go/pkg/store.Store];
// the same package ships a websocket implementation with automatic
// reconnection.
package planit
