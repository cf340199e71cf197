// Package store is the action-driven synchronisation store for a site's
// activity log and rewind state.
//
// ARCHITECTURE:
//
// The Store owns no I/O of its own. It subscribes one handler to a
// dispatcher and reacts to the six action kinds:
//
//	command kind         result kind           effect
//	FETCH_ACTIVITIES  -> FETCHED_ACTIVITIES    reset/upsert entries
//	FETCH_REWIND_STATE-> FETCHED_REWIND_STATE  replace rewind status
//	REWIND            -> REWIND_RESULT         none (report only)
//
// A command starts exactly one RemoteSource call on its own goroutine and
// returns. The call's outcome is re-published as the result action,
// correlated to the command by ID. The result is reconciled into the Cache
// on the dispatcher worker and exactly one Change is broadcast.
//
// CONCURRENCY:
//
// The dispatcher runs the handler on a single worker, so reconciliations
// never overlap within one Store. A sitelock.Locker additionally guards the
// offset read and the delete/upsert pair per site, which keeps the
// direct-await path and other processes sharing the cache from
// interleaving with the worker.
//
// Known limitation: two loadMore fetches for the same site dispatched
// before either result arrives both read the same cached count and request
// the same offset. Upserts keyed by activity ID keep the cache free of
// duplicates, but the second page is fetched twice.
package store
