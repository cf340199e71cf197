// Package cache is the durable local copy of each site's activity log and
// rewind status.
//
// The cache is a plain SQLite database. Two drivers are supported:
//   - "sqlite3": github.com/mattn/go-sqlite3 (cgo, the default)
//   - "sqlite":  modernc.org/sqlite (pure Go)
//
// Rows are keyed by (site_id, activity_id). Each entry row carries the
// canonical content hash of its fields; UpsertEntries only rewrites a row
// whose hash changed, so the reported row count means "rows whose content
// changed" and a re-fetch of identical data reports zero.
//
// The cache does no locking of its own beyond SQLite's. Callers that need
// delete-then-upsert to appear atomic to other writers hold a site lock
// around both calls.
package cache
