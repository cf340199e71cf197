// Package activity defines the domain model of a site's activity log.
//
// This package contains types only. The cache, remote client and store all
// import activity; activity imports nothing internal except canonical.
//
// Key types:
//   - Site: scope for every cache row and remote call
//   - LogEntry: one immutable activity record, unique by ActivityID per site
//   - RewindStatus: the single last-known restore state of a site
//   - Page: one window of entries plus the remote's total count
//
// Errors come in three independent domains that are never merged:
// FetchError, RewindStatusError and RewindError. Each carries a Kind and an
// optional human-readable message.
package activity
