package store

import (
	"context"

	"github.com/roach88/actsync/internal/activity"
)

// Entries returns the site's cached entries ordered by published time.
// It never contacts the remote.
func (s *Store) Entries(ctx context.Context, site activity.Site, order activity.Order) ([]activity.LogEntry, error) {
	return s.cache.Entries(ctx, site, order)
}

// EntryByActivityID returns one cached entry, or nil if it is not cached.
func (s *Store) EntryByActivityID(ctx context.Context, site activity.Site, activityID string) (*activity.LogEntry, error) {
	return s.cache.EntryByActivityID(ctx, site, activityID)
}

// EntryByRewindID returns the cached entry carrying rewindID, or nil.
func (s *Store) EntryByRewindID(ctx context.Context, site activity.Site, rewindID string) (*activity.LogEntry, error) {
	return s.cache.EntryByRewindID(ctx, site, rewindID)
}

// RewindStatus returns the site's cached rewind status, or nil.
func (s *Store) RewindStatus(ctx context.Context, site activity.Site) (*activity.RewindStatus, error) {
	return s.cache.RewindStatus(ctx, site)
}

// CountEntries returns the number of cached entries for the site.
func (s *Store) CountEntries(ctx context.Context, site activity.Site) (int, error) {
	return s.cache.CountEntries(ctx, site)
}
