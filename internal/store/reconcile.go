package store

import (
	"context"

	"github.com/roach88/actsync/internal/action"
	"github.com/roach88/actsync/internal/activity"
)

// reconcileActivities applies a fetched page. A page at offset 0 replaces
// the site's cached entries; any other page is merged by activity ID.
func (s *Store) reconcileActivities(ctx context.Context, a action.Action, p action.FetchedActivities) Change {
	c := Change{
		ActionID: a.Origin(),
		Site:     p.Site,
		Cause:    action.KindFetchActivities,
	}

	if ferr, failed := p.Result.Err(); failed {
		// The window was not consumed, so it can be requested again.
		c.Err = ferr
		c.CanLoadMore = true
		return c
	}

	page, _ := p.Result.Value()
	c.RowsAffected = s.writePage(ctx, p.Site, p.Offset, page.Entries)
	c.CanLoadMore = canLoadMore(page, p.Offset, p.Number)
	return c
}

// canLoadMore reports whether another window exists after this one.
func canLoadMore(page activity.Page, offset, number int) bool {
	return len(page.Entries) > 0 && offset+number < page.TotalItems
}

// writePage stores entries under the site lock and returns the rows
// written. A page at offset 0 replaces the site's entries atomically.
// Cache failures are logged, count as zero rows and leave the cache as it
// was.
func (s *Store) writePage(ctx context.Context, site activity.Site, offset int, entries []activity.LogEntry) int {
	unlock, err := s.locker.Lock(ctx, site)
	if err != nil {
		s.logger.Error("cache write skipped: lock failed", "site", site.ID, "error", err)
		return 0
	}
	defer unlock()

	if offset == 0 {
		n, err := s.cache.ReplaceEntries(ctx, site, entries)
		if err != nil {
			s.logger.Error("cache reset failed", "site", site.ID, "entries", len(entries), "error", err)
			return 0
		}
		return n
	}

	n, err := s.cache.UpsertEntries(ctx, site, entries)
	if err != nil {
		s.logger.Error("cache upsert failed", "site", site.ID, "entries", len(entries), "error", err)
		return 0
	}
	return n
}

// reconcileRewindState replaces the stored status. A nil status means
// nothing new and leaves the cache untouched.
func (s *Store) reconcileRewindState(ctx context.Context, a action.Action, p action.FetchedRewindState) Change {
	c := Change{
		ActionID: a.Origin(),
		Site:     p.Site,
		Cause:    action.KindFetchRewindState,
	}

	if serr, failed := p.Result.Err(); failed {
		c.Err = serr
		return c
	}

	status, _ := p.Result.Value()
	if status == nil {
		return c
	}

	unlock, err := s.locker.Lock(ctx, p.Site)
	if err != nil {
		s.logger.Error("rewind status write skipped: lock failed", "site", p.Site.ID, "error", err)
		return c
	}
	defer unlock()

	if err := s.cache.ReplaceRewindStatus(ctx, p.Site, *status); err != nil {
		s.logger.Error("rewind status write failed", "site", p.Site.ID, "error", err)
		return c
	}
	c.RowsAffected = 1
	return c
}

// reconcileRewind reports a rewind outcome. The cache is never touched:
// the new restore only becomes visible through a later FetchRewindState.
func (s *Store) reconcileRewind(a action.Action, p action.RewindResult) Change {
	c := Change{
		ActionID: a.Origin(),
		Site:     p.Site,
		Cause:    action.KindRewind,
		RewindID: p.RewindID,
	}

	if rerr, failed := p.Result.Err(); failed {
		c.Err = rerr
		return c
	}

	c.RestoreID, _ = p.Result.Value()
	return c
}
