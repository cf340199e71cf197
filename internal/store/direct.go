package store

import (
	"context"
	"fmt"

	"github.com/roach88/actsync/internal/action"
	"github.com/roach88/actsync/internal/activity"
)

// FetchActivitiesNow fetches one window on the caller's goroutine and
// reconciles it with the same rules as a dispatched FetchActivities.
//
// It returns the site's entries in ascending order after the write, and
// the Change it computed. The Change is returned, not broadcast, and has
// no ActionID. A remote failure is reported in Change.Err; the returned
// error is set only when the final cache read fails.
func (s *Store) FetchActivitiesNow(ctx context.Context, site activity.Site, loadMore bool) ([]activity.LogEntry, Change, error) {
	c := Change{Site: site, Cause: action.KindFetchActivities}
	number := s.pageSize

	offset, err := s.offsetFor(ctx, site, loadMore)
	if err != nil {
		c.Err = &activity.FetchError{Kind: activity.FetchGeneric, Message: err.Error()}
		c.CanLoadMore = true
	} else {
		page, rerr := s.remote.FetchActivities(ctx, site, number, offset)
		if rerr != nil {
			c.Err = activity.AsFetchError(rerr)
			c.CanLoadMore = true
		} else {
			c.RowsAffected = s.writePage(ctx, site, offset, page.Entries)
			c.CanLoadMore = canLoadMore(page, offset, number)
		}
	}

	entries, err := s.cache.Entries(ctx, site, activity.Ascending)
	if err != nil {
		return nil, c, fmt.Errorf("read entries after fetch: %w", err)
	}
	return entries, c, nil
}
