package store

import (
	"context"
	"fmt"

	"github.com/roach88/actsync/internal/action"
	"github.com/roach88/actsync/internal/activity"
)

// offsetFor returns where the next window starts: 0 for a first page, the
// cached row count otherwise. The count is read inside the site lock.
func (s *Store) offsetFor(ctx context.Context, site activity.Site, loadMore bool) (int, error) {
	if !loadMore {
		return 0, nil
	}

	unlock, err := s.locker.Lock(ctx, site)
	if err != nil {
		return 0, fmt.Errorf("lock %s: %w", site, err)
	}
	defer unlock()

	n, err := s.cache.CountEntries(ctx, site)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) startFetchActivities(ctx context.Context, cmd action.Action, p action.FetchActivities) {
	number := s.pageSize
	offset, err := s.offsetFor(ctx, p.Site, p.LoadMore)
	if err != nil {
		// Without an offset there is no remote call, but the command
		// still gets its one Change.
		s.logger.Error("offset read failed", "action_id", cmd.ID, "site", p.Site.ID, "error", err)
		s.reply(cmd, action.FetchedActivities{
			Site:   p.Site,
			Number: number,
			Result: action.Fail[activity.Page](&activity.FetchError{
				Kind:    activity.FetchGeneric,
				Message: err.Error(),
			}),
		})
		return
	}

	s.logger.Debug("fetch activities",
		"action_id", cmd.ID,
		"site", p.Site.ID,
		"number", number,
		"offset", offset)

	s.goRemote(func() {
		page, err := s.remote.FetchActivities(ctx, p.Site, number, offset)
		result := action.Ok[activity.Page, *activity.FetchError](page)
		if err != nil {
			result = action.Fail[activity.Page](activity.AsFetchError(err))
		}
		s.reply(cmd, action.FetchedActivities{
			Site:   p.Site,
			Number: number,
			Offset: offset,
			Result: result,
		})
	})
}

func (s *Store) startFetchRewindState(ctx context.Context, cmd action.Action, p action.FetchRewindState) {
	s.logger.Debug("fetch rewind state", "action_id", cmd.ID, "site", p.Site.ID)

	s.goRemote(func() {
		status, err := s.remote.FetchRewindStatus(ctx, p.Site)
		result := action.Ok[*activity.RewindStatus, *activity.RewindStatusError](status)
		if err != nil {
			result = action.Fail[*activity.RewindStatus](activity.AsRewindStatusError(err))
		}
		s.reply(cmd, action.FetchedRewindState{Site: p.Site, Result: result})
	})
}

func (s *Store) startRewind(ctx context.Context, cmd action.Action, p action.Rewind) {
	s.logger.Debug("rewind", "action_id", cmd.ID, "site", p.Site.ID, "rewind_id", p.RewindID)

	s.goRemote(func() {
		restoreID, err := s.remote.Rewind(ctx, p.Site, p.RewindID)
		result := action.Ok[int64, *activity.RewindError](restoreID)
		if err != nil {
			result = action.Fail[int64](activity.AsRewindError(err))
		}
		s.reply(cmd, action.RewindResult{Site: p.Site, RewindID: p.RewindID, Result: result})
	})
}
