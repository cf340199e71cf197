package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/actsync/internal/activity"
)

const entryColumns = `activity_id, summary, text, name, type, gridicon, status,
	rewindable, rewind_id, published, discarded, actor`

// Entries returns every entry for a site ordered by published time, with
// activity_id as the tie breaker.
//
// Returns an empty slice (not nil) if the site has no entries.
func (c *Cache) Entries(ctx context.Context, site activity.Site, order activity.Order) ([]activity.LogEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE site_id = ?
		ORDER BY published ASC, activity_id COLLATE BINARY ASC`
	if order == activity.Descending {
		query = `SELECT ` + entryColumns + ` FROM entries WHERE site_id = ?
		ORDER BY published DESC, activity_id COLLATE BINARY DESC`
	}

	rows, err := c.db.QueryContext(ctx, query, site.ID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []activity.LogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	// Return empty slice instead of nil
	if entries == nil {
		entries = []activity.LogEntry{}
	}

	return entries, nil
}

// CountEntries returns the number of cached entries for a site.
func (c *Cache) CountEntries(ctx context.Context, site activity.Site) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE site_id = ?`, site.ID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// EntryByActivityID returns one entry, or nil if the site has no such entry.
func (c *Cache) EntryByActivityID(ctx context.Context, site activity.Site, activityID string) (*activity.LogEntry, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE site_id = ? AND activity_id = ?`, site.ID, activityID)
	return scanEntryRow(row)
}

// EntryByRewindID returns the entry carrying rewindID, or nil if none does.
// If several entries share the rewind ID the most recently published wins.
func (c *Cache) EntryByRewindID(ctx context.Context, site activity.Site, rewindID string) (*activity.LogEntry, error) {
	if rewindID == "" {
		return nil, nil
	}
	row := c.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE site_id = ? AND rewind_id = ?
		ORDER BY published DESC, activity_id COLLATE BINARY DESC
		LIMIT 1`, site.ID, rewindID)
	return scanEntryRow(row)
}

// RewindStatus returns the site's last stored rewind status, or nil if none
// has been stored.
func (c *Cache) RewindStatus(ctx context.Context, site activity.Site) (*activity.RewindStatus, error) {
	var (
		state       string
		reason      string
		lastUpdated sql.NullInt64
		restore     sql.NullString
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT state, reason, last_updated, restore
		FROM rewind_status
		WHERE site_id = ?
	`, site.ID).Scan(&state, &reason, &lastUpdated, &restore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query rewind status: %w", err)
	}

	r, err := unmarshalRestore(restore)
	if err != nil {
		return nil, fmt.Errorf("query rewind status: %w", err)
	}

	return &activity.RewindStatus{
		State:       activity.RewindState(state),
		Reason:      reason,
		LastUpdated: fromNanos(lastUpdated),
		Restore:     r,
	}, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (activity.LogEntry, error) {
	var (
		e          activity.LogEntry
		rewindable sql.NullBool
		rewindID   sql.NullString
		published  sql.NullInt64
		discarded  sql.NullBool
		actor      sql.NullString
	)
	err := s.Scan(
		&e.ActivityID,
		&e.Summary,
		&e.Text,
		&e.Name,
		&e.Type,
		&e.Gridicon,
		&e.Status,
		&rewindable,
		&rewindID,
		&published,
		&discarded,
		&actor,
	)
	if err != nil {
		return activity.LogEntry{}, err
	}

	e.Rewindable = fromNullBool(rewindable)
	e.RewindID = rewindID.String
	e.Published = fromNanos(published)
	e.Discarded = fromNullBool(discarded)
	e.Actor, err = unmarshalActor(actor)
	if err != nil {
		return activity.LogEntry{}, fmt.Errorf("scan entry %s: %w", e.ActivityID, err)
	}
	return e, nil
}

func scanEntryRow(row *sql.Row) (*activity.LogEntry, error) {
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	return &e, nil
}
