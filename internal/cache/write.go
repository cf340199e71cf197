package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/actsync/internal/activity"
)

// ErrMissingActivityID is returned by UpsertEntries for an entry with an
// empty ActivityID. Nothing in the batch is written.
var ErrMissingActivityID = errors.New("entry has no activity id")

// UpsertEntries inserts or replaces entries for a site in one transaction.
//
// Rows are keyed by (site, ActivityID). An existing row is rewritten only
// when its content hash differs, so the returned count is the number of
// rows whose content actually changed.
func (c *Cache) UpsertEntries(ctx context.Context, site activity.Site, entries []activity.LogEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if err := checkActivityIDs(entries); err != nil {
		return 0, fmt.Errorf("upsert entries: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert entries: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	written, err := upsertTx(ctx, tx, site, entries)
	if err != nil {
		return 0, fmt.Errorf("upsert entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert entries: commit: %w", err)
	}

	return written, nil
}

// ReplaceEntries swaps the site's entries for entries in one transaction
// and returns the rows written. On any error the previous rows are kept.
// Other sites are untouched.
func (c *Cache) ReplaceEntries(ctx context.Context, site activity.Site, entries []activity.LogEntry) (int, error) {
	if err := checkActivityIDs(entries); err != nil {
		return 0, fmt.Errorf("replace entries: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("replace entries: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE site_id = ?`, site.ID); err != nil {
		return 0, fmt.Errorf("replace entries: delete: %w", err)
	}

	written := 0
	if len(entries) > 0 {
		written, err = upsertTx(ctx, tx, site, entries)
		if err != nil {
			return 0, fmt.Errorf("replace entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("replace entries: commit: %w", err)
	}

	return written, nil
}

func checkActivityIDs(entries []activity.LogEntry) error {
	for _, e := range entries {
		if e.ActivityID == "" {
			return ErrMissingActivityID
		}
	}
	return nil
}

// upsertTx writes entries inside tx and returns the rows changed.
func upsertTx(ctx context.Context, tx *sql.Tx, site activity.Site, entries []activity.LogEntry) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries
		(site_id, activity_id, content_hash, summary, text, name, type, gridicon, status,
		 rewindable, rewind_id, published, discarded, actor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id, activity_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			summary      = excluded.summary,
			text         = excluded.text,
			name         = excluded.name,
			type         = excluded.type,
			gridicon     = excluded.gridicon,
			status       = excluded.status,
			rewindable   = excluded.rewindable,
			rewind_id    = excluded.rewind_id,
			published    = excluded.published,
			discarded    = excluded.discarded,
			actor        = excluded.actor
		WHERE entries.content_hash <> excluded.content_hash
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, e := range entries {
		hash, err := e.ContentHash()
		if err != nil {
			return 0, fmt.Errorf("hash %s: %w", e.ActivityID, err)
		}
		actor, err := marshalActor(e.Actor)
		if err != nil {
			return 0, err
		}

		result, err := stmt.ExecContext(ctx,
			site.ID,
			e.ActivityID,
			hash,
			e.Summary,
			e.Text,
			e.Name,
			e.Type,
			e.Gridicon,
			e.Status,
			nullBool(e.Rewindable),
			nullString(e.RewindID),
			nanos(e.Published),
			nullBool(e.Discarded),
			actor,
		)
		if err != nil {
			return 0, fmt.Errorf("write %s: %w", e.ActivityID, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		written += int(n)
	}
	return written, nil
}

// DeleteEntries removes every entry for a site and returns how many rows
// were deleted. Other sites are untouched.
func (c *Cache) DeleteEntries(ctx context.Context, site activity.Site) (int, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM entries WHERE site_id = ?`, site.ID)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete entries: rows affected: %w", err)
	}
	return int(n), nil
}

// ReplaceRewindStatus overwrites the site's rewind status. No field of the
// previous row survives.
func (c *Cache) ReplaceRewindStatus(ctx context.Context, site activity.Site, status activity.RewindStatus) error {
	restore, err := marshalRestore(status.Restore)
	if err != nil {
		return fmt.Errorf("replace rewind status: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO rewind_status
		(site_id, state, reason, last_updated, restore)
		VALUES (?, ?, ?, ?, ?)
	`,
		site.ID,
		string(status.State),
		status.Reason,
		nanos(status.LastUpdated),
		restore,
	)
	if err != nil {
		return fmt.Errorf("replace rewind status: %w", err)
	}
	return nil
}
