package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actsync/internal/activity"
)

func TestUpsertEntries_InsertsNewRows(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()

	n, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{
		testEntry("a", 1), testEntry("b", 2), testEntry("c", 3),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := c.CountEntries(ctx, siteA)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUpsertEntries_UnchangedRowsNotCounted(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()
	batch := []activity.LogEntry{testEntry("a", 1), testEntry("b", 2)}

	_, err := c.UpsertEntries(ctx, siteA, batch)
	require.NoError(t, err)

	n, err := c.UpsertEntries(ctx, siteA, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "identical re-write should change nothing")
}

func TestUpsertEntries_ReplacesByActivityID(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()

	_, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{testEntry("a", 1)})
	require.NoError(t, err)

	changed := testEntry("a", 1)
	changed.Summary = "Post updated"
	n, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{changed})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := c.CountEntries(ctx, siteA)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "no duplicate row")

	got, err := c.EntryByActivityID(ctx, siteA, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Post updated", got.Summary)
}

func TestUpsertEntries_SameIDDifferentSites(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()

	_, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{testEntry("a", 1)})
	require.NoError(t, err)
	n, err := c.UpsertEntries(ctx, siteB, []activity.LogEntry{testEntry("a", 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertEntries_Empty(t *testing.T) {
	c := createTestCache(t)

	n, err := c.UpsertEntries(context.Background(), siteA, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUpsertEntries_MissingActivityID(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()

	_, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{testEntry("a", 1), testEntry("", 2)})
	assert.ErrorIs(t, err, ErrMissingActivityID)

	count, err := c.CountEntries(ctx, siteA)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "batch is rejected as a whole")
}

func TestDeleteEntries_SiteScoped(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()

	_, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{testEntry("a", 1), testEntry("b", 2)})
	require.NoError(t, err)
	_, err = c.UpsertEntries(ctx, siteB, []activity.LogEntry{testEntry("x", 1)})
	require.NoError(t, err)

	n, err := c.DeleteEntries(ctx, siteA)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	countA, err := c.CountEntries(ctx, siteA)
	require.NoError(t, err)
	assert.Equal(t, 0, countA)

	countB, err := c.CountEntries(ctx, siteB)
	require.NoError(t, err)
	assert.Equal(t, 1, countB)
}

func TestReplaceEntries_SwapsSiteRows(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()

	_, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{testEntry("a", 1), testEntry("b", 2)})
	require.NoError(t, err)
	_, err = c.UpsertEntries(ctx, siteB, []activity.LogEntry{testEntry("x", 1)})
	require.NoError(t, err)

	n, err := c.ReplaceEntries(ctx, siteA, []activity.LogEntry{testEntry("b", 2), testEntry("c", 3)})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "every row of a replaced site counts as written")

	got, err := c.Entries(ctx, siteA, activity.Ascending)
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ActivityID
	}
	assert.Equal(t, []string{"b", "c"}, ids)

	countB, err := c.CountEntries(ctx, siteB)
	require.NoError(t, err)
	assert.Equal(t, 1, countB)
}

func TestReplaceEntries_EmptyClearsSite(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()

	_, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{testEntry("a", 1)})
	require.NoError(t, err)

	n, err := c.ReplaceEntries(ctx, siteA, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := c.CountEntries(ctx, siteA)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReplaceEntries_RejectedBatchKeepsRows(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()

	_, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{testEntry("a", 1), testEntry("b", 2)})
	require.NoError(t, err)

	_, err = c.ReplaceEntries(ctx, siteA, []activity.LogEntry{testEntry("c", 3), testEntry("", 4)})
	assert.ErrorIs(t, err, ErrMissingActivityID)

	count, err := c.CountEntries(ctx, siteA)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReplaceRewindStatus_ReplacesWholeRow(t *testing.T) {
	c := createTestCache(t)
	ctx := context.Background()
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.ReplaceRewindStatus(ctx, siteA, activity.RewindStatus{
		State:       activity.RewindStateActive,
		Reason:      "ok",
		LastUpdated: updated,
		Restore: &activity.Restore{
			RewindID:  "1709294400.1",
			RestoreID: 42,
			Status:    activity.RestoreRunning,
			Progress:  30,
		},
	}))

	require.NoError(t, c.ReplaceRewindStatus(ctx, siteA, activity.RewindStatus{
		State:       activity.RewindStateInactive,
		LastUpdated: updated.Add(time.Hour),
	}))

	got, err := c.RewindStatus(ctx, siteA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, activity.RewindStateInactive, got.State)
	assert.Empty(t, got.Reason, "reason must not survive replacement")
	assert.Nil(t, got.Restore, "restore must not survive replacement")
	assert.True(t, got.LastUpdated.Equal(updated.Add(time.Hour)))
}
