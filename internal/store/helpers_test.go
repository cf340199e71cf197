package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/actsync/internal/action"
	"github.com/roach88/actsync/internal/activity"
	"github.com/roach88/actsync/internal/cache"
	"github.com/roach88/actsync/internal/dispatch"
	"github.com/roach88/actsync/internal/testutil"
)

var (
	siteA = activity.Site{ID: 1}
	siteB = activity.Site{ID: 2}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture is a running Store wired to a temp SQLite cache and a scripted
// remote, with one Change subscription open.
type fixture struct {
	store      *Store
	remote     *testutil.FakeRemote
	cache      *cache.Cache
	dispatcher *dispatch.Dispatcher
	changes    <-chan Change
}

type fixtureConfig struct {
	ids       action.IDGenerator
	cacheWrap func(*cache.Cache) Cache
	opts      []Option
}

type fixtureOption func(*fixtureConfig)

func withIDs(ids ...string) fixtureOption {
	return func(c *fixtureConfig) { c.ids = action.NewFixedGenerator(ids...) }
}

func withCache(wrap func(*cache.Cache) Cache) fixtureOption {
	return func(c *fixtureConfig) { c.cacheWrap = wrap }
}

func withStoreOptions(opts ...Option) fixtureOption {
	return func(c *fixtureConfig) { c.opts = append(c.opts, opts...) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{ids: action.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)

	var backing Cache = c
	if cfg.cacheWrap != nil {
		backing = cfg.cacheWrap(c)
	}

	d := dispatch.New(dispatch.WithIDGenerator(cfg.ids), dispatch.WithLogger(discardLogger()))
	remote := testutil.NewFakeRemote()
	storeOpts := append([]Option{WithLogger(discardLogger())}, cfg.opts...)
	s, err := New(d, remote, backing, storeOpts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes, _ := s.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		remote.Release()
		s.Wait()
		cancel()
		<-done
		c.Close()
	})

	return &fixture{store: s, remote: remote, cache: c, dispatcher: d, changes: changes}
}

// next returns the next Change or fails the test after a timeout.
func (f *fixture) next(t *testing.T) Change {
	t.Helper()
	select {
	case c, ok := <-f.changes:
		require.True(t, ok, "change channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

// none asserts that no Change arrives within a short window.
func (f *fixture) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.changes:
		t.Fatalf("unexpected change: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

// fetch publishes FetchActivities and returns its Change.
func (f *fixture) fetch(t *testing.T, site activity.Site, loadMore bool) Change {
	t.Helper()
	id, err := f.store.FetchActivities(site, loadMore)
	require.NoError(t, err)
	c := f.next(t)
	require.Equal(t, id, c.ActionID)
	return c
}

func (f *fixture) entryIDs(t *testing.T, site activity.Site) []string {
	t.Helper()
	entries, err := f.store.Entries(context.Background(), site, activity.Ascending)
	require.NoError(t, err)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ActivityID
	}
	return ids
}

func seqIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("a-%02d", i+1)
	}
	return ids
}

// failingCache wraps a real cache and fails chosen operations. Set the
// fields before publishing the command they should affect.
type failingCache struct {
	*cache.Cache
	writeErr error
	countErr error
}

func (c *failingCache) UpsertEntries(ctx context.Context, site activity.Site, entries []activity.LogEntry) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.Cache.UpsertEntries(ctx, site, entries)
}

func (c *failingCache) ReplaceEntries(ctx context.Context, site activity.Site, entries []activity.LogEntry) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.Cache.ReplaceEntries(ctx, site, entries)
}

func (c *failingCache) CountEntries(ctx context.Context, site activity.Site) (int, error) {
	if c.countErr != nil {
		return 0, c.countErr
	}
	return c.Cache.CountEntries(ctx, site)
}
