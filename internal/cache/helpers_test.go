package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/actsync/internal/activity"
)

var (
	siteA = activity.Site{ID: 1}
	siteB = activity.Site{ID: 2}
)

// createTestCache opens a fresh cache file under t.TempDir().
func createTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	c, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// testEntry builds an entry published n minutes after a fixed base time.
func testEntry(id string, n int) activity.LogEntry {
	return activity.LogEntry{
		ActivityID: id,
		Summary:    "Post published",
		Text:       "Hello " + id,
		Published:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute),
	}
}
