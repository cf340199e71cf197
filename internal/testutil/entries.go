package testutil

import (
	"fmt"
	"time"

	"github.com/roach88/actsync/internal/activity"
)

// BaseTime is the published time of the first generated entry.
var BaseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Entry builds an entry with ID id published i minutes after BaseTime.
func Entry(id string, i int) activity.LogEntry {
	return activity.LogEntry{
		ActivityID: id,
		Summary:    "Post published",
		Text:       "Entry " + id,
		Name:       "post__published",
		Published:  BaseTime.Add(time.Duration(i) * time.Minute),
	}
}

// Entries builds n entries "<prefix>-000", "<prefix>-001", ... in
// ascending published order.
func Entries(prefix string, n int) []activity.LogEntry {
	out := make([]activity.LogEntry, n)
	for i := range out {
		out[i] = Entry(fmt.Sprintf("%s-%03d", prefix, i), i)
	}
	return out
}
