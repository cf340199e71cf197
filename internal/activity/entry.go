package activity

import (
	"fmt"
	"time"

	"github.com/roach88/actsync/internal/canonical"
)

// DomainEntry is the hash domain for LogEntry content hashes.
// The version suffix allows the hashed field set to change later.
const DomainEntry = "actsync/entry/v1"

// Site identifies the tenant that owns cache rows and remote calls.
type Site struct {
	ID int64 `json:"id"`
}

// String implements fmt.Stringer.
func (s Site) String() string {
	return fmt.Sprintf("site:%d", s.ID)
}

// Actor describes who performed an activity.
type Actor struct {
	Type           string `json:"type,omitempty"`
	Name           string `json:"name,omitempty"`
	ExternalUserID int64  `json:"external_user_id,omitempty"`
	WPComUserID    int64  `json:"wpcom_user_id,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	Role           string `json:"role,omitempty"`
}

// LogEntry is a single activity log record.
//
// ActivityID is stable and unique within a site. RewindID is set only for
// entries the site can be restored to.
type LogEntry struct {
	ActivityID string    `json:"activity_id"`
	Summary    string    `json:"summary"`
	Text       string    `json:"text"`
	Name       string    `json:"name,omitempty"`
	Type       string    `json:"type,omitempty"`
	Gridicon   string    `json:"gridicon,omitempty"`
	Status     string    `json:"status,omitempty"`
	Rewindable *bool     `json:"rewindable,omitempty"`
	RewindID   string    `json:"rewind_id,omitempty"`
	Published  time.Time `json:"published"`
	Discarded  *bool     `json:"discarded,omitempty"`
	Actor      *Actor    `json:"actor,omitempty"`
}

// ContentHash returns the canonical hash of every stored field.
// Two entries with equal hashes are the same row for upsert accounting.
func (e LogEntry) ContentHash() (string, error) {
	return canonical.Hash(DomainEntry, e.canonicalMap())
}

func (e LogEntry) canonicalMap() map[string]any {
	m := map[string]any{
		"activity_id": e.ActivityID,
		"summary":     e.Summary,
		"text":        e.Text,
		"name":        e.Name,
		"type":        e.Type,
		"gridicon":    e.Gridicon,
		"status":      e.Status,
		"rewind_id":   e.RewindID,
		"published":   e.Published.UTC().Format(time.RFC3339Nano),
	}
	if e.Rewindable != nil {
		m["rewindable"] = *e.Rewindable
	}
	if e.Discarded != nil {
		m["discarded"] = *e.Discarded
	}
	if e.Actor != nil {
		m["actor"] = map[string]any{
			"type":             e.Actor.Type,
			"name":             e.Actor.Name,
			"external_user_id": e.Actor.ExternalUserID,
			"wpcom_user_id":    e.Actor.WPComUserID,
			"avatar_url":       e.Actor.AvatarURL,
			"role":             e.Actor.Role,
		}
	}
	return m
}

// Page is one window of remote entries.
// TotalItems is the remote's count across all pages, not len(Entries).
type Page struct {
	Entries    []LogEntry
	TotalItems int
}

// Order selects ascending or descending published time.
type Order int

const (
	// Ascending returns the oldest entry first.
	Ascending Order = iota
	// Descending returns the newest entry first.
	Descending
)

// String implements fmt.Stringer.
func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// Bool returns a pointer to b, for the optional flags on LogEntry.
func Bool(b bool) *bool {
	return &b
}
