package activity

import (
	"fmt"
	"time"
)

// RewindState is the remote's coarse restore capability for a site.
type RewindState string

// Known rewind states. Anything else is rejected at the remote boundary
// with INVALID_REWIND_STATE.
const (
	RewindStateActive              RewindState = "active"
	RewindStateInactive            RewindState = "inactive"
	RewindStateUnavailable         RewindState = "unavailable"
	RewindStateAwaitingCredentials RewindState = "awaiting_credentials"
	RewindStateProvisioning        RewindState = "provisioning"
)

// ParseRewindState validates a wire value.
func ParseRewindState(s string) (RewindState, error) {
	switch st := RewindState(s); st {
	case RewindStateActive, RewindStateInactive, RewindStateUnavailable,
		RewindStateAwaitingCredentials, RewindStateProvisioning:
		return st, nil
	}
	return "", fmt.Errorf("unknown rewind state %q", s)
}

// RestoreStatus is the progress of one restore job.
type RestoreStatus string

// Known restore statuses.
const (
	RestoreQueued   RestoreStatus = "queued"
	RestoreRunning  RestoreStatus = "running"
	RestoreFinished RestoreStatus = "finished"
	RestoreFailed   RestoreStatus = "fail"
)

// ParseRestoreStatus validates a wire value.
func ParseRestoreStatus(s string) (RestoreStatus, error) {
	switch st := RestoreStatus(s); st {
	case RestoreQueued, RestoreRunning, RestoreFinished, RestoreFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown restore status %q", s)
}

// Restore describes the most recent restore job.
type Restore struct {
	RewindID  string        `json:"rewind_id"`
	RestoreID int64         `json:"restore_id"`
	Status    RestoreStatus `json:"status"`
	Progress  int           `json:"progress"`
	Reason    string        `json:"reason,omitempty"`
}

// RewindStatus is the last-known restore state of a site.
// At most one exists per site; a new value replaces the old one wholesale.
type RewindStatus struct {
	State       RewindState `json:"state"`
	Reason      string      `json:"reason,omitempty"`
	LastUpdated time.Time   `json:"last_updated"`
	Restore     *Restore    `json:"restore,omitempty"`
}
