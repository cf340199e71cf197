package harness

import (
	"github.com/roach88/actsync/internal/activity"
	"github.com/roach88/actsync/internal/store"
)

// TraceEvent is one Change observed during a scenario.
type TraceEvent struct {
	Step         int    `json:"step"` // index into Scenario.Flow
	ActionID     string `json:"action_id"`
	Cause        string `json:"cause"`
	RowsAffected int    `json:"rows_affected"`
	CanLoadMore  bool   `json:"can_load_more"`
	RewindID     string `json:"rewind_id,omitempty"`
	RestoreID    int64  `json:"restore_id,omitempty"`
	Error        string `json:"error,omitempty"` // error kind
	Message      string `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per invoked command, in flow order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddChange appends the change produced by flow step step.
func (r *Result) AddChange(step int, c store.Change) TraceEvent {
	ev := TraceEvent{
		Step:         step,
		ActionID:     c.ActionID,
		Cause:        c.Cause.String(),
		RowsAffected: c.RowsAffected,
		CanLoadMore:  c.CanLoadMore,
		RewindID:     c.RewindID,
		RestoreID:    c.RestoreID,
	}
	if c.Err != nil {
		ev.Error = activity.ErrorKind(c.Err)
		ev.Message = c.Err.Error()
	}
	r.Trace = append(r.Trace, ev)
	return ev
}
