package action

import (
	"fmt"

	"github.com/roach88/actsync/internal/activity"
)

// Kind is the discriminant of an Action, derived from its payload type.
type Kind int

const (
	KindFetchActivities Kind = iota + 1
	KindFetchedActivities
	KindFetchRewindState
	KindFetchedRewindState
	KindRewind
	KindRewindResult
)

var kindNames = map[Kind]string{
	KindFetchActivities:    "FETCH_ACTIVITIES",
	KindFetchedActivities:  "FETCHED_ACTIVITIES",
	KindFetchRewindState:   "FETCH_REWIND_STATE",
	KindFetchedRewindState: "FETCHED_REWIND_STATE",
	KindRewind:             "REWIND",
	KindRewindResult:       "REWIND_RESULT",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsCommand reports whether actions of this kind start remote work.
func (k Kind) IsCommand() bool {
	return k == KindFetchActivities || k == KindFetchRewindState || k == KindRewind
}

// Payload is the closed set of action bodies. The unexported method keeps
// other packages from adding variants, so a type switch over the six types
// below is exhaustive.
type Payload interface {
	Kind() Kind
	payload()
}

// Action is an immutable command or result routed through the dispatcher.
//
// ID is assigned at publish time when empty. CorrelationID links a result
// action to the command that caused it; for commands it is empty. Seq is
// the dispatcher's logical clock value.
type Action struct {
	ID            string
	CorrelationID string
	Seq           int64
	Payload       Payload
}

// Kind returns the payload's kind, or 0 for an action with no payload.
func (a Action) Kind() Kind {
	if a.Payload == nil {
		return 0
	}
	return a.Payload.Kind()
}

// Origin returns the ID of the command this action belongs to: the
// correlation ID for results and the action's own ID for commands.
func (a Action) Origin() string {
	if a.CorrelationID != "" {
		return a.CorrelationID
	}
	return a.ID
}

// New wraps a payload in an Action with no ID.
func New(p Payload) Action {
	return Action{Payload: p}
}

// Reply builds a result action correlated to cmd.
func Reply(cmd Action, p Payload) Action {
	return Action{CorrelationID: cmd.Origin(), Payload: p}
}

// FetchActivities asks for one page of the site's activity log.
// LoadMore=false fetches the first page; true continues after the cached rows.
type FetchActivities struct {
	Site     activity.Site
	LoadMore bool
}

// FetchedActivities is the outcome of FetchActivities.
// Number is the requested window size, not the count returned.
type FetchedActivities struct {
	Site   activity.Site
	Number int
	Offset int
	Result Result[activity.Page, *activity.FetchError]
}

// FetchRewindState asks for the site's current rewind status.
type FetchRewindState struct {
	Site activity.Site
}

// FetchedRewindState is the outcome of FetchRewindState. A successful
// Result may hold a nil status, meaning the remote had nothing to report.
type FetchedRewindState struct {
	Site   activity.Site
	Result Result[*activity.RewindStatus, *activity.RewindStatusError]
}

// Rewind asks the remote to restore the site to the entry with RewindID.
type Rewind struct {
	Site     activity.Site
	RewindID string
}

// RewindResult is the outcome of Rewind; the value is the restore ID.
type RewindResult struct {
	Site     activity.Site
	RewindID string
	Result   Result[int64, *activity.RewindError]
}

func (FetchActivities) Kind() Kind    { return KindFetchActivities }
func (FetchedActivities) Kind() Kind  { return KindFetchedActivities }
func (FetchRewindState) Kind() Kind   { return KindFetchRewindState }
func (FetchedRewindState) Kind() Kind { return KindFetchedRewindState }
func (Rewind) Kind() Kind             { return KindRewind }
func (RewindResult) Kind() Kind       { return KindRewindResult }

func (FetchActivities) payload()    {}
func (FetchedActivities) payload()  {}
func (FetchRewindState) payload()   {}
func (FetchedRewindState) payload() {}
func (Rewind) payload()             {}
func (RewindResult) payload()       {}
