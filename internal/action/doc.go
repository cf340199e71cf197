// Package action defines the values routed through the dispatcher.
//
// An Action wraps one of six payload types. Three are commands
// (FetchActivities, FetchRewindState, Rewind) and three are their results
// (FetchedActivities, FetchedRewindState, RewindResult). Result payloads
// carry a Result[T, E] whose error type is fixed per operation, which keeps
// the fetch, rewind-status and rewind error domains apart by construction.
//
// Consumers dispatch on the payload with a type switch:
//
//	switch p := a.Payload.(type) {
//	case action.FetchActivities:
//	case action.FetchedActivities:
//	...
//	}
package action
