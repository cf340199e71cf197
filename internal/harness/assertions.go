package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/actsync/internal/activity"
	"github.com/roach88/actsync/internal/store"
	"github.com/roach88/actsync/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s rows=%d more=%t", ev.Step, ev.ActionID, ev.Cause, ev.RowsAffected, ev.CanLoadMore)
		if ev.Error != "" {
			fmt.Fprintf(&buf, " error=%s", ev.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// AssertionContext provides the state assertions are evaluated against.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Remote *testutil.FakeRemote
	Site   activity.Site
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEntryCount:
			err = assertEntryCount(actx, assertion, result.Trace)
		case AssertEntries:
			err = assertEntries(actx, assertion, result.Trace)
		case AssertRewindStatus:
			err = assertRewindStatus(actx, assertion, result.Trace)
		case AssertChangeCount:
			err = assertChangeCount(result.Trace, assertion)
		case AssertFetchOffsets:
			err = assertFetchOffsets(actx, assertion, result.Trace)
		default:
			err = fmt.Errorf("unknown assertion type: %s", assertion.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d (%s): %v", i, assertion.Type, err))
		}
	}

	return errors
}

func assertEntryCount(actx *AssertionContext, a Assertion, trace []TraceEvent) error {
	n, err := actx.Store.CountEntries(actx.Ctx, actx.Site)
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertEntryCount,
			Expected: fmt.Sprintf("%d entries", *a.Count),
			Actual:   fmt.Sprintf("%d entries", n),
			Trace:    trace,
		}
	}
	return nil
}

func assertEntries(actx *AssertionContext, a Assertion, trace []TraceEvent) error {
	order := activity.Ascending
	if a.Order == "desc" {
		order = activity.Descending
	}
	entries, err := actx.Store.Entries(actx.Ctx, actx.Site, order)
	if err != nil {
		return fmt.Errorf("read entries: %w", err)
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ActivityID
	}
	if !slices.Equal(ids, a.IDs) {
		return &AssertionError{
			Type:     AssertEntries,
			Expected: fmt.Sprintf("%v", a.IDs),
			Actual:   fmt.Sprintf("%v", ids),
			Trace:    trace,
		}
	}
	return nil
}

func assertRewindStatus(actx *AssertionContext, a Assertion, trace []TraceEvent) error {
	status, err := actx.Store.RewindStatus(actx.Ctx, actx.Site)
	if err != nil {
		return fmt.Errorf("read rewind status: %w", err)
	}

	actual := "absent"
	if status != nil {
		actual = string(status.State)
	}
	expected := a.State
	if a.Absent {
		expected = "absent"
	}

	if actual != expected {
		return &AssertionError{
			Type:     AssertRewindStatus,
			Expected: expected,
			Actual:   actual,
			Trace:    trace,
		}
	}
	return nil
}

// assertChangeCount counts trace events, optionally only those with the
// given cause.
func assertChangeCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if a.Cause == "" || ev.Cause == a.Cause {
			n++
		}
	}
	if n != *a.Count {
		what := "changes"
		if a.Cause != "" {
			what = a.Cause + " changes"
		}
		return &AssertionError{
			Type:     AssertChangeCount,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d %s", n, what),
			Trace:    trace,
		}
	}
	return nil
}

func assertFetchOffsets(actx *AssertionContext, a Assertion, trace []TraceEvent) error {
	calls := actx.Remote.FetchCalls()
	offsets := make([]int, 0, len(calls))
	for _, c := range calls {
		if c.Site == actx.Site {
			offsets = append(offsets, c.Offset)
		}
	}
	if !slices.Equal(offsets, a.Offsets) {
		return &AssertionError{
			Type:     AssertFetchOffsets,
			Expected: fmt.Sprintf("%v", a.Offsets),
			Actual:   fmt.Sprintf("%v", offsets),
			Trace:    trace,
		}
	}
	return nil
}
