package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/actsync/internal/action"
	"github.com/roach88/actsync/internal/activity"
	"github.com/roach88/actsync/internal/cache"
	"github.com/roach88/actsync/internal/dispatch"
	"github.com/roach88/actsync/internal/store"
	"github.com/roach88/actsync/internal/testutil"
)

// StepTimeout bounds how long one flow step may wait for its Change.
const StepTimeout = 5 * time.Second

// Harness drives one scenario against a running Store.
type Harness struct {
	store   *store.Store
	remote  *testutil.FakeRemote
	site    activity.Site
	changes <-chan store.Change
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh SQLite cache in a temp directory.
// Action IDs come from a fixed generator ("a-01", "a-02", ...), two per
// invoked command, so traces are reproducible.
//
// Execution flow:
// 1. Create the cache, the scripted remote and the Store
// 2. Execute flow steps, checking each expect clause
// 3. Evaluate assertions against the trace and the cache
// 4. Return result with pass/fail, trace, and errors
//
// The returned error reports a harness failure (cache, timeout); a failed
// expectation only marks the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "actsync-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	c, err := cache.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios
	site := activity.Site{ID: scenario.Site}

	remote := testutil.NewFakeRemote()
	if err := applyRemote(remote, site, &scenario.Remote); err != nil {
		return nil, err
	}

	d := dispatch.New(
		dispatch.WithIDGenerator(action.NewFixedGenerator(scenarioIDs(scenario)...)),
		dispatch.WithLogger(logger),
	)

	opts := []store.Option{store.WithLogger(logger)}
	if scenario.PageSize > 0 {
		opts = append(opts, store.WithPageSize(scenario.PageSize))
	}
	st, err := store.New(d, remote, c, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	changes, _ := st.Subscribe(runCtx)
	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(runCtx) }()

	defer func() {
		remote.Release()
		st.Wait()
		d.Stop()
		<-runErr
		cancel()
		st.Close()
	}()

	h := &Harness{
		store:   st,
		remote:  remote,
		site:    site,
		changes: changes,
		logger:  logger,
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  st,
		Remote: remote,
		Site:   site,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// scenarioIDs returns two action IDs per invoked command: one for the
// command and one for its result.
func scenarioIDs(s *Scenario) []string {
	n := 0
	for _, step := range s.Flow {
		if step.Invoke != "" {
			n += 2
		}
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("a-%02d", i+1)
	}
	return ids
}

// executeFlow runs each step in order. A command step waits for its
// Change before the next step starts.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		if err := ctx.Err(); err != nil {
			return err
		}
		if step.Remote != nil {
			if err := applyRemote(h.remote, h.site, step.Remote); err != nil {
				return fmt.Errorf("flow[%d]: %w", i, err)
			}
			continue
		}

		actionID, err := h.invoke(step)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}

		change, err := h.await(ctx, actionID)
		if err != nil {
			return fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}
		h.logger.Debug("step done", "step", i, "action_id", actionID, "cause", change.Cause.String())

		ev := result.AddChange(i, change)
		if step.Expect != nil {
			for _, msg := range checkExpect(i, step.Expect, ev) {
				result.AddError(msg)
			}
		}
	}
	return nil
}

func (h *Harness) invoke(step FlowStep) (string, error) {
	switch step.Invoke {
	case InvokeFetchActivities:
		return h.store.FetchActivities(h.site, step.LoadMore)
	case InvokeFetchRewindState:
		return h.store.FetchRewindState(h.site)
	case InvokeRewind:
		return h.store.Rewind(h.site, step.RewindID)
	}
	return "", fmt.Errorf("unknown invoke %q", step.Invoke)
}

// await returns the Change for actionID.
func (h *Harness) await(ctx context.Context, actionID string) (store.Change, error) {
	timeout := time.NewTimer(StepTimeout)
	defer timeout.Stop()

	for {
		select {
		case c, ok := <-h.changes:
			if !ok {
				return store.Change{}, fmt.Errorf("change stream closed")
			}
			if c.ActionID == actionID {
				return c, nil
			}
		case <-timeout.C:
			return store.Change{}, fmt.Errorf("no change for action %s after %s", actionID, StepTimeout)
		case <-ctx.Done():
			return store.Change{}, ctx.Err()
		}
	}
}

// checkExpect compares one trace event against its expect clause.
func checkExpect(step int, want *ExpectClause, got TraceEvent) []string {
	var errs []string
	if got.Error != want.Error {
		errs = append(errs, fmt.Sprintf("flow[%d]: error: expected %q, got %q", step, want.Error, got.Error))
	}
	if want.RowsAffected != nil && *want.RowsAffected != got.RowsAffected {
		errs = append(errs, fmt.Sprintf("flow[%d]: rows_affected: expected %d, got %d", step, *want.RowsAffected, got.RowsAffected))
	}
	if want.CanLoadMore != nil && *want.CanLoadMore != got.CanLoadMore {
		errs = append(errs, fmt.Sprintf("flow[%d]: can_load_more: expected %t, got %t", step, *want.CanLoadMore, got.CanLoadMore))
	}
	if want.RestoreID != nil && *want.RestoreID != got.RestoreID {
		errs = append(errs, fmt.Sprintf("flow[%d]: restore_id: expected %d, got %d", step, *want.RestoreID, got.RestoreID))
	}
	return errs
}

// applyRemote updates the scripted remote for site.
func applyRemote(remote *testutil.FakeRemote, site activity.Site, script *RemoteScript) error {
	if script.Entries != nil {
		prefix := script.Prefix
		if prefix == "" {
			prefix = "a"
		}
		remote.SetLog(site, testutil.Entries(prefix, *script.Entries))
	}
	if script.Total != nil {
		remote.SetTotal(site, *script.Total)
	}
	if script.RewindStatus != nil {
		status, err := script.RewindStatus.toStatus()
		if err != nil {
			return err
		}
		remote.SetRewindStatus(site, status)
	}
	if script.RestoreID != 0 {
		remote.SetRestoreID(script.RestoreID)
	}
	for _, f := range script.Fail {
		switch f.Op {
		case OpFetch:
			var err error
			if f.Kind != "" {
				err = &activity.FetchError{Kind: activity.FetchErrorKind(f.Kind), Message: f.Message}
			}
			remote.FailFetch(err)
		case OpRewindStatus:
			var err error
			if f.Kind != "" {
				err = &activity.RewindStatusError{Kind: activity.RewindStatusErrorKind(f.Kind), Message: f.Message}
			}
			remote.FailRewindStatus(err)
		case OpRewind:
			var err error
			if f.Kind != "" {
				err = &activity.RewindError{Kind: activity.RewindErrorKind(f.Kind), Message: f.Message}
			}
			remote.FailRewind(err)
		default:
			return fmt.Errorf("unknown remote op %q", f.Op)
		}
	}
	return nil
}

func (s *StatusFixture) toStatus() (*activity.RewindStatus, error) {
	state, err := activity.ParseRewindState(s.State)
	if err != nil {
		return nil, fmt.Errorf("rewind_status: %w", err)
	}
	status := &activity.RewindStatus{
		State:       state,
		Reason:      s.Reason,
		LastUpdated: s.LastUpdated.UTC(),
	}
	if r := s.Restore; r != nil {
		rs, err := activity.ParseRestoreStatus(r.Status)
		if err != nil {
			return nil, fmt.Errorf("rewind_status.restore: %w", err)
		}
		status.Restore = &activity.Restore{
			RewindID:  r.RewindID,
			RestoreID: r.RestoreID,
			Status:    rs,
			Progress:  r.Progress,
			Reason:    r.Reason,
		}
	}
	return status, nil
}
