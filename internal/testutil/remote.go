package testutil

import (
	"context"
	"sync"

	"github.com/roach88/actsync/internal/activity"
)

// FetchCall records one FetchActivities request.
type FetchCall struct {
	Site   activity.Site
	Number int
	Offset int
}

// FakeRemote is a scripted RemoteSource.
//
// Each site has a remote log that FetchActivities serves window by window;
// TotalItems is the log length unless overridden with SetTotal. Failures
// injected with Fail* are returned by every later call until cleared with
// nil.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeRemote struct {
	mu        sync.Mutex
	logs      map[int64][]activity.LogEntry
	totals    map[int64]int
	statuses  map[int64]*activity.RewindStatus
	restoreID int64

	fetchErr  error
	statusErr error
	rewindErr error

	gate        chan struct{}
	fetchCalls  []FetchCall
	rewindCalls []string
}

// NewFakeRemote creates an empty FakeRemote. Rewind returns restore ID 1
// until SetRestoreID is called.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		logs:      make(map[int64][]activity.LogEntry),
		totals:    make(map[int64]int),
		statuses:  make(map[int64]*activity.RewindStatus),
		restoreID: 1,
	}
}

// SetLog replaces the site's remote log.
func (f *FakeRemote) SetLog(site activity.Site, entries []activity.LogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[site.ID] = append([]activity.LogEntry(nil), entries...)
}

// SetTotal overrides the TotalItems reported for the site.
func (f *FakeRemote) SetTotal(site activity.Site, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals[site.ID] = total
}

// SetRewindStatus sets the status FetchRewindStatus returns; nil means
// the remote has nothing to report.
func (f *FakeRemote) SetRewindStatus(site activity.Site, status *activity.RewindStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[site.ID] = status
}

// SetRestoreID sets the restore ID a successful Rewind returns.
func (f *FakeRemote) SetRestoreID(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restoreID = id
}

// FailFetch makes FetchActivities return err.
func (f *FakeRemote) FailFetch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

// FailRewindStatus makes FetchRewindStatus return err.
func (f *FakeRemote) FailRewindStatus(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr = err
}

// FailRewind makes Rewind return err.
func (f *FakeRemote) FailRewind(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rewindErr = err
}

// Block makes every call wait until Release. Calls already waiting are
// not affected by a second Block.
func (f *FakeRemote) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{})
	}
}

// Release lets blocked calls proceed.
func (f *FakeRemote) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// FetchCalls returns the FetchActivities requests seen so far.
func (f *FakeRemote) FetchCalls() []FetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchCall(nil), f.fetchCalls...)
}

// RewindCalls returns the rewind IDs requested so far.
func (f *FakeRemote) RewindCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rewindCalls...)
}

func (f *FakeRemote) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchActivities serves entries [offset, offset+number) of the site's log.
func (f *FakeRemote) FetchActivities(ctx context.Context, site activity.Site, number, offset int) (activity.Page, error) {
	f.mu.Lock()
	f.fetchCalls = append(f.fetchCalls, FetchCall{Site: site, Number: number, Offset: offset})
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return activity.Page{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return activity.Page{}, f.fetchErr
	}

	log := f.logs[site.ID]
	total, ok := f.totals[site.ID]
	if !ok {
		total = len(log)
	}

	start := min(offset, len(log))
	end := min(offset+number, len(log))
	return activity.Page{
		Entries:    append([]activity.LogEntry{}, log[start:end]...),
		TotalItems: total,
	}, nil
}

// FetchRewindStatus returns the scripted status for the site.
func (f *FakeRemote) FetchRewindStatus(ctx context.Context, site activity.Site) (*activity.RewindStatus, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if st := f.statuses[site.ID]; st != nil {
		cp := *st
		return &cp, nil
	}
	return nil, nil
}

// Rewind records the request and returns the scripted restore ID.
func (f *FakeRemote) Rewind(ctx context.Context, site activity.Site, rewindID string) (int64, error) {
	f.mu.Lock()
	f.rewindCalls = append(f.rewindCalls, rewindID)
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rewindErr != nil {
		return 0, f.rewindErr
	}
	return f.restoreID, nil
}
