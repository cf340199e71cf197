package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/actsync/internal/action"
	"github.com/roach88/actsync/internal/activity"
	"github.com/roach88/actsync/internal/dispatch"
	"github.com/roach88/actsync/internal/sitelock"
)

// DefaultPageSize is the number of entries requested per fetch.
const DefaultPageSize = 10

// subscriberName is the dispatcher subscription the Store registers.
const subscriberName = "activity-store"

// ErrStopped is returned by the publishing helpers once the dispatcher has
// been stopped.
var ErrStopped = errors.New("dispatcher stopped")

// RemoteSource performs the remote side of each command.
//
// Implementations should return the typed error of the operation's domain
// (*activity.FetchError etc.). Any other error is reported as that
// domain's GENERIC_ERROR.
type RemoteSource interface {
	FetchActivities(ctx context.Context, site activity.Site, number, offset int) (activity.Page, error)
	FetchRewindStatus(ctx context.Context, site activity.Site) (*activity.RewindStatus, error)
	Rewind(ctx context.Context, site activity.Site, rewindID string) (int64, error)
}

// Cache is the durable local copy the Store reconciles into.
// Lookups of a missing row return (nil, nil).
type Cache interface {
	Entries(ctx context.Context, site activity.Site, order activity.Order) ([]activity.LogEntry, error)
	CountEntries(ctx context.Context, site activity.Site) (int, error)
	EntryByActivityID(ctx context.Context, site activity.Site, activityID string) (*activity.LogEntry, error)
	EntryByRewindID(ctx context.Context, site activity.Site, rewindID string) (*activity.LogEntry, error)
	UpsertEntries(ctx context.Context, site activity.Site, entries []activity.LogEntry) (int, error)
	ReplaceEntries(ctx context.Context, site activity.Site, entries []activity.LogEntry) (int, error)
	RewindStatus(ctx context.Context, site activity.Site) (*activity.RewindStatus, error)
	ReplaceRewindStatus(ctx context.Context, site activity.Site, status activity.RewindStatus) error
}

// Dispatcher is the part of *dispatch.Dispatcher the Store uses.
type Dispatcher interface {
	Subscribe(name string, h dispatch.Handler) error
	Publish(a action.Action) (action.Action, bool)
}

// Store reconciles remote results into a Cache and reports each outcome
// as a Change.
//
// Thread-safety model:
//   - handle(): invoked by the dispatcher worker only, never concurrently
//   - accessors, Subscribe, publishing helpers: safe from any goroutine
//   - FetchActivitiesNow(): safe from any goroutine; serialised per site
//     with the worker through the site lock
type Store struct {
	dispatcher Dispatcher
	remote     RemoteSource
	cache      Cache
	locker     sitelock.Locker
	pageSize   int
	logger     *slog.Logger
	changes    *changeBroadcaster

	inflight sync.WaitGroup
}

type options struct {
	pageSize int
	buffer   int
	locker   sitelock.Locker
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*options)

// WithPageSize sets the fetch window. Default: DefaultPageSize.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithSubscriberBuffer sets each Change subscriber's channel buffer.
// Default: DefaultSubscriberBuffer.
func WithSubscriberBuffer(n int) Option {
	return func(o *options) {
		o.buffer = n
	}
}

// WithLocker sets the per-site locker. Default: an in-process
// sitelock.Local.
func WithLocker(l sitelock.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a Store and subscribes it to d. It must be called before the
// dispatcher's Run.
func New(d Dispatcher, remote RemoteSource, cache Cache, opts ...Option) (*Store, error) {
	o := options{
		pageSize: DefaultPageSize,
		buffer:   DefaultSubscriberBuffer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", o.pageSize)
	}
	if o.buffer < 0 {
		return nil, fmt.Errorf("subscriber buffer must not be negative, got %d", o.buffer)
	}
	if o.locker == nil {
		o.locker = sitelock.NewLocal()
	}

	logger := o.logger.With("component", "store")
	s := &Store{
		dispatcher: d,
		remote:     remote,
		cache:      cache,
		locker:     o.locker,
		pageSize:   o.pageSize,
		logger:     logger,
		changes:    newChangeBroadcaster(o.buffer, logger),
	}
	if err := d.Subscribe(subscriberName, s.handle); err != nil {
		return nil, fmt.Errorf("subscribe store: %w", err)
	}
	return s, nil
}

// PageSize returns the fetch window size.
func (s *Store) PageSize() int {
	return s.pageSize
}

// Subscribe returns a channel of every Change the Store emits from now on,
// plus the subscription ID for Unsubscribe.
func (s *Store) Subscribe(ctx context.Context) (<-chan Change, string) {
	return s.changes.Subscribe(ctx)
}

// Unsubscribe ends a subscription and closes its channel.
func (s *Store) Unsubscribe(subID string) {
	s.changes.Unsubscribe(subID)
}

// Wait blocks until every remote call started so far has published its
// result action.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// Close waits for in-flight remote calls and closes every subscriber
// channel.
func (s *Store) Close() {
	s.inflight.Wait()
	s.changes.Close()
}

// FetchActivities publishes a FetchActivities command and returns its ID.
func (s *Store) FetchActivities(site activity.Site, loadMore bool) (string, error) {
	return s.publish(action.New(action.FetchActivities{Site: site, LoadMore: loadMore}))
}

// FetchRewindState publishes a FetchRewindState command and returns its ID.
func (s *Store) FetchRewindState(site activity.Site) (string, error) {
	return s.publish(action.New(action.FetchRewindState{Site: site}))
}

// Rewind publishes a Rewind command and returns its ID.
func (s *Store) Rewind(site activity.Site, rewindID string) (string, error) {
	return s.publish(action.New(action.Rewind{Site: site, RewindID: rewindID}))
}

func (s *Store) publish(a action.Action) (string, error) {
	stamped, ok := s.dispatcher.Publish(a)
	if !ok {
		return "", fmt.Errorf("publish %s: %w", a.Kind(), ErrStopped)
	}
	return stamped.ID, nil
}

// handle is the dispatcher handler. The payload set is closed, so the
// default branch only fires for an action with no payload.
func (s *Store) handle(ctx context.Context, a action.Action) error {
	switch p := a.Payload.(type) {
	case action.FetchActivities:
		s.startFetchActivities(ctx, a, p)
	case action.FetchRewindState:
		s.startFetchRewindState(ctx, a, p)
	case action.Rewind:
		s.startRewind(ctx, a, p)
	case action.FetchedActivities:
		s.emit(s.reconcileActivities(ctx, a, p))
	case action.FetchedRewindState:
		s.emit(s.reconcileRewindState(ctx, a, p))
	case action.RewindResult:
		s.emit(s.reconcileRewind(a, p))
	default:
		return fmt.Errorf("unhandled action kind %s", a.Kind())
	}
	return nil
}

func (s *Store) emit(c Change) {
	level := slog.LevelDebug
	if c.Err != nil {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "change",
		"action_id", c.ActionID,
		"site", c.Site.ID,
		"cause", c.Cause.String(),
		"rows_affected", c.RowsAffected,
		"can_load_more", c.CanLoadMore,
		"error", c.Err,
	)
	s.changes.Publish(c)
}

// goRemote runs fn on its own goroutine, tracked by Wait.
func (s *Store) goRemote(fn func()) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fn()
	}()
}

// reply publishes a result action correlated to cmd. A stopped dispatcher
// drops the result; the outcome is logged so it is never silent.
func (s *Store) reply(cmd action.Action, p action.Payload) {
	if _, ok := s.dispatcher.Publish(action.Reply(cmd, p)); !ok {
		s.logger.Warn("result dropped: dispatcher stopped",
			"action_id", cmd.Origin(),
			"kind", p.Kind().String())
	}
}
