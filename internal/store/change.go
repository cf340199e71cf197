package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/actsync/internal/action"
	"github.com/roach88/actsync/internal/activity"
)

// DefaultSubscriberBuffer is the channel buffer for each Change subscriber.
const DefaultSubscriberBuffer = 64

// Change describes the outcome of reconciling one result action.
//
// ActionID is the ID of the command that started the round trip and Cause
// is its kind. Err, when set, is one of *activity.FetchError,
// *activity.RewindStatusError or *activity.RewindError according to Cause.
type Change struct {
	ActionID     string
	Site         activity.Site
	Cause        action.Kind
	RowsAffected int
	CanLoadMore  bool
	RewindID     string
	RestoreID    int64
	Err          error
}

// Failed reports whether the change carries an error.
func (c Change) Failed() bool {
	return c.Err != nil
}

// changeBroadcaster fans Change values out to every subscriber.
// Sends never block: a subscriber whose buffer is full misses the change.
type changeBroadcaster struct {
	mu     sync.RWMutex
	subs   map[string]chan Change
	buffer int
	closed bool
	logger *slog.Logger
}

func newChangeBroadcaster(buffer int, logger *slog.Logger) *changeBroadcaster {
	return &changeBroadcaster{
		subs:   make(map[string]chan Change),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber. The subscription ends, and the channel
// is closed, on Unsubscribe or when ctx is done.
func (b *changeBroadcaster) Subscribe(ctx context.Context) (<-chan Change, string) {
	subID := uuid.New().String()
	ch := make(chan Change, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subs[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish delivers c to every subscriber that has room for it.
func (b *changeBroadcaster) Publish(c Change) {
	// Sends happen under the read lock so Unsubscribe cannot close a
	// channel mid-send; every send is non-blocking.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- c:
		default:
			b.logger.Warn("dropped change for slow subscriber",
				"sub_id", id,
				"action_id", c.ActionID,
				"cause", c.Cause.String())
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
// Unknown IDs are ignored.
func (b *changeBroadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[subID]
	if !ok {
		return
	}
	delete(b.subs, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (b *changeBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	b.closed = true
}
