package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/actsync/internal/action"
)

// ErrRunning is returned by Subscribe once Run has started.
var ErrRunning = errors.New("dispatcher already running")

// Handler processes one action. Returned errors are logged; they never
// stop the worker.
type Handler func(ctx context.Context, a action.Action) error

// subscriber owns one queue and, once Run starts, one worker goroutine.
type subscriber struct {
	name    string
	handler Handler
	queue   *actionQueue
}

// Dispatcher delivers every published action to every subscriber.
//
// Delivery is FIFO per subscriber and each subscriber's handler runs on a
// single dedicated worker, so invocations for one subscriber never overlap.
// There is no ordering guarantee between different subscribers.
//
// Thread-safety model:
//   - Publish(): safe from any goroutine, including from inside a handler
//   - Subscribe(): before Run only
//   - Run(): exactly once, from one goroutine
type Dispatcher struct {
	mu      sync.Mutex
	subs    []*subscriber
	running bool
	stopped bool

	clock  *Clock
	ids    action.IDGenerator
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithIDGenerator overrides the UUIDv7 action ID generator.
func WithIDGenerator(g action.IDGenerator) Option {
	return func(d *Dispatcher) {
		d.ids = g
	}
}

// WithClock overrides the logical clock, e.g. to resume a sequence.
func WithClock(c *Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a Dispatcher with no subscribers.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		clock:  NewClock(),
		ids:    action.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// Subscribe registers a handler under name. Must be called before Run.
func (d *Dispatcher) Subscribe(name string, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("subscribe %q: %w", name, ErrRunning)
	}
	d.subs = append(d.subs, &subscriber{
		name:    name,
		handler: h,
		queue:   newActionQueue(),
	})
	return nil
}

// Publish stamps the action with an ID (when empty) and a sequence number,
// then enqueues it for every subscriber. It never blocks on handlers.
//
// Returns the stamped action and false if the dispatcher has been stopped.
func (d *Dispatcher) Publish(a action.Action) (action.Action, bool) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return a, false
	}
	if a.ID == "" {
		a.ID = d.ids.Generate()
	}
	a.Seq = d.clock.Next()
	subs := d.subs
	d.mu.Unlock()

	d.logger.Debug("publish",
		"action_id", a.ID,
		"kind", a.Kind().String(),
		"seq", a.Seq,
		"correlation_id", a.CorrelationID,
	)

	delivered := true
	for _, s := range subs {
		if !s.queue.Enqueue(a) {
			delivered = false
		}
	}
	return a, delivered
}

// Run starts one worker per subscriber and blocks until ctx is cancelled
// or Stop is called and every queue has drained.
//
// Handler failures are logged with the action's context and processing
// continues with the next action.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrRunning
	}
	d.running = true
	subs := d.subs
	d.mu.Unlock()

	d.logger.Info("dispatcher starting", "subscribers", len(subs))

	var wg sync.WaitGroup
	errs := make(chan error, len(subs))
	for _, s := range subs {
		wg.Add(1)
		go func(s *subscriber) {
			defer wg.Done()
			errs <- d.work(ctx, s)
		}(s)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			d.logger.Info("dispatcher stopping", "reason", err)
			return err
		}
	}
	d.logger.Info("dispatcher stopped")
	return nil
}

// Stop closes every subscriber queue. Workers finish the actions already
// queued, then Run returns.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	subs := d.subs
	d.mu.Unlock()

	for _, s := range subs {
		s.queue.Close()
	}
}

// QueueLen returns the total number of undelivered actions.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	subs := d.subs
	d.mu.Unlock()

	n := 0
	for _, s := range subs {
		n += s.queue.Len()
	}
	return n
}

// Clock returns the dispatcher's logical clock.
func (d *Dispatcher) Clock() *Clock {
	return d.clock
}

// work is the single-consumer loop for one subscriber.
func (d *Dispatcher) work(ctx context.Context, s *subscriber) error {
	for {
		a, ok := s.queue.TryDequeue()
		if ok {
			if err := s.handler(ctx, a); err != nil {
				d.logger.Error("handler failed",
					"subscriber", s.name,
					"action_id", a.ID,
					"kind", a.Kind().String(),
					"seq", a.Seq,
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.queue.Close()
			return ctx.Err()
		case <-s.queue.Wait():
			// A closed queue keeps this case ready, so the loop drains
			// what is left and then exits here.
			if s.queue.Drained() {
				return nil
			}
		}
	}
}
