package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/actsync/internal/activity"
	"github.com/roach88/actsync/internal/cache"
	"github.com/roach88/actsync/internal/config"
	"github.com/roach88/actsync/internal/dispatch"
	"github.com/roach88/actsync/internal/remote"
	"github.com/roach88/actsync/internal/sitelock"
	"github.com/roach88/actsync/internal/store"
)

// runtime is everything one command invocation needs: the loaded config,
// the cache, a running dispatcher and the store subscribed to it.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	cache      *cache.Cache
	redis      *redis.Client
	dispatcher *dispatch.Dispatcher
	store      *store.Store

	cancel context.CancelFunc
	runErr chan error
}

// openRuntime loads config and wires the store. needRemote rejects a
// missing remote.base_url up front instead of failing on the first call.
func openRuntime(ctx context.Context, opts *RootOptions, cmd *cobra.Command, needRemote bool) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	logger, err := newLogger(cfg.Logging, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid logging config", err)
	}
	slog.SetDefault(logger)

	src := opts.Remote
	if src == nil {
		if needRemote && cfg.Remote.BaseURL == "" {
			return nil, NewExitError(ExitCommandError, "remote.base_url is required for this command")
		}
		src = remote.NewClient(cfg.Remote.BaseURL,
			remote.WithToken(cfg.Remote.Token),
			remote.WithTimeout(cfg.Remote.Timeout),
			remote.WithLogger(logger),
		)
	}

	rt := &runtime{cfg: cfg, logger: logger}

	slog.Debug("opening cache", "path", cfg.Database.Path, "driver", cfg.Database.Driver)
	rt.cache, err = cache.Open(cfg.Database.Path, cache.WithDriver(cfg.Database.Driver))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	locker, err := rt.newLocker(ctx)
	if err != nil {
		rt.closeResources()
		return nil, WrapExitError(ExitCommandError, "failed to connect lock backend", err)
	}

	dopts := []dispatch.Option{dispatch.WithLogger(logger)}
	if opts.IDGenerator != nil {
		dopts = append(dopts, dispatch.WithIDGenerator(opts.IDGenerator))
	}
	rt.dispatcher = dispatch.New(dopts...)

	rt.store, err = store.New(rt.dispatcher, src, rt.cache,
		store.WithPageSize(cfg.Store.PageSize),
		store.WithSubscriberBuffer(cfg.Store.SubscriberBuffer),
		store.WithLocker(locker),
		store.WithLogger(logger),
	)
	if err != nil {
		rt.closeResources()
		return nil, WrapExitError(ExitCommandError, "failed to create store", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.runErr = make(chan error, 1)
	go func() { rt.runErr <- rt.dispatcher.Run(runCtx) }()

	return rt, nil
}

func (rt *runtime) newLocker(ctx context.Context) (sitelock.Locker, error) {
	if rt.cfg.Lock.Backend != config.LockRedis {
		return sitelock.NewLocal(), nil
	}

	rt.redis = redis.NewClient(&redis.Options{
		Addr:     rt.cfg.Lock.Redis.Addr,
		Password: rt.cfg.Lock.Redis.Password,
		DB:       rt.cfg.Lock.Redis.DB,
	})
	if err := rt.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", rt.cfg.Lock.Redis.Addr, err)
	}
	return sitelock.NewRedis(rt.redis,
		sitelock.WithTTL(rt.cfg.Lock.TTL),
		sitelock.WithLogger(rt.logger),
	), nil
}

// Close waits for in-flight remote calls, drains the dispatcher and
// releases the cache and Redis connections.
func (rt *runtime) Close() {
	rt.store.Wait()
	rt.dispatcher.Stop()
	if err := <-rt.runErr; err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("dispatcher stopped with error", "error", err)
	}
	rt.cancel()
	rt.store.Close()
	rt.closeResources()
}

func (rt *runtime) closeResources() {
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			slog.Error("error closing redis client", "error", err)
		}
	}
	if err := rt.cache.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg config.LoggingConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// signalContext derives a context cancelled on SIGINT or SIGTERM.
// Use command's context if available (for testing), otherwise create one.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

// parseSite parses a positional site ID.
func parseSite(arg string) (activity.Site, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return activity.Site{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid site id %q: must be a positive integer", arg))
	}
	return activity.Site{ID: id}, nil
}

// awaitChange blocks until the change for actionID arrives on changes.
func awaitChange(ctx context.Context, changes <-chan store.Change, actionID string) (store.Change, error) {
	for {
		select {
		case c, ok := <-changes:
			if !ok {
				return store.Change{}, errors.New("change stream closed")
			}
			if c.ActionID == actionID {
				return c, nil
			}
		case <-ctx.Done():
			return store.Change{}, ctx.Err()
		}
	}
}
