package sitelock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/actsync/internal/activity"
)

const (
	keyPrefix = "actsync:lock:site:"

	// DefaultTTL bounds how long a crashed holder can block a site.
	DefaultTTL = 30 * time.Second
	// DefaultRetry is the polling interval while a site is held elsewhere.
	DefaultRetry = 50 * time.Millisecond
)

var _ Locker = (*RedisLocker)(nil)

// RedisLocker is a Locker shared by every process that talks to the same
// Redis. It uses SET NX with a TTL and an owner token per acquisition, so
// an expired holder can never release a lock someone else now owns.
type RedisLocker struct {
	client  *redis.Client
	ownerID string
	ttl     time.Duration
	retry   time.Duration
	logger  *slog.Logger
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets the lock expiry. Default: DefaultTTL.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.ttl = ttl
	}
}

// WithRetry sets the polling interval. Default: DefaultRetry.
func WithRetry(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.retry = d
	}
}

// WithLogger sets the logger used for release failures.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedis creates a RedisLocker on an existing client.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisLocker {
	hostname, _ := os.Hostname()
	l := &RedisLocker{
		client:  client,
		ownerID: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
		ttl:     DefaultTTL,
		retry:   DefaultRetry,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "sitelock")
	return l
}

// OwnerID identifies this process in lock values.
func (l *RedisLocker) OwnerID() string {
	return l.ownerID
}

// Lock polls SET NX until the site key is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, site activity.Site) (func(), error) {
	key := lockKey(site)
	token := l.ownerID + ":" + uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", site, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (l *RedisLocker) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, token) })
	}
}

func (l *RedisLocker) release(key, token string) {
	// Release must run even when the caller's ctx is already done.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		l.logger.Warn("release lock failed", "key", key, "error", err)
		return
	}
	if n == 0 {
		l.logger.Warn("lock expired before release", "key", key, "ttl", l.ttl)
	}
}

func lockKey(site activity.Site) string {
	return fmt.Sprintf("%s%d", keyPrefix, site.ID)
}
