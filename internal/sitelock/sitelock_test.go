package sitelock

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actsync/internal/activity"
)

var (
	siteA = activity.Site{ID: 1}
	siteB = activity.Site{ID: 2}
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

// lockers returns one of each implementation so the shared behaviour is
// tested against both.
func lockers(t *testing.T) map[string]Locker {
	client, _ := setupTestRedis(t)
	return map[string]Locker{
		"local": NewLocal(),
		"redis": NewRedis(client, WithRetry(time.Millisecond)),
	}
}

func TestLocker_MutualExclusion(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := l.Lock(context.Background(), siteA)
					if !assert.NoError(t, err) {
						return
					}
					n := inside.Add(1)
					if n > maxInside.Load() {
						maxInside.Store(n)
					}
					time.Sleep(time.Millisecond)
					inside.Add(-1)
					unlock()
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxInside.Load())
		})
	}
}

func TestLocker_SitesIndependent(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlockA, err := l.Lock(context.Background(), siteA)
			require.NoError(t, err)
			defer unlockA()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			unlockB, err := l.Lock(ctx, siteB)
			require.NoError(t, err, "site B must not wait on site A")
			unlockB()
		})
	}
}

func TestLocker_ContextCancelled(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := l.Lock(context.Background(), siteA)
			require.NoError(t, err)
			defer unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = l.Lock(ctx, siteA)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestLocker_UnlockIdempotent(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := l.Lock(context.Background(), siteA)
			require.NoError(t, err)
			unlock()
			unlock()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			again, err := l.Lock(ctx, siteA)
			require.NoError(t, err)
			again()
		})
	}
}

func TestRedisLocker_KeyCarriesTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedis(client, WithTTL(10*time.Second))

	unlock, err := l.Lock(context.Background(), siteA)
	require.NoError(t, err)

	assert.True(t, mr.Exists("actsync:lock:site:1"))
	assert.Equal(t, 10*time.Second, mr.TTL("actsync:lock:site:1"))

	unlock()
	assert.False(t, mr.Exists("actsync:lock:site:1"))
}

func TestRedisLocker_ExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	client, mr := setupTestRedis(t)
	first := NewRedis(client, WithTTL(time.Second))
	second := NewRedis(client, WithTTL(time.Minute))

	unlockFirst, err := first.Lock(context.Background(), siteA)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlockSecond, err := second.Lock(context.Background(), siteA)
	require.NoError(t, err)
	defer unlockSecond()

	unlockFirst()
	assert.True(t, mr.Exists("actsync:lock:site:1"), "second holder's lock must survive")
}

func TestRedisLocker_SharedAcrossInstances(t *testing.T) {
	client, _ := setupTestRedis(t)
	a := NewRedis(client, WithRetry(time.Millisecond))
	b := NewRedis(client, WithRetry(time.Millisecond))

	unlock, err := a.Lock(context.Background(), siteA)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		unlockB, err := b.Lock(context.Background(), siteA)
		if err == nil {
			unlockB()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second instance acquired a held lock")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second instance never acquired the released lock")
	}
}

func TestRedisLocker_BackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	l := NewRedis(client)
	mr.Close()

	_, err = l.Lock(context.Background(), siteA)
	assert.ErrorContains(t, err, "acquire lock site:1")
}

func TestRedisLocker_ValueCarriesOwner(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedis(client)

	unlock, err := l.Lock(context.Background(), siteA)
	require.NoError(t, err)

	val, err := mr.Get(lockKey(siteA))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(val, l.OwnerID()+":"), "lock value %q", val)

	unlock()
	assert.False(t, mr.Exists(lockKey(siteA)))
}
