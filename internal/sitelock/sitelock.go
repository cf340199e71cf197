// Package sitelock provides the per-site critical section that keeps
// cache writes for one site from interleaving.
package sitelock

import (
	"context"
	"sync"

	"github.com/roach88/actsync/internal/activity"
)

// Locker serialises work per site. Lock blocks until the site is free or
// ctx is done; the returned func releases it and must be called exactly
// once.
type Locker interface {
	Lock(ctx context.Context, site activity.Site) (unlock func(), err error)
}

var _ Locker = (*Local)(nil)

// Local is an in-process Locker. The zero value is ready to use.
type Local struct {
	mu    sync.Mutex
	sites map[int64]chan struct{}
}

// NewLocal creates an in-process Locker.
func NewLocal() *Local {
	return &Local{}
}

// Lock acquires the site's slot.
func (l *Local) Lock(ctx context.Context, site activity.Site) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slot := l.slot(site.ID)
	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-slot })
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Local) slot(siteID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sites == nil {
		l.sites = make(map[int64]chan struct{})
	}
	ch, ok := l.sites[siteID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.sites[siteID] = ch
	}
	return ch
}
