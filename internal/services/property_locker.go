package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"staypricing/internal/utils"

	"github.com/google/uuid"
)

var ErrLockNotAcquired = errors.New("failed to acquire property lock")

// globalLockKey serializes writes of rules scoped to every property.
const globalLockKey = "*"

// PropertyLocker serializes rule store writes per property. Writes to
// different properties never wait on each other.
type PropertyLocker interface {
	Lock(ctx context.Context, propertyID string) (unlock func(), err error)
}

type localLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker returns an in-process keyed mutex.
func NewLocalLocker() PropertyLocker {
	return &localLocker{locks: make(map[string]*localLock)}
}

func (l *localLocker) Lock(ctx context.Context, propertyID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[propertyID]
	if !ok {
		lock = &localLock{sem: make(chan struct{}, 1)}
		l.locks[propertyID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(propertyID, lock)
		return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.sem
			l.release(propertyID, lock)
		})
	}, nil
}

func (l *localLocker) release(propertyID string, lock *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, propertyID)
	}
}

// LockStore is the part of the cache a distributed lock needs.
// *cache.RedisCache satisfies it.
type LockStore interface {
	SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	ExtendLock(ctx context.Context, key, token string, expiration time.Duration) (bool, error)
}

type redisLocker struct {
	store LockStore
	ttl   time.Duration
	retry time.Duration
}

// NewRedisLocker returns a lock shared by every instance using the same
// Redis. The lock expires after ttl so a crashed holder cannot wedge a
// property forever; a live holder renews it every ttl/3 until unlock.
func NewRedisLocker(store LockStore, ttl, retry time.Duration) PropertyLocker {
	if ttl <= 0 {
		ttl = utils.DefaultLockTTL
	}
	if retry <= 0 {
		retry = utils.DefaultLockRetry
	}
	return &redisLocker{store: store, ttl: ttl, retry: retry}
}

func (l *redisLocker) Lock(ctx context.Context, propertyID string) (func(), error) {
	key := utils.CacheLockPrefix + propertyID
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, err)
		}
		if ok {
			break
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
		}
	}

	stop := make(chan struct{})
	go l.keepAlive(key, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			// the caller's context may already be done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = l.store.ReleaseLock(releaseCtx, key, token)
		})
	}, nil
}

func (l *redisLocker) keepAlive(key, token string, stop <-chan struct{}) {
	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := l.store.ExtendLock(ctx, key, token, l.ttl)
			cancel()
			// a store error is retried on the next tick
			if err == nil && !held {
				return
			}
		}
	}
}
