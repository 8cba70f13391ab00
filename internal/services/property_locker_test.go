package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"staypricing/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func exerciseMutualExclusion(t *testing.T, locker PropertyLocker) {
	t.Helper()

	var (
		wg      sync.WaitGroup
		holders int32
		maxSeen int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "42")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&holders, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&holders, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestLocalLockerSerializesProperty(t *testing.T) {
	exerciseMutualExclusion(t, NewLocalLocker())
}

func TestLocalLockerIndependentProperties(t *testing.T) {
	locker := NewLocalLocker()

	unlock, err := locker.Lock(context.Background(), "42")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := locker.Lock(ctx, "7")
	require.NoError(t, err)
	other()

	blocked, cancelBlocked := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelBlocked()
	_, err = locker.Lock(blocked, "42")
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	unlock()
	unlock()

	again, err := locker.Lock(context.Background(), "42")
	require.NoError(t, err)
	again()

	assert.Empty(t, locker.(*localLocker).locks)
}

func TestRedisLockerSerializesProperty(t *testing.T) {
	exerciseMutualExclusion(t, NewRedisLocker(newMemoryLockStore(), time.Second, time.Millisecond))
}

func TestRedisLockerReleasesOwnToken(t *testing.T) {
	store := newMemoryLockStore()
	locker := NewRedisLocker(store, time.Second, time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "42")
	require.NoError(t, err)
	assert.Contains(t, store.keys, utils.CacheLockPrefix+"42")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "42")
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	unlock()
	assert.NotContains(t, store.keys, utils.CacheLockPrefix+"42")
}

type mockLockStore struct {
	mock.Mock
}

func (m *mockLockStore) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *mockLockStore) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	args := m.Called(ctx, key, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockLockStore) ExtendLock(ctx context.Context, key, token string, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, token, expiration)
	return args.Bool(0), args.Error(1)
}

func TestRedisLockerStoreError(t *testing.T) {
	store := &mockLockStore{}
	store.On("SetNX", mock.Anything, utils.CacheLockPrefix+"42", mock.AnythingOfType("string"), 5*time.Second).
		Return(false, errors.New("connection refused"))

	_, err := NewRedisLocker(store, 5*time.Second, time.Millisecond).Lock(context.Background(), "42")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "ReleaseLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedisLockerRetriesUntilFree(t *testing.T) {
	store := &mockLockStore{}
	store.On("SetNX", mock.Anything, utils.CacheLockPrefix+"42", mock.AnythingOfType("string"), time.Second).
		Return(false, nil).Twice()
	store.On("SetNX", mock.Anything, utils.CacheLockPrefix+"42", mock.AnythingOfType("string"), time.Second).
		Return(true, nil).Once()
	store.On("ReleaseLock", mock.Anything, utils.CacheLockPrefix+"42", mock.AnythingOfType("string")).
		Return(true, nil).Once()

	unlock, err := NewRedisLocker(store, time.Second, time.Millisecond).Lock(context.Background(), "42")
	require.NoError(t, err)
	unlock()

	store.AssertNumberOfCalls(t, "SetNX", 3)
	store.AssertExpectations(t)
}

func TestRedisLockerOutlivesTTL(t *testing.T) {
	store := newMemoryLockStore()
	locker := NewRedisLocker(store, 60*time.Millisecond, 5*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "42")
	require.NoError(t, err)

	// well past the ttl, the holder still owns the property
	time.Sleep(250 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "42")
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	unlock()
	next, err := locker.Lock(context.Background(), "42")
	require.NoError(t, err)
	next()
}

func TestRedisLockerStopsRenewingLostLock(t *testing.T) {
	store := &mockLockStore{}
	store.On("SetNX", mock.Anything, utils.CacheLockPrefix+"42", mock.AnythingOfType("string"), 30*time.Millisecond).
		Return(true, nil).Once()
	store.On("ExtendLock", mock.Anything, utils.CacheLockPrefix+"42", mock.AnythingOfType("string"), 30*time.Millisecond).
		Return(false, nil).Once()
	store.On("ReleaseLock", mock.Anything, utils.CacheLockPrefix+"42", mock.AnythingOfType("string")).
		Return(false, nil).Once()

	unlock, err := NewRedisLocker(store, 30*time.Millisecond, time.Millisecond).Lock(context.Background(), "42")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	unlock()

	store.AssertNumberOfCalls(t, "ExtendLock", 1)
	store.AssertExpectations(t)
}
