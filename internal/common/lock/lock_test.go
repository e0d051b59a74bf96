package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *testLogger) Warn(msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// exerciseMutualExclusion runs n goroutines through the same key and fails if two are
// ever inside the critical section at once.
func exerciseMutualExclusion(t *testing.T, locker Locker, n int) {
	t.Helper()

	var inside, maxInside, done int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "decide:app-1")
			if !assert.NoError(t, err) {
				return
			}
			cur := atomic.AddInt32(&inside, 1)
			for {
				prev := atomic.LoadInt32(&maxInside)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxInside, prev, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			atomic.AddInt32(&done, 1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
	assert.Equal(t, int32(n), atomic.LoadInt32(&done))
}

// ==========================
// Local locker
// ==========================

func TestLocalLocker_MutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	exerciseMutualExclusion(t, locker, 20)
	assert.Equal(t, 0, locker.held())
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()

	releaseA, err := locker.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := locker.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAcquired))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	release()
	release()
	assert.Equal(t, 0, locker.held())
}

// ==========================
// Redis locker
// ==========================

func newMiniredisLocker(t *testing.T, opts ...RedisOption) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]RedisOption{WithRetryBackoff(time.Millisecond)}, opts...)
	return NewRedisLocker(client, &testLogger{}, opts...), mr
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	locker, mr := newMiniredisLocker(t)
	exerciseMutualExclusion(t, locker, 10)
	assert.False(t, mr.Exists("lock:decide:app-1"))
}

func TestRedisLocker_SetsTTL(t *testing.T) {
	locker, mr := newMiniredisLocker(t, WithTTL(5*time.Second), WithTokenSource(func() string { return "token-1" }))

	release, err := locker.Acquire(context.Background(), "decide:app-2")
	require.NoError(t, err)

	got, err := mr.Get("lock:decide:app-2")
	require.NoError(t, err)
	assert.Equal(t, "token-1", got)
	assert.Equal(t, 5*time.Second, mr.TTL("lock:decide:app-2"))

	release()
	assert.False(t, mr.Exists("lock:decide:app-2"))
}

func TestRedisLocker_ReleaseKeepsForeignLease(t *testing.T) {
	locker, mr := newMiniredisLocker(t, WithTokenSource(func() string { return "mine" }))

	release, err := locker.Acquire(context.Background(), "decide:app-3")
	require.NoError(t, err)

	// The lease expired and someone else took it.
	require.NoError(t, mr.Set("lock:decide:app-3", "theirs"))

	release()
	got, err := mr.Get("lock:decide:app-3")
	require.NoError(t, err)
	assert.Equal(t, "theirs", got)
}

func TestRedisLocker_WaitsUntilContextEnds(t *testing.T) {
	locker, mr := newMiniredisLocker(t)
	require.NoError(t, mr.Set("lock:decide:busy", "other"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := locker.Acquire(ctx, "decide:busy")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAcquired))
}

func TestRedisLocker_CommandError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisLocker(client, &testLogger{}, WithTTL(time.Second), WithTokenSource(func() string { return "tok" }))

	mock.ExpectSetNX("lock:decide:app-4", "tok", time.Second).SetErr(errors.New("connection refused"))

	_, err := locker.Acquire(context.Background(), "decide:app-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, errors.Is(err, ErrNotAcquired))
	assert.NoError(t, mock.ExpectationsWereMet())
}
