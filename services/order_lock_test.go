package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, exists := f.values[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = fmt.Sprint(value)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisOrderLock(t *testing.T) {
	ctx := context.Background()

	t.Run("second lock on the same order conflicts until released", func(t *testing.T) {
		client := newFakeRedis()
		lock, err := NewRedisOrderLock(client, 10*time.Second)
		require.NoError(t, err)

		release, err := lock.Lock(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, client.ttls[orderLockKey(7)])

		_, err = lock.Lock(ctx, 7)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

		other, err := lock.Lock(ctx, 8)
		require.NoError(t, err)
		require.NoError(t, other(ctx))

		require.NoError(t, release(ctx))
		again, err := lock.Lock(ctx, 7)
		require.NoError(t, err)
		require.NoError(t, again(ctx))
	})

	t.Run("release leaves a lock taken over by another owner", func(t *testing.T) {
		client := newFakeRedis()
		lock, err := NewRedisOrderLock(client, 0)
		require.NoError(t, err)
		assert.Equal(t, defaultOrderLockTTL, lock.ttl)

		release, err := lock.Lock(ctx, 1)
		require.NoError(t, err)

		// simulate expiry followed by another holder
		client.values[orderLockKey(1)] = "someone-else"
		require.NoError(t, release(ctx))
		assert.Equal(t, "someone-else", client.values[orderLockKey(1)])
	})

	t.Run("release of an expired lock is a no-op", func(t *testing.T) {
		client := newFakeRedis()
		lock, _ := NewRedisOrderLock(client, time.Second)
		release, err := lock.Lock(ctx, 2)
		require.NoError(t, err)
		delete(client.values, orderLockKey(2))
		assert.NoError(t, release(ctx))
	})

	t.Run("redis failure is a dependency error", func(t *testing.T) {
		client := newFakeRedis()
		client.setErr = errors.New("connection refused")
		lock, _ := NewRedisOrderLock(client, time.Second)
		_, err := lock.Lock(ctx, 3)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeDependency))
	})

	t.Run("nil client is rejected", func(t *testing.T) {
		_, err := NewRedisOrderLock(nil, time.Second)
		assert.Error(t, err)
	})
}

func TestNoopOrderLock(t *testing.T) {
	release, err := NoopOrderLock{}.Lock(context.Background(), 1)
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}
