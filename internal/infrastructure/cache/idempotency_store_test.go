package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// exerciseStore runs the shared contract against any IdempotencyStore
func exerciseStore(t *testing.T, store IdempotencyStore) {
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		ok, err := store.Claim(ctx, "k1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Claim(ctx, "k1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("pending key has no payload", func(t *testing.T) {
		payload, done, err := store.Lookup(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, done)
		assert.Nil(t, payload)
	})

	t.Run("completed key replays payload", func(t *testing.T) {
		require.NoError(t, store.Complete(ctx, "k1", []byte(`{"status":201}`), time.Hour))

		payload, done, err := store.Lookup(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, done)
		assert.JSONEq(t, `{"status":201}`, string(payload))

		ok, err := store.Claim(ctx, "k1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("released key can be claimed again", func(t *testing.T) {
		ok, err := store.Claim(ctx, "k2", time.Hour)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, store.Release(ctx, "k2"))

		ok, err = store.Claim(ctx, "k2", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, done, err := store.Lookup(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, done)
	})
}

func TestInMemoryIdempotencyStore(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	exerciseStore(t, store)

	t.Run("expired claims can be reclaimed", func(t *testing.T) {
		ctx := context.Background()
		ok, err := store.Claim(ctx, "short", 10*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(20 * time.Millisecond)

		ok, err = store.Claim(ctx, "short", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("cleanup drops expired entries", func(t *testing.T) {
		_, _ = store.Claim(context.Background(), "gone", time.Nanosecond)
		time.Sleep(time.Millisecond)
		before := store.Size()
		store.cleanup()
		assert.Less(t, store.Size(), before)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		s := NewInMemoryIdempotencyStore()
		assert.NoError(t, s.Close())
		assert.NoError(t, s.Close())
	})
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisIdempotencyStore(client, "")

	exerciseStore(t, store)

	t.Run("keys are prefixed and expire", func(t *testing.T) {
		ctx := context.Background()
		ok, err := store.Claim(ctx, "ttl", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, mr.Exists("boq:idempotency:ttl"))

		mr.FastForward(2 * time.Minute)

		ok, err = store.Claim(ctx, "ttl", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("redis outage surfaces as error", func(t *testing.T) {
		mr.Close()
		_, err := store.Claim(context.Background(), "down", time.Minute)
		assert.Error(t, err)
	})
}

func TestNewIdempotencyStore(t *testing.T) {
	_, client := newMiniRedis(t)

	assert.IsType(t, &RedisIdempotencyStore{}, NewIdempotencyStore(client, nil))

	mem := NewIdempotencyStore(nil, nil)
	defer mem.Close()
	assert.IsType(t, &InMemoryIdempotencyStore{}, mem)
}
