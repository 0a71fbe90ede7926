package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("redis", func(t *testing.T) {
		store, _ := setupTestRedis(t)
		fn(t, store)
	})
}

func TestStore_GetSetDelete(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, ok, err := s.Get(ctx, "refresh:last_added")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Set(ctx, "refresh:last_added", "2024-01-02T03:04:05-08:00"))
		v, ok, err := s.Get(ctx, "refresh:last_added")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2024-01-02T03:04:05-08:00", v)

		require.NoError(t, s.Delete(ctx, "refresh:last_added"))
		_, ok, err = s.Get(ctx, "refresh:last_added")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_Increment(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		n, err := s.Increment(ctx, "rate:images:daily_count:20240101")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.Increment(ctx, "rate:images:daily_count:20240101")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		require.NoError(t, s.Set(ctx, "sync:consecutive_failures", "41"))
		n, err = s.Increment(ctx, "sync:consecutive_failures")
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})
}

func TestStore_IncrementNonNumeric(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "counter", "abc"))

		_, err := s.Increment(ctx, "counter")
		assert.Error(t, err)
	})
}

func TestHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := GetInt(ctx, s, "rate:core:remaining")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "rate:core:remaining", "not-a-number"))
	_, ok, err = GetInt(ctx, s, "rate:core:remaining")
	require.NoError(t, err)
	assert.False(t, ok, "non-numeric values read as unset")

	require.NoError(t, SetInt(ctx, s, "rate:core:remaining", 59))
	n, ok, err := GetInt(ctx, s, "rate:core:remaining")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(59), n)

	now := time.Unix(1700000000, 0)
	require.NoError(t, SetTime(ctx, s, "rate:core:last_seen_at", now))
	got, ok, err := GetTime(ctx, s, "rate:core:last_seen_at")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, now.Equal(got))
}

func TestIsSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"0", false},
		{"false", false},
		{"1", true},
		{"true", true},
	}

	for _, tt := range tests {
		require.NoError(t, s.Set(ctx, "sync:global_disabled", tt.value))
		got, err := IsSet(ctx, s, "sync:global_disabled")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "value %q", tt.value)
	}

	require.NoError(t, s.Delete(ctx, "sync:global_disabled"))
	got, err := IsSet(ctx, s, "sync:global_disabled")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestRedisStore_Prefix(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "sync:global_disabled", "1"))

	v, err := mr.Get("mmc:sync:global_disabled")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("not a url")
	assert.Error(t, err)
}
