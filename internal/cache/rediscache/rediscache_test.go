package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()

	_, ok, err := c.Get(ctx, "location:berlin-de")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "location:berlin-de", []byte(`{"code":"berlin-de"}`), time.Minute))

	b, ok, err := c.Get(ctx, "location:berlin-de")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"code":"berlin-de"}`), b)
}

func TestRedisCache_Delete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "tracker:1", []byte("x"), time.Minute))
	require.NoError(t, c.Delete(ctx, "tracker:1"))

	_, ok, err := c.Get(ctx, "tracker:1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:location:berlin-de:2026090112", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:location:berlin-de:2026090112", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:location:berlin-de:2026090112", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}
