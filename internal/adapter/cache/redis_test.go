package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMiniredisCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache("redis://"+mr.Addr(), zap.NewNop())
	require.NoError(t, err)
	return mr, c.(*RedisCache)
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	_, c := newMiniredisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session:s1", `{"phase":"idle"}`, time.Minute))

	val, err := c.Get(ctx, "session:s1")
	require.NoError(t, err)
	assert.Equal(t, `{"phase":"idle"}`, val)

	require.NoError(t, c.Delete(ctx, "session:s1"))

	_, err = c.Get(ctx, "session:s1")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestRedisCache_MissIsTyped(t *testing.T) {
	_, c := newMiniredisCache(t)

	_, err := c.Get(context.Background(), "never-set")

	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestRedisCache_Expiration(t *testing.T) {
	mr, c := newMiniredisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session:s1", "state", time.Second))

	mr.FastForward(2 * time.Second)

	_, err := c.Get(ctx, "session:s1")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestLocalCache_SetGetExpire(t *testing.T) {
	c := NewLocalCache(time.Minute, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, c.Set(ctx, "tmp", "v", time.Nanosecond))
	time.Sleep(2 * time.Millisecond)
	_, err = c.Get(ctx, "tmp")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestLocalCache_MarshalsStructs(t *testing.T) {
	c := NewLocalCache(time.Minute, zap.NewNop())
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", struct {
		Name string `json:"name"`
	}{Name: "Tiramisu"}, 0))

	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Tiramisu"}`, val)
}
