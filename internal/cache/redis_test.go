package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mabquiz/internal/logger"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	c := NewRedisWithClient(rdb, ttl, logger.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t, time.Hour)

	var got stats
	hit, err := c.GetStats(ctx, "alice", &got)
	require.NoError(t, err)
	assert.False(t, hit, "empty cache must miss")

	stored, err := c.PutStats(ctx, "alice", 0, stats{Count: 3})
	require.NoError(t, err)
	require.True(t, stored)

	hit, err = c.GetStats(ctx, "alice", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 3, got.Count)

	hit, err = c.GetStats(ctx, "bob", &got)
	require.NoError(t, err)
	assert.False(t, hit, "entries must be per learner")
}

func TestRedisTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, time.Minute)

	_, err := c.PutStats(ctx, "alice", 0, stats{Count: 1})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("mabquiz:stats:alice"))

	mr.FastForward(2 * time.Minute)
	var got stats
	hit, err := c.GetStats(ctx, "alice", &got)
	require.NoError(t, err)
	assert.False(t, hit, "expired entry still served")
}

func TestRedisInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t, 0)

	_, err := c.PutStats(ctx, "alice", 0, stats{Count: 1})
	require.NoError(t, err)
	require.NoError(t, c.InvalidateLearner(ctx, "alice"))

	var got stats
	hit, err := c.GetStats(ctx, "alice", &got)
	require.NoError(t, err)
	assert.False(t, hit, "invalidated entry still served")

	gen, err := c.Generation(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestRedisPutAfterInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, time.Hour)

	gen, err := c.Generation(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, c.InvalidateLearner(ctx, "alice"))

	stored, err := c.PutStats(ctx, "alice", gen, stats{Count: 1})
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists("mabquiz:stats:alice"))

	gen, err = c.Generation(ctx, "alice")
	require.NoError(t, err)
	stored, err = c.PutStats(ctx, "alice", gen, stats{Count: 2})
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestRedisDropsUndecodableEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, time.Hour)
	require.NoError(t, mr.Set("mabquiz:stats:alice", "{not json"))

	var got stats
	hit, err := c.GetStats(ctx, "alice", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("mabquiz:stats:alice"), "corrupt entry must be deleted")
}
