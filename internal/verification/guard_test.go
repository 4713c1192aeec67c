package verification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
)

func newRedisGuard(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisGuard(rdb), mr
}

func TestRedisGuardLockIsExclusiveUntilReleased(t *testing.T) {
	g, mr := newRedisGuard(t)
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "analysis:c1:proof:u1:lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Acquire(ctx, "analysis:c1:proof:u1:lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Release(ctx, "analysis:c1:proof:u1:lock"))
	ok, _ = g.Acquire(ctx, "analysis:c1:proof:u1:lock", time.Minute)
	assert.True(t, ok)

	// o TTL libera locks esquecidos
	mr.FastForward(2 * time.Minute)
	ok, _ = g.Acquire(ctx, "analysis:c1:proof:u1:lock", time.Minute)
	assert.True(t, ok)
}

func TestRedisGuardRemembersAnalysis(t *testing.T) {
	g, mr := newRedisGuard(t)
	ctx := context.Background()

	_, found, err := g.Load(ctx, "analysis:c1:proof:u1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, g.Store(ctx, "analysis:c1:proof:u1", &challenge.Analysis{ClaimedWinner: "bob", Confidence: 0.7}, time.Hour))
	a, found, err := g.Load(ctx, "analysis:c1:proof:u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "bob", a.ClaimedWinner)

	mr.FastForward(2 * time.Hour)
	_, found, _ = g.Load(ctx, "analysis:c1:proof:u1")
	assert.False(t, found)
}

func TestMemoryGuard(t *testing.T) {
	g := NewMemoryGuard()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := g.Acquire(ctx, "k", time.Second)
	assert.True(t, ok)
	ok, _ = g.Acquire(ctx, "k", time.Second)
	assert.False(t, ok)

	now = now.Add(2 * time.Second)
	ok, _ = g.Acquire(ctx, "k", time.Second)
	assert.True(t, ok)

	require.NoError(t, g.Store(ctx, "r", &challenge.Analysis{ClaimedWinner: "alice"}, time.Minute))
	a, found, _ := g.Load(ctx, "r")
	require.True(t, found)
	assert.Equal(t, "alice", a.ClaimedWinner)
}
