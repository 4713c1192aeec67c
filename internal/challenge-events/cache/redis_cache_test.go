package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

func TestApplyKeepsNewestVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewStatusCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	ctx := context.Background()

	ok, err := c.Apply(ctx, events.ChallengeEvent{ChallengeID: "c1", Status: "active", Version: 3})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Apply(ctx, events.ChallengeEvent{ChallengeID: "c1", Status: "pending", Version: 2})
	require.NoError(t, err)
	assert.False(t, ok, "older version is ignored")

	ok, err = c.Apply(ctx, events.ChallengeEvent{ChallengeID: "c1", Status: "completed", Version: 4})
	require.NoError(t, err)
	assert.True(t, ok)

	ev, found, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "completed", ev.Status)

	mr.FastForward(2 * time.Minute)
	_, found, err = c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestApplyOrdersEventsWithinVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewStatusCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	ctx := context.Background()

	for i, typ := range []string{events.ChallengeEvidence, events.ChallengeStatusChanged, events.ChallengeSettled} {
		ok, err := c.Apply(ctx, events.ChallengeEvent{Type: typ, ChallengeID: "c1", Status: "completed", Version: 7, Seq: i})
		require.NoError(t, err)
		assert.True(t, ok, typ)
	}

	ok, err := c.Apply(ctx, events.ChallengeEvent{Type: events.ChallengeStatusChanged, ChallengeID: "c1", Version: 7, Seq: 1})
	require.NoError(t, err)
	assert.False(t, ok, "redelivered event is ignored")

	ev, found, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, events.ChallengeSettled, ev.Type)
}
