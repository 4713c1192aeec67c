package forfeit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) Sweep(context.Context, int) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestStartRunsSweepRepeatedly(t *testing.T) {
	sw := &countingSweeper{}
	sched, err := Start(context.Background(), zap.NewNop(), sw, 20*time.Millisecond, 10)
	require.NoError(t, err)
	defer sched.Shutdown()

	assert.Eventually(t, func() bool { return sw.calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestStartKeepsRunningAfterFailure(t *testing.T) {
	sw := &countingSweeper{err: errors.New("db down")}
	sched, err := Start(context.Background(), zap.NewNop(), sw, 20*time.Millisecond, 10)
	require.NoError(t, err)
	defer sched.Shutdown()

	assert.Eventually(t, func() bool { return sw.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}
