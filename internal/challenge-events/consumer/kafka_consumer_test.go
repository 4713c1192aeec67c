package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/challenge-events/cache"
	"github.com/radieske/challenge-settlement-platform/internal/challenge-events/pubsub"
	"github.com/radieske/challenge-settlement-platform/internal/challenge-service/ws"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

type fakeSource struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (f *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeSource) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

type fakeSink struct{ msgs []kafka.Message }

func (f *fakeSink) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

type failingCache struct{}

func (failingCache) Apply(context.Context, events.ChallengeEvent) (bool, error) {
	return false, errors.New("redis down")
}

type captureBroadcaster struct{ updates []ws.Update }

func (c *captureBroadcaster) Publish(_ context.Context, u ws.Update) error {
	c.updates = append(c.updates, u)
	return nil
}

func message(t *testing.T, offset int64, ev events.ChallengeEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Key: []byte(ev.ChallengeID), Value: b}
}

func TestRunCachesBroadcastsAndCommits(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := rdb.Subscribe(ctx, pubsub.ChannelChallengeBroadcast)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	src := &fakeSource{msgs: []kafka.Message{
		message(t, 1, events.ChallengeEvent{Type: events.ChallengeStatusChanged, ChallengeID: "c1", Status: "completed", Version: 5}),
		message(t, 2, events.ChallengeEvent{Type: events.ChallengeEvidence, ChallengeID: "c1", Status: "scorecard-pending", Version: 4}),
		{Offset: 3, Value: []byte("not json")},
	}}
	dlq := &fakeSink{}
	var stale int
	p := &Processor{
		Log:         zap.NewNop(),
		Source:      src,
		Cache:       cache.NewStatusCache(rdb, time.Minute),
		Broadcaster: pubsub.NewRedisBroadcaster(rdb, ""),
		DLQ:         dlq,
		OnStale:     func() { stale++ },
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case msg := <-sub.Channel():
		var u ws.Update
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &u))
		assert.Equal(t, "c1", u.ChallengeID)
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.committed) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, 1, stale)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, []byte("not json"), dlq.msgs[0].Value)

	ev, found, err := cache.NewStatusCache(rdb, time.Minute).Get(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "completed", ev.Status)
}

func TestHandleBroadcastsEvenWhenCacheFails(t *testing.T) {
	b := &captureBroadcaster{}
	var stages []string
	p := &Processor{
		Log:         zap.NewNop(),
		Cache:       failingCache{},
		Broadcaster: b,
		OnError:     func(s string) { stages = append(stages, s) },
	}

	p.Handle(context.Background(), message(t, 1, events.ChallengeEvent{ChallengeID: "c9", Version: 1}))

	require.Len(t, b.updates, 1)
	assert.Equal(t, "c9", b.updates[0].ChallengeID)
	assert.Equal(t, []string{"cache"}, stages)
}

func TestHandleRejectsEventWithoutChallenge(t *testing.T) {
	b := &captureBroadcaster{}
	p := &Processor{Log: zap.NewNop(), Cache: failingCache{}, Broadcaster: b}

	p.Handle(context.Background(), kafka.Message{Value: []byte(`{"type":"challenge.created"}`)})
	assert.Empty(t, b.updates)
}

func TestHandleBroadcastsEveryEventOfOneMutation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := &captureBroadcaster{}
	p := &Processor{Log: zap.NewNop(), Cache: cache.NewStatusCache(rdb, time.Minute), Broadcaster: b}

	// uma liquidação publica três eventos com a mesma versão
	types := []string{events.ChallengeEvidence, events.ChallengeStatusChanged, events.ChallengeSettled}
	for i, typ := range types {
		ev := events.ChallengeEvent{Type: typ, ChallengeID: "c1", Status: "completed", Version: 7, Seq: i}
		p.Handle(context.Background(), message(t, int64(i), ev))
	}

	var got []string
	for _, u := range b.updates {
		got = append(got, u.Payload.(events.ChallengeEvent).Type)
	}
	assert.Equal(t, types, got)

	ev, found, err := cache.NewStatusCache(rdb, time.Minute).Get(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, events.ChallengeSettled, ev.Type)
}
