package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/challenge-settlement-platform/internal/challenge-service/ws"
)

const ChannelChallengeBroadcast = "challenge_updates_broadcast"

type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = ChannelChallengeBroadcast
	}
	return &RedisBroadcaster{r: r, channel: channel}
}

// Publish envia o update no formato que o hub WS do challenge-service espera
func (b *RedisBroadcaster) Publish(ctx context.Context, u ws.Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
