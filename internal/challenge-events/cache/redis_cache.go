package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// StatusCache guarda o último evento de cada desafio no Redis para leituras rápidas.
// A ordem é (versão, seq): uma mutação gera vários eventos com a mesma versão.
// Eventos que não avançam essa ordem são ignorados.
type StatusCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewStatusCache(c *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{Client: c, TTL: ttl}
}

func key(challengeID string) string { return "challenge:status:" + challengeID }

// setIfNewer grava doc só quando (versão, seq) é maior que o armazenado
var setIfNewer = redis.NewScript(`
local cv = tonumber(redis.call('HGET', KEYS[1], 'version') or '-1')
local cs = tonumber(redis.call('HGET', KEYS[1], 'seq') or '-1')
local nv = tonumber(ARGV[1])
local ns = tonumber(ARGV[2])
if cv > nv or (cv == nv and cs >= ns) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'seq', ARGV[2], 'doc', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// Apply grava o evento e diz se ele era o mais novo
func (c *StatusCache) Apply(ctx context.Context, ev events.ChallengeEvent) (bool, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return false, err
	}
	n, err := setIfNewer.Run(ctx, c.Client, []string{key(ev.ChallengeID)},
		ev.Version, ev.Seq, string(b), c.TTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get devolve o último evento conhecido do desafio
func (c *StatusCache) Get(ctx context.Context, challengeID string) (*events.ChallengeEvent, bool, error) {
	raw, err := c.Client.HGet(ctx, key(challengeID), "doc").Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ev events.ChallengeEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return nil, false, err
	}
	return &ev, true, nil
}
