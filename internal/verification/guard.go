package verification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
)

// RedisGuard guarda locks e resultados de análise no Redis, compartilhados entre réplicas
type RedisGuard struct {
	rdb *redis.Client
}

func NewRedisGuard(rdb *redis.Client) *RedisGuard { return &RedisGuard{rdb: rdb} }

// Acquire usa SET NX com TTL para o lock não ficar preso se o processo cair
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, key).Err()
}

func (g *RedisGuard) Load(ctx context.Context, key string) (*challenge.Analysis, bool, error) {
	b, err := g.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var a challenge.Analysis
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, false, err
	}
	return &a, true, nil
}

func (g *RedisGuard) Store(ctx context.Context, key string, a *challenge.Analysis, ttl time.Duration) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return g.rdb.Set(ctx, key, b, ttl).Err()
}

// MemoryGuard é a versão de processo único
type MemoryGuard struct {
	mu      sync.Mutex
	locks   map[string]time.Time
	results map[string]memoryResult
	now     func() time.Time
}

type memoryResult struct {
	a       challenge.Analysis
	expires time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{locks: map[string]time.Time{}, results: map[string]memoryResult{}, now: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if exp, ok := g.locks[key]; ok && g.now().Before(exp) {
		return false, nil
	}
	g.locks[key] = g.now().Add(ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.locks, key)
	g.mu.Unlock()
	return nil
}

func (g *MemoryGuard) Load(_ context.Context, key string) (*challenge.Analysis, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.results[key]
	if !ok || !g.now().Before(r.expires) {
		return nil, false, nil
	}
	a := r.a
	return &a, true, nil
}

func (g *MemoryGuard) Store(_ context.Context, key string, a *challenge.Analysis, ttl time.Duration) error {
	g.mu.Lock()
	g.results[key] = memoryResult{a: *a, expires: g.now().Add(ttl)}
	g.mu.Unlock()
	return nil
}
