package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryReplayGuard keeps claimed keys in process.
type MemoryReplayGuard struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	now     func() time.Time
	claimed int
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryReplayGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.seen[key] = now.Add(ttl)

	// sweep expired keys every 1024 claims
	g.claimed++
	if g.claimed%1024 == 0 {
		for k, exp := range g.seen {
			if !now.Before(exp) {
				delete(g.seen, k)
			}
		}
	}
	return true, nil
}

// RedisReplayGuard shares claimed keys between server instances.
type RedisReplayGuard struct {
	client *redis.Client
	prefix string
}

func NewRedisReplayGuard(client *redis.Client, prefix string) *RedisReplayGuard {
	return &RedisReplayGuard{client: client, prefix: prefix}
}

func (g *RedisReplayGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim nonce: %w", err)
	}
	return ok, nil
}
