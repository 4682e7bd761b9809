package guard

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard grants a short exclusive hold on a string key, used to shed
// rapid duplicate check-payment submissions before they reach the
// gateway. Release drops the hold early; otherwise it lapses with the TTL.
type Guard interface {
	Acquire(key string) bool
	Release(key string)
}

type redisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (g *redisGuard) Acquire(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := g.client.SetNX(ctx, g.prefix+":"+key, "1", g.ttl).Result()
	if err != nil {
		// Redis trouble must not block settlement; the claim marker on
		// the payment row is the durable protection.
		return true
	}
	return ok
}

func (g *redisGuard) Release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	g.client.Del(ctx, g.prefix+":"+key)
}

type memoryGuard struct {
	mu     sync.Mutex
	held   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryGuard(ttl time.Duration) *memoryGuard {
	now := time.Now()
	return &memoryGuard{
		held:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (g *memoryGuard) Acquire(key string) bool {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if exp, ok := g.held[key]; ok && exp.After(now) {
		return false
	}

	g.held[key] = now.Add(g.ttl)
	if now.After(g.nextGC) {
		for k, exp := range g.held {
			if exp.Before(now) {
				delete(g.held, k)
			}
		}
		g.nextGC = now.Add(g.ttl)
	}
	return true
}

func (g *memoryGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
}

// New builds a Redis-backed guard and falls back to in-memory when the
// address is empty or Redis is unreachable.
func New(addr, pass string, db int, ttl time.Duration) (Guard, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if addr == "" {
		return newMemoryGuard(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryGuard(ttl), err
	}

	return &redisGuard{
		client: client,
		prefix: "pay:check",
		ttl:    ttl,
	}, nil
}
