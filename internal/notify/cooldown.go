package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown decides whether a notification keyed by key may be sent now.
// A true result starts a new cooldown window for that key.
type Cooldown interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryCooldown keeps the last send time per key in process memory
type MemoryCooldown struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	return &MemoryCooldown{
		last:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

func (c *MemoryCooldown) Allow(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[key]; ok && now.Sub(last) < c.window {
		return false, nil
	}
	c.last[key] = now

	// drop expired keys so the map does not grow without bound
	for k, t := range c.last {
		if now.Sub(t) >= c.window {
			delete(c.last, k)
		}
	}
	return true, nil
}

// RedisCooldown shares cooldown windows across instances with SET NX EX
type RedisCooldown struct {
	client redis.Cmdable
	window time.Duration
	prefix string
}

func NewRedisCooldown(client redis.Cmdable, window time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, window: window, prefix: "glucose:cooldown:"}
}

func (c *RedisCooldown) Allow(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+key, time.Now().Unix(), c.window).Result()
}
