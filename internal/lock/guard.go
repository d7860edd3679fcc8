// Package lock provides a Redis-backed replay guard for webhook deliveries.
package lock

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const keyPrefix = "payrelay:replay:"

var Module = fx.Module("lock",
	fx.Provide(NewGuard),
)

// Guard remembers keys for a TTL so repeated deliveries can be dropped.
// A nil Guard acquires every key.
type Guard struct {
	client *redis.Client
}

type Params struct {
	fx.In

	Client *redis.Client `optional:"true"`
}

func NewGuard(p Params) *Guard {
	return New(p.Client)
}

func New(client *redis.Client) *Guard {
	if client == nil {
		return nil
	}
	return &Guard{client: client}
}

// Acquire reports whether key was claimed by this call. False means another
// delivery already claimed it within ttl.
func (g *Guard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if g == nil || g.client == nil || key == "" {
		return true, nil
	}
	if ttl <= 0 {
		return false, errors.New("replay ttl must be positive")
	}
	return g.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release forgets key so a later delivery can be processed again.
func (g *Guard) Release(ctx context.Context, key string) error {
	if g == nil || g.client == nil || key == "" {
		return nil
	}
	return g.client.Del(ctx, keyPrefix+key).Err()
}
