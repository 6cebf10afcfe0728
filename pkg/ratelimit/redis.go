package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter whose counters live in Redis, so several
// server instances share one budget per client.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    Clock
}

func NewRedis(client *redis.Client, name string, limit int, window time.Duration) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{
		client: client,
		prefix: "ratelimit:" + name + ":",
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (r *Redis) Limit() int { return r.limit }

func (r *Redis) Check(ctx context.Context, key string) (Decision, error) {
	k := r.prefix + key

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, r.window)
		pttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check for %s: %w", key, err)
	}

	ttl := pttl.Val()
	if ttl < 0 {
		ttl = r.window
	}
	return decide(int(incr.Val()), r.limit, r.now().Add(ttl)), nil
}
