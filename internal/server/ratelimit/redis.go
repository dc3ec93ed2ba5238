package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/reembolsai/internal/logging"
)

// Redis shares the cooldown between processes. A key is claimed with
// SET NX PX, so the first caller wins and Redis expires it. Redis errors
// fail open.
type Redis struct {
	client   *redis.Client
	cooldown time.Duration
	prefix   string
	timeout  time.Duration
	logger   logging.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts *redis.Options, cooldown time.Duration, logger logging.Logger) (*Redis, error) {
	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Redis{
		client:   client,
		cooldown: cooldown,
		prefix:   "reembolsai:resend:",
		timeout:  250 * time.Millisecond,
		logger:   logger.With("module", "ratelimit"),
	}, nil
}

func (r *Redis) Allow(ctx context.Context, key string) Decision {
	if r.cooldown <= 0 {
		return Decision{Allowed: true}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	redisKey := r.prefix + key
	ok, err := r.client.SetNX(ctx, redisKey, 1, r.cooldown).Result()
	if err != nil {
		r.logger.Error(ctx, "redis rate limiter error", "op", "setnx", "error", err)
		return Decision{Allowed: true}
	}
	if ok {
		return Decision{Allowed: true}
	}

	ttl, err := r.client.PTTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = r.cooldown
	}
	return Decision{Remaining: ttl}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
