package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// slidingWindowScript keeps one sorted set per bucket, scored by request
// time in milliseconds, and admits atomically. Millisecond scores matter:
// the window is typically one second.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('PEXPIRE', key, window * 2)

return {1, limit - count - 1, now + window}
`)

// Redis is the shared sliding-window limiter for multi-node deployments.
// A failing Redis denies requests rather than waving them through.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window}
}

func (r *Redis) Allow(ctx context.Context, clientID, operation string) (Decision, error) {
	now := time.Now()
	fullKey := fmt.Sprintf("ratelimit:%s", bucketKey(clientID, operation))

	result, err := slidingWindowScript.Run(
		ctx,
		r.client,
		[]string{fullKey},
		now.UnixMilli(),
		r.window.Milliseconds(),
		r.limit,
	).Int64Slice()
	if err != nil {
		log.Warn().
			Err(err).
			Str("key", fullKey).
			Msg("rate limit check failed, denying request for safety")
		return Decision{RetryAfter: r.window, ResetAt: now.Add(r.window)}, nil
	}
	if len(result) != 3 {
		log.Warn().Str("key", fullKey).Msg("unexpected rate limit result, denying request for safety")
		return Decision{RetryAfter: r.window, ResetAt: now.Add(r.window)}, nil
	}

	resetAt := time.UnixMilli(result[2])
	d := Decision{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
	}
	return d, nil
}
