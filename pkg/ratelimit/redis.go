package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cubelab/maple-proxy/pkg/apierr"
)

// Redis keys for the shared grant log.
const (
	redisGrantsKey = "maple:rate_limit:grants"
	redisSeqKey    = "maple:rate_limit:seq"
)

// acquireScript implements the sliding grant log atomically. The clock comes
// from Redis TIME so every instance shares one budget, and expired grants
// are trimmed before counting, so no rolling period observes more than
// capacity grants. Returns {allowed, tokens_remaining}.
const acquireScript = `
local capacity = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window_ms)

local used = redis.call("ZCARD", KEYS[1])
local allowed = 0
if used < capacity then
  allowed = 1
  local seq = redis.call("INCR", KEYS[2])
  redis.call("ZADD", KEYS[1], now, now .. "-" .. seq)
  used = used + 1
end

redis.call("PEXPIRE", KEYS[1], window_ms)
redis.call("PEXPIRE", KEYS[2], window_ms)

return {allowed, capacity - used}
`

// refundScript forgets the most recent grant.
const refundScript = `
redis.call("ZPOPMAX", KEYS[1])
return 1
`

// RedisBucket shares one upstream call budget across proxy instances via an
// atomic Lua script. It satisfies the same contract as Bucket.
type RedisBucket struct {
	client   *redis.Client
	capacity int
	windowMS int64
	acquire  *redis.Script
	refund   *redis.Script
	logger   zerolog.Logger
}

// NewRedisBucket creates a shared bucket over the given Redis client.
func NewRedisBucket(client *redis.Client, capacity int, periodMS int64, logger zerolog.Logger) *RedisBucket {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if periodMS <= 0 {
		periodMS = DefaultPeriod.Milliseconds()
	}
	return &RedisBucket{
		client:   client,
		capacity: capacity,
		windowMS: periodMS,
		acquire:  redis.NewScript(acquireScript),
		refund:   redis.NewScript(refundScript),
		logger:   logger,
	}
}

// Acquire consumes one token from the shared bucket, failing fast with a
// RateLimited error when the budget is exhausted.
func (r *RedisBucket) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ctxError(err)
	}

	res, err := r.acquire.Run(ctx, r.client, []string{redisGrantsKey, redisSeqKey}, r.capacity, r.windowMS).Int64Slice()
	if err != nil {
		return apierr.Wrap(apierr.KindUnknown, "rate limiter unavailable", err)
	}
	if len(res) < 2 {
		return apierr.New(apierr.KindUnknown, "rate limiter returned malformed state")
	}

	rateLimitTokensRemaining.Set(float64(res[1]))
	if res[0] != 1 {
		rateLimitBlocksTotal.Inc()
		return apierr.New(apierr.KindRateLimited, "").WithDetail("upstream call budget exhausted")
	}

	rateLimitGrantsTotal.Inc()
	return nil
}

// Refund returns one token to the shared bucket, best effort.
func (r *RedisBucket) Refund() {
	ctx := context.Background()
	if err := r.refund.Run(ctx, r.client, []string{redisGrantsKey}).Err(); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to refund rate limit token")
	}
}
