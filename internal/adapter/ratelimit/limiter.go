package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds configuration for the rate limiter.
type Config struct {
	RequestsPerSecond float64 // Bucket refill rate
	BurstCapacity     int     // Maximum tokens in a bucket
	Enabled           bool
}

// tokenBucket refills the bucket for the elapsed time and takes one token.
// Bucket state is {last_refill, tokens}; it expires after a minute idle.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'last_refill', tostring(now), 'tokens', tostring(tokens))
redis.call('EXPIRE', key, 60)
return allowed
`)

// Limiter is a Redis backed token bucket shared by the REST and gRPC servers.
type Limiter struct {
	client *redis.Client
	config Config
	log    *zap.Logger
	now    func() time.Time
}

// NewLimiter creates a new token bucket limiter.
func NewLimiter(client *redis.Client, config Config, log *zap.Logger) *Limiter {
	return &Limiter{
		client: client,
		config: config,
		log:    log,
		now:    time.Now,
	}
}

// Enabled reports whether requests should be checked at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil && l.config.Enabled
}

// Config returns the limiter settings.
func (l *Limiter) Config() Config {
	return l.config
}

// Allow takes a token from the bucket identified by scope and client.
// Callers fail open on error.
func (l *Limiter) Allow(ctx context.Context, scope, client string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}

	key := Key(scope, client)
	now := float64(l.now().UnixMilli()) / 1000

	allowed, err := tokenBucket.Run(ctx, l.client, []string{key},
		l.config.RequestsPerSecond,
		l.config.BurstCapacity,
		now,
	).Int64()
	if err != nil {
		l.log.Warn("rate limiter redis error, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return true, err
	}

	if allowed == 0 {
		l.log.Warn("rate limit exceeded",
			zap.String("scope", scope),
			zap.String("client_ip", client),
			zap.Float64("limit", l.config.RequestsPerSecond),
			zap.Int("burst", l.config.BurstCapacity),
		)
		return false, nil
	}
	return true, nil
}

// Key builds the Redis key of a bucket.
func Key(scope, client string) string {
	return fmt.Sprintf("ratelimit:tb:%s:%s", scope, client)
}
