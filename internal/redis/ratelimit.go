package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	MessageLimit  int
	MessageWindow time.Duration
	CallLimit     int
	CallWindow    time.Duration
	AuthLimit     int
	AuthWindow    time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: time.Minute,
		CallLimit:     10,
		CallWindow:    time.Minute,
		AuthLimit:     5,
		AuthWindow:    time.Minute,
	}
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// fixed window counter; INCR and EXPIRE happen atomically
var limitScript = goredis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local ttl = redis.call('TTL', KEYS[1])
	if ttl < 0 then
		ttl = window
	end
	if current >= limit then
		return {0, 0, ttl}
	end
	redis.call('INCR', KEYS[1])
	if current == 0 then
		redis.call('EXPIRE', KEYS[1], window)
	end
	return {1, limit - current - 1, ttl}
`)

type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// AllowMessage checks if a user can send a message
func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.check(ctx, fmt.Sprintf("ratelimit:%s:messages", userID), r.config.MessageLimit, r.config.MessageWindow)
}

// AllowCall checks if a user can initiate a call
func (r *RateLimiter) AllowCall(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.check(ctx, fmt.Sprintf("ratelimit:%s:calls", userID), r.config.CallLimit, r.config.CallWindow)
}

// AllowAuth checks if an IP can make an auth attempt
func (r *RateLimiter) AllowAuth(ctx context.Context, ip string) (*RateLimitResult, error) {
	return r.check(ctx, fmt.Sprintf("ratelimit:%s:auth", ip), r.config.AuthLimit, r.config.AuthWindow)
}

func (r *RateLimiter) check(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	res, err := limitScript.Run(ctx, r.client, []string{key}, limit, secs).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result %v", res)
	}
	return &RateLimitResult{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
		ResetIn:   time.Duration(res[2]) * time.Second,
		Limit:     limit,
	}, nil
}
