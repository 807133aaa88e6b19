package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{principal}:{action} - window TTL
// - ratelimit:{addr}:upgrade - window TTL

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	MessageLimit  int           // Max sends per window
	MessageWindow time.Duration // Send rate limit window
	UpgradeLimit  int           // Max websocket upgrades per address per window
	UpgradeWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: 60 * time.Second,
		UpgradeLimit:  30,
		UpgradeWindow: 60 * time.Second,
	}
}

// RateLimiter bounds durable writes per principal across all sessions.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	end
	return {0, 0, ttl}
`)

// AllowMessage checks whether the principal may issue another message write.
func (r *RateLimiter) AllowMessage(ctx context.Context, principalKey string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:messages", principalKey)
	return r.checkLimit(ctx, key, r.config.MessageLimit, r.config.MessageWindow)
}

// AllowUpgrade checks whether the remote address may open another websocket.
func (r *RateLimiter) AllowUpgrade(ctx context.Context, addr string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:upgrade", addr)
	return r.checkLimit(ctx, key, r.config.UpgradeLimit, r.config.UpgradeWindow)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, _ := parts[0].(int64)
	remaining, _ := parts[1].(int64)
	ttl, _ := parts[2].(int64)

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit,
	}, nil
}
