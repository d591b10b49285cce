package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow increments the counter, opens the window on the first hit and
// returns {count, remaining ttl in ms}. A key that lost its TTL is re-armed.
var incrWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter shares windows across instances through Redis.
type RedisLimiter struct {
	client redis.Scripter
	cfg    Config
	prefix string
}

// NewRedisLimiter creates a limiter storing counters under prefix.
func NewRedisLimiter(client redis.Scripter, cfg Config, prefix string) (*RedisLimiter, error) {
	if client == nil {
		panic("ratelimit: redis client cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "ratelimit:intake:"
	}
	return &RedisLimiter{client: client, cfg: cfg, prefix: prefix}, nil
}

// Check increments the identity's counter atomically on the server.
func (l *RedisLimiter) Check(ctx context.Context, identity string, now time.Time) (Decision, error) {
	res, err := incrWindow.Run(ctx, l.client, []string{l.prefix + identity}, l.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis check: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	count := int(res[0])
	resetAt := now.Add(time.Duration(res[1]) * time.Millisecond)
	return decide(l.cfg, count, resetAt, now), nil
}
