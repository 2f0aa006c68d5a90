package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// slidingWindowScript 在單一 Lua 腳本內完成清理、計數與寫入，避免同一 key 的併發請求競爭
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// RedisLimiter 以 sorted set 實作的共享滑動視窗
type RedisLimiter struct {
	client redis.UniversalClient
	policy Policy
	now    func() time.Time
}

// NewRedisLimiter 創建 Redis 限流器
func NewRedisLimiter(client redis.UniversalClient, policy Policy) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy, now: time.Now}
}

// Allow 檢查並記錄
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now().UnixMilli()
	windowMs := r.policy.Window.Milliseconds()
	redisKey := fmt.Sprintf("ratelimit:%s:%s", r.policy.Prefix, key)

	res, err := slidingWindowScript.Run(ctx, r.client, []string{redisKey},
		now, windowMs, r.policy.Limit, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis sliding window: unexpected reply %v", res)
	}

	allowed, _ := res[0].(int64)
	count, _ := res[1].(int64)
	reset, _ := res[2].(int64)

	remaining := r.policy.Limit - int(count)
	if remaining < 0 || allowed == 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed == 1,
		Limit:     r.policy.Limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(reset),
	}, nil
}
