package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"menu-recommender/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// FallbackLimiter 共享存放失敗時改用行程內計數
type FallbackLimiter struct {
	primary  Limiter
	fallback Limiter
	degraded int32
}

// NewFallbackLimiter 創建帶退化模式的限流器
func NewFallbackLimiter(primary, fallback Limiter) *FallbackLimiter {
	return &FallbackLimiter{primary: primary, fallback: fallback}
}

// Allow 優先使用共享存放
func (f *FallbackLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	d, err := f.primary.Allow(ctx, key)
	if err == nil {
		if atomic.CompareAndSwapInt32(&f.degraded, 1, 0) {
			common.LogInfo("共享限流存放已恢復")
		}
		return d, nil
	}

	if atomic.CompareAndSwapInt32(&f.degraded, 0, 1) {
		common.LogWarn("共享限流存放不可用，改用行程內計數（多實例時限制會放寬）", zap.Error(err))
	}
	return f.fallback.Allow(ctx, key)
}

// Degraded 是否處於退化模式
func (f *FallbackLimiter) Degraded() bool {
	return atomic.LoadInt32(&f.degraded) == 1
}

// New 依是否有 Redis 建立限流器
func New(client redis.UniversalClient, policy Policy) Limiter {
	memory := NewMemoryLimiter(policy)
	if client == nil {
		common.LogWarn("未設定 Redis，限流僅在單一實例內生效",
			zap.String("prefix", policy.Prefix),
			zap.Int("limit", policy.Limit),
			zap.Duration("window", policy.Window),
		)
		return memory
	}
	return NewFallbackLimiter(NewRedisLimiter(client, policy), memory)
}

// Disabled 永遠放行
type Disabled struct{}

// Allow 永遠放行
func (Disabled) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true, ResetAt: time.Now()}, nil
}
