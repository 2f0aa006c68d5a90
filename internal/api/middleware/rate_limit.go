package middleware

import (
	"net/http"
	"strconv"
	"time"

	"menu-recommender/internal/core/ratelimit"
	"menu-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit 一般端點的限流中間件
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Admit(c, limiter) {
			return
		}
		c.Next()
	}
}

// Admit 檢查並記錄一次請求；被拒時寫入 429 並中止
// 呼叫模型的 handler 在驗證完請求後才呼叫，驗證失敗不佔用名額
func Admit(c *gin.Context, limiter ratelimit.Limiter) bool {
	if limiter == nil {
		return true
	}

	key := ratelimit.ClientKey(c.Request.Header)
	d, err := limiter.Allow(c.Request.Context(), key)
	if err != nil {
		common.LogError("限流檢查失敗，放行請求", zap.Error(err), zap.String("client", key))
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if d.Allowed {
		return true
	}

	common.LogInfo("Rate limit exceeded",
		zap.String("client", key),
		zap.String("path", c.Request.URL.Path),
		zap.Int("limit", d.Limit),
	)
	WriteRateLimited(c, &common.RateLimitError{Limit: d.Limit, Remaining: d.Remaining, ResetAt: d.ResetAt})
	return false
}

// WriteRateLimited 寫入 429，包含上限、剩餘次數、重置時間與等待秒數
func WriteRateLimited(c *gin.Context, e *common.RateLimitError) {
	retryAfter := e.RetryAfter(time.Now())
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":      "Too many requests. Please try again later.",
		"limit":      e.Limit,
		"remaining":  e.Remaining,
		"reset":      e.ResetAt.UTC().Format(time.RFC3339),
		"retryAfter": retryAfter,
	})
}
