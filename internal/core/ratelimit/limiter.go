// Package ratelimit 對呼叫模型的端點做每客戶端滑動視窗限流。
//
// 共享的 Redis 實作在多實例部署下提供一致的限制。行程內實作只是退化模式：
// 每個實例各自計數，實際可通過的流量會隨實例數成倍增加。
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// UnknownClient 無法判斷來源位址時共用的 bucket
const UnknownClient = "unknown"

// Decision 單次檢查結果
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter 原子地檢查並記錄一次請求
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Policy 視窗設定
type Policy struct {
	Limit  int
	Window time.Duration
	// Prefix 區分不同端點群組的計數
	Prefix string
}

// ClientKey 取 X-Forwarded-For 第一個位址，其次 X-Real-IP，否則為 "unknown"
func ClientKey(h http.Header) string {
	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		first := fwd
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			first = fwd[:i]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(h.Get("X-Real-IP")); real != "" {
		return real
	}
	return UnknownClient
}
