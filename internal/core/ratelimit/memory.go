package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter 行程內滑動視窗，每個 key 保存視窗內的請求時間
type MemoryLimiter struct {
	policy Policy
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
	ops  int
}

// NewMemoryLimiter 創建行程內限流器
func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	return newMemoryLimiter(policy, time.Now)
}

func newMemoryLimiter(policy Policy, now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		policy: policy,
		now:    now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow 檢查並記錄；被拒絕的請求不計入視窗
func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()
	cutoff := now.Add(-m.policy.Window)

	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.policy.Prefix + ":" + key
	window := prune(m.hits[k], cutoff)

	if len(window) >= m.policy.Limit {
		m.hits[k] = window
		return Decision{
			Allowed:   false,
			Limit:     m.policy.Limit,
			Remaining: 0,
			ResetAt:   window[0].Add(m.policy.Window),
		}, nil
	}

	window = append(window, now)
	m.hits[k] = window

	m.ops++
	if m.ops%1024 == 0 {
		m.sweepLocked(cutoff)
	}

	return Decision{
		Allowed:   true,
		Limit:     m.policy.Limit,
		Remaining: m.policy.Limit - len(window),
		ResetAt:   window[0].Add(m.policy.Window),
	}, nil
}

// prune 移除視窗外的時間戳，時間戳依序遞增
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

// sweepLocked 清掉已無請求的 key，避免 map 無限成長
func (m *MemoryLimiter) sweepLocked(cutoff time.Time) {
	for k, ts := range m.hits {
		if ts = prune(ts, cutoff); len(ts) == 0 {
			delete(m.hits, k)
		} else {
			m.hits[k] = ts
		}
	}
}
