package queue

import (
	"context"
	"fmt"
	"sync/atomic"

	"menu-recommender/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Status 模型請求閘門狀態
type Status struct {
	InFlight       int64 `json:"in_flight"`
	Waiting        int64 `json:"waiting"`
	ProcessedCount int64 `json:"processed_count"`
	FailedCount    int64 `json:"failed_count"`
	MaxConcurrency int64 `json:"max_concurrency"`
}

// Gate 限制同時對外的模型請求數量
// 等待中的請求可隨 context 取消
type Gate struct {
	sem       *semaphore.Weighted
	max       int64
	inFlight  int64
	waiting   int64
	processed int64
	failed    int64
}

// NewGate 創建閘門
func NewGate(maxConcurrency int) *Gate {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Gate{
		sem: semaphore.NewWeighted(int64(maxConcurrency)),
		max: int64(maxConcurrency),
	}
}

// Do 取得名額後執行 fn
func (g *Gate) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	atomic.AddInt64(&g.waiting, 1)
	err := g.sem.Acquire(ctx, 1)
	atomic.AddInt64(&g.waiting, -1)
	if err != nil {
		common.LogWarn("等待模型請求名額時取消",
			zap.String("operation", op),
			zap.Error(err),
		)
		return fmt.Errorf("waiting for model slot: %w", err)
	}
	defer g.sem.Release(1)

	atomic.AddInt64(&g.inFlight, 1)
	defer atomic.AddInt64(&g.inFlight, -1)

	if err := fn(ctx); err != nil {
		atomic.AddInt64(&g.failed, 1)
		return err
	}
	atomic.AddInt64(&g.processed, 1)
	return nil
}

// GetQueueStatus 獲取閘門狀態
func (g *Gate) GetQueueStatus() *Status {
	return &Status{
		InFlight:       atomic.LoadInt64(&g.inFlight),
		Waiting:        atomic.LoadInt64(&g.waiting),
		ProcessedCount: atomic.LoadInt64(&g.processed),
		FailedCount:    atomic.LoadInt64(&g.failed),
		MaxConcurrency: g.max,
	}
}
