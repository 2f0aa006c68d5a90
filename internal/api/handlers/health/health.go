package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"menu-recommender/internal/core/ai/cache"
	"menu-recommender/internal/core/ai/queue"
	"menu-recommender/internal/infrastructure/config"
	"menu-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Model     ModelStatus            `json:"model"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
}

// ModelStatus 模型供應商狀態
type ModelStatus struct {
	Enabled     bool   `json:"enabled"`
	Model       string `json:"model,omitempty"`
	VisionModel string `json:"vision_model,omitempty"`
}

// Handler 健康檢查
type Handler struct {
	cfg   *config.Config
	gate  *queue.Gate
	cache *cache.CacheManager
	redis redis.UniversalClient
}

// NewHandler 創建健康檢查處理器；gate、cache、redis 皆可為 nil
func NewHandler(cfg *config.Config, gate *queue.Gate, c *cache.CacheManager, client redis.UniversalClient) *Handler {
	return &Handler{cfg: cfg, gate: gate, cache: c, redis: client}
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.cfg.App.Version,
		Model: ModelStatus{
			Enabled: h.cfg.OpenRouter.Enabled,
		},
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.cfg.OpenRouter.Enabled {
		response.Model.Model = h.cfg.OpenRouter.Model
		response.Model.VisionModel = h.cfg.OpenRouter.VisionModel
	}
	if h.gate != nil {
		response.Queue = h.gate.GetQueueStatus()
	}
	if h.cache != nil {
		response.Cache = h.cache.GetStats()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)
	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器；有設定 Redis 時必須能 ping 通
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx).Err(); err != nil {
			common.LogWarn("Redis 無法連線", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"redis":  "unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
