package api

import (
	"context"
	"time"

	"menu-recommender/internal/api/handlers"
	"menu-recommender/internal/api/handlers/health"
	menuHandler "menu-recommender/internal/api/handlers/menu"
	"menu-recommender/internal/api/handlers/preferences"
	"menu-recommender/internal/api/handlers/upload"
	"menu-recommender/internal/api/middleware"
	"menu-recommender/internal/core/ai/cache"
	"menu-recommender/internal/core/ai/queue"
	"menu-recommender/internal/core/identity"
	menuService "menu-recommender/internal/core/menu"
	"menu-recommender/internal/core/ratelimit"
	"menu-recommender/internal/infrastructure/config"
	"menu-recommender/internal/infrastructure/storage"
	"menu-recommender/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	// 預設請求超時
	defaultTimeout = 120 * time.Second
	// 預設請求體大小限制 (10MB)
	defaultMaxBodySize = 10 << 20
)

// Dependencies 路由使用的服務，由 main 組裝
type Dependencies struct {
	Menu           *menuService.Service
	Gate           *queue.Gate
	Cache          *cache.CacheManager
	Redis          redis.UniversalClient
	ModelLimiter   ratelimit.Limiter
	GeneralLimiter ratelimit.Limiter
	Verifier       *identity.TokenVerifier
	Metadata       identity.MetadataStore
	Uploads        storage.Store
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBodySize := cfg.Server.MaxBodyBytes
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Bool("model_enabled", deps.Menu.ModelEnabled()),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())
	router.Use(otelgin.Middleware(cfg.App.Name))
	router.Use(cors.New(corsConfig(cfg.Server.AllowOrigins)))
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 設置請求超時並注入設定
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Set(handlers.ConfigKey, cfg)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			c.AbortWithStatusJSON(common.ErrRequestTimeout.Status, gin.H{
				"error": common.ErrRequestTimeout.Message,
				"code":  common.ErrRequestTimeout.Code,
			})
		}
	})

	healthHandler := health.NewHandler(cfg, deps.Gate, deps.Cache, deps.Redis)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	if local, ok := deps.Uploads.(*storage.LocalStore); ok {
		router.Static(local.Prefix(), local.Dir())
	}

	api := router.Group("/api")
	api.Use(middleware.NewDeduplicator(cfg.DedupWindow).Middleware())
	{
		// 呼叫模型的端點：驗證通過後才由 handler 計數
		menuGroup := api.Group("", middleware.OptionalAuth(deps.Verifier, deps.Metadata))
		h := menuHandler.NewHandler(deps.Menu, deps.ModelLimiter)
		menuGroup.POST("/processMenu", h.ProcessMenu)
		menuGroup.POST("/generateQuiz", h.GenerateQuiz)
		menuGroup.POST("/suggestMenuItem", h.SuggestMenuItem)

		general := api.Group("", middleware.RateLimit(deps.GeneralLimiter))
		general.GET("/questions", menuHandler.Questions)
		if deps.Uploads != nil {
			uploadHandler := upload.HandleUpload(deps.Uploads)
			general.POST("/upload", func(c *gin.Context) {
				uploadHandler(c.Writer, c.Request)
			})
		}

		prefsHandler := preferences.NewHandler(deps.Metadata)
		// 先驗證身分再計數，未授權的請求不佔用名額
		authed := api.Group("", middleware.RequireAuth(deps.Verifier), middleware.RateLimit(deps.GeneralLimiter))
		authed.POST("/savePreferences", prefsHandler.Save)
		authed.GET("/preferences", prefsHandler.Get)
	}

	router.NoRoute(func(c *gin.Context) {
		handlers.RespondError(c, common.ErrNotFound)
	})

	common.LogInfo("Router setup completed successfully",
		zap.Duration("timeout", timeout),
		zap.Int64("max_body_size", maxBodySize),
		zap.Bool("auth_enabled", deps.Verifier.Enabled()),
		zap.Bool("uploads_enabled", deps.Uploads != nil),
	)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
