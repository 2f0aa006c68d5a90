package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"menu-recommender/internal/api"
	"menu-recommender/internal/core/ai/cache"
	"menu-recommender/internal/core/ai/image"
	"menu-recommender/internal/core/ai/openrouter"
	"menu-recommender/internal/core/ai/provider"
	"menu-recommender/internal/core/ai/queue"
	"menu-recommender/internal/core/identity"
	"menu-recommender/internal/core/menu"
	"menu-recommender/internal/core/ratelimit"
	"menu-recommender/internal/infrastructure/config"
	"menu-recommender/internal/infrastructure/storage"
	"menu-recommender/internal/infrastructure/tracing"
	"menu-recommender/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openrouter_api_key", config.MaskAPIKey(cfg.OpenRouter.APIKey)),
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.String("openrouter_vision_model", cfg.OpenRouter.VisionModel),
		zap.String("env", cfg.App.Env),
	)

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, cfg.App, cfg.Tracing)
	if err != nil {
		common.LogWarn("Tracing disabled", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	var redisClient redis.UniversalClient
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		defer client.Close()
		redisClient = client
		common.LogInfo("Redis 已設定", zap.String("addr", cfg.Redis.Addr))
	}

	var modelProvider provider.Provider
	if cfg.OpenRouter.Enabled {
		client := openrouter.NewClient(provider.Config{
			APIKey:      cfg.OpenRouter.APIKey,
			BaseURL:     cfg.OpenRouter.BaseURL,
			Model:       cfg.OpenRouter.Model,
			VisionModel: cfg.OpenRouter.VisionModel,
			MaxTokens:   cfg.OpenRouter.MaxTokens,
			Temperature: cfg.OpenRouter.Temperature,
			Timeout:     cfg.OpenRouter.Timeout,
			Referer:     cfg.OpenRouter.Referer,
			Title:       cfg.OpenRouter.Title,
		})
		defer client.Close()
		modelProvider = client
	} else {
		common.LogWarn("模型供應商未啟用：擷取回傳 503，推薦改用關鍵字比對")
	}

	cacheManager := cache.NewManager(cfg.Cache).WithShared(cache.NewSharedStore(redisClient, cfg.Cache.TTL))
	defer cacheManager.Close()

	uploads, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		common.LogFatal("Failed to initialize upload storage", zap.Error(err))
	}

	gate := queue.NewGate(cfg.AI.MaxConcurrency)
	menuSvc := menu.NewService(modelProvider, gate, image.NewNormalizer(cfg.Image), cacheManager, menu.Options{
		AllowLocalFiles: cfg.Extraction.AllowLocalFiles,
		MaxImageBytes:   cfg.Image.MaxSizeBytes,
		PromptFile:      cfg.Extraction.PromptFile,
	})

	modelLimiter, generalLimiter := buildLimiters(cfg.RateLimit, redisClient)

	router := api.SetupRouter(cfg, api.Dependencies{
		Menu:           menuSvc,
		Gate:           gate,
		Cache:          cacheManager,
		Redis:          redisClient,
		ModelLimiter:   modelLimiter,
		GeneralLimiter: generalLimiter,
		Verifier:       identity.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Metadata:       identity.NewStore(redisClient),
		Uploads:        uploads,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo(common.MsgServerStart,
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo(common.MsgServerShutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	common.LogInfo(common.MsgServerExited)
}

// buildLimiters 建立模型端點與一般端點兩組限流器
func buildLimiters(cfg config.RateLimitConfig, client redis.UniversalClient) (ratelimit.Limiter, ratelimit.Limiter) {
	if !cfg.Enabled {
		common.LogWarn("速率限制已停用")
		return ratelimit.Disabled{}, ratelimit.Disabled{}
	}
	policy := func(w config.WindowConfig) ratelimit.Policy {
		return ratelimit.Policy{Limit: w.Requests, Window: w.Window, Prefix: w.Prefix}
	}
	return ratelimit.New(client, policy(cfg.Model)), ratelimit.New(client, policy(cfg.General))
}
