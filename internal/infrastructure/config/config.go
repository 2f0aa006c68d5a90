package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	AI          AIConfig         `mapstructure:"ai"`
	Cache       CacheConfig      `mapstructure:"cache"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Image       ImageConfig      `mapstructure:"image"`
	Extraction  ExtractionConfig `mapstructure:"extraction"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Tracing     TracingConfig    `mapstructure:"tracing"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// IsProduction 是否為正式環境
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production") || strings.EqualFold(a.Env, "prod")
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	AllowOrigins   []string      `mapstructure:"allow_origins"`
}

// OpenRouterConfig 模型供應商配置（OpenAI 相容的 chat completions 介面）
type OpenRouterConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Referer     string        `mapstructure:"referer"`
	Title       string        `mapstructure:"title"`
}

// AIConfig AI 配置
type AIConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// CacheConfig 擷取結果快取配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Model   WindowConfig `mapstructure:"model"`
	General WindowConfig `mapstructure:"general"`
}

// WindowConfig 滑動視窗設定
type WindowConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Prefix   string        `mapstructure:"prefix"`
}

// RedisConfig Redis 連線設定，Addr 為空時使用行程內實作
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes  int64 `mapstructure:"max_size_bytes"`
	MaxDimension  int   `mapstructure:"max_dimension"`
	ResizeEnabled bool  `mapstructure:"resize_enabled"`
	JPEGQuality   int   `mapstructure:"jpeg_quality"`
	MaxPixels     int64 `mapstructure:"max_pixels"`
}

// ExtractionConfig 菜單擷取設定
type ExtractionConfig struct {
	AllowLocalFiles bool   `mapstructure:"allow_local_files"`
	PromptFile      string `mapstructure:"prompt_file"`
}

// AuthConfig 身分驗證設定
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// StorageConfig 上傳檔案存放設定
type StorageConfig struct {
	Driver        string `mapstructure:"driver"` // local | s3
	LocalDir      string `mapstructure:"local_dir"`
	PublicPrefix  string `mapstructure:"public_prefix"`
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// TracingConfig OpenTelemetry 設定
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"` // stdout | otlp
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定常用環境變數
	v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	v.BindEnv("openrouter.vision_model", "OPENROUTER_VISION_MODEL")
	v.BindEnv("openrouter.base_url", "OPENROUTER_BASE_URL")
	v.BindEnv("openrouter.enabled", "OPENROUTER_ENABLED")
	v.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	v.BindEnv("cache.enabled", "CACHE_ENABLED")
	v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.public_base_url", "S3_PUBLIC_BASE_URL")
	v.BindEnv("tracing.enabled", "OTEL_ENABLED")
	v.BindEnv("tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("dedup_window", "DEDUP_WINDOW")
	v.BindEnv("log_level", "LOG_LEVEL")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration", "openrouter_api_key:", MaskAPIKey(v.GetString("openrouter.api_key")), "openrouter_model:", v.GetString("openrouter.model"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 只有開發環境才預設開放本機檔案路徑
	if !v.IsSet("extraction.allow_local_files") {
		config.Extraction.AllowLocalFiles = !config.App.IsProduction()
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "menu-recommender")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "90s")
	v.SetDefault("server.max_body_bytes", 12<<20)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("openrouter.enabled", true)
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.vision_model", "openai/gpt-4o")
	v.SetDefault("openrouter.max_tokens", 2048)
	v.SetDefault("openrouter.temperature", 0.7)
	v.SetDefault("openrouter.timeout", "60s")
	v.SetDefault("openrouter.referer", "https://menu-recommender.local")
	v.SetDefault("openrouter.title", "Menu Recommender")

	v.SetDefault("ai.max_concurrency", 8)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.max_size", 500)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.model.requests", 10)
	v.SetDefault("rate_limit.model.window", "1m")
	v.SetDefault("rate_limit.model.prefix", "openai-api")
	v.SetDefault("rate_limit.general.requests", 30)
	v.SetDefault("rate_limit.general.window", "1m")
	v.SetDefault("rate_limit.general.prefix", "general-api")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB
	v.SetDefault("image.max_dimension", 700)
	v.SetDefault("image.resize_enabled", true)
	v.SetDefault("image.jpeg_quality", 85)
	v.SetDefault("image.max_pixels", 40_000_000)

	v.SetDefault("extraction.prompt_file", "")

	v.SetDefault("auth.issuer", "")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "public/uploads")
	v.SetDefault("storage.public_prefix", "/uploads")
	v.SetDefault("storage.region", "auto")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sample_ratio", 0.1)

	// 0 代表關閉重複請求檢查
	v.SetDefault("dedup_window", "0s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	if config.OpenRouter.Enabled {
		if config.OpenRouter.APIKey == "" {
			return fmt.Errorf("openrouter api key is required when openrouter is enabled")
		}
		if config.OpenRouter.Timeout <= 0 {
			return fmt.Errorf("invalid openrouter timeout")
		}
	}

	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	if config.RateLimit.Enabled {
		for name, w := range map[string]WindowConfig{"model": config.RateLimit.Model, "general": config.RateLimit.General} {
			if w.Requests <= 0 {
				return fmt.Errorf("invalid rate_limit.%s.requests", name)
			}
			if w.Window <= 0 {
				return fmt.Errorf("invalid rate_limit.%s.window", name)
			}
		}
	}

	if config.Image.MaxDimension <= 0 {
		return fmt.Errorf("invalid image max dimension")
	}
	if config.Image.MaxPixels <= 0 {
		return fmt.Errorf("invalid image max pixels")
	}
	if config.AI.MaxConcurrency <= 0 {
		return fmt.Errorf("invalid ai max concurrency")
	}

	switch config.Storage.Driver {
	case "local":
		if config.Storage.LocalDir == "" {
			return fmt.Errorf("storage local_dir is required")
		}
	case "s3":
		if config.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for s3 driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s", config.Storage.Driver)
	}

	return nil
}
