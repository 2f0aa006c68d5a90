package menu

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"menu-recommender/internal/core/ai/cache"
	"menu-recommender/internal/core/ai/image"
	"menu-recommender/internal/core/ai/provider"
	"menu-recommender/internal/core/ai/queue"
	"menu-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrModelDisabled 未設定模型供應商
var ErrModelDisabled = common.NewError(common.ErrCodeServiceUnavailable, "Model provider is disabled", http.StatusServiceUnavailable, common.ErrServiceUnavailable)

// 模型原始輸出寫入日誌時的長度上限
const rawLogLimit = 2000

// Options 服務設定
type Options struct {
	AllowLocalFiles bool
	MaxImageBytes   int64
	PromptFile      string
}

// Service 擷取、問卷生成與推薦
type Service struct {
	provider   provider.Provider
	gate       *queue.Gate
	normalizer image.Normalizer
	cache      *cache.CacheManager
	opts       Options

	promptOnce       sync.Once
	extractionPrompt string
}

// NewService 創建服務；p 為 nil 時只提供不需模型的功能
func NewService(p provider.Provider, gate *queue.Gate, normalizer image.Normalizer, c *cache.CacheManager, opts Options) *Service {
	if gate == nil {
		gate = queue.NewGate(8)
	}
	if normalizer == nil {
		normalizer = image.NoopNormalizer{}
	}
	return &Service{
		provider:   p,
		gate:       gate,
		normalizer: normalizer,
		cache:      c,
		opts:       opts,
	}
}

// ModelEnabled 是否有模型供應商
func (s *Service) ModelEnabled() bool {
	return s.provider != nil
}

// SourceOptions 解析擷取輸入時使用的限制
func (s *Service) SourceOptions() SourceOptions {
	return SourceOptions{AllowLocalFiles: s.opts.AllowLocalFiles, MaxImageBytes: s.opts.MaxImageBytes}
}

func (s *Service) systemPrompt() string {
	s.promptOnce.Do(func() {
		s.extractionPrompt = loadPromptFile(s.opts.PromptFile)
	})
	return s.extractionPrompt
}

// generate 單次呼叫模型，不重試；所有失敗皆包成 UpstreamError
func (s *Service) generate(ctx context.Context, op string, msgs []provider.Message) (string, error) {
	if s.provider == nil {
		return "", ErrModelDisabled
	}

	var content string
	err := s.gate.Do(ctx, op, func(ctx context.Context) error {
		resp, err := s.provider.Generate(ctx, &provider.Request{
			Operation: op,
			Messages:  msgs,
			JSONMode:  true,
		})
		if err != nil {
			return err
		}
		content = resp.Content
		return nil
	})
	if err != nil {
		return "", common.NewUpstreamError(op, err)
	}
	if strings.TrimSpace(content) == "" {
		return "", common.NewUpstreamError(op, errors.New("model returned no content"))
	}
	return content, nil
}

// parseFailure 記錄原始輸出並回傳 UpstreamError，原始內容不回給呼叫端
func parseFailure(op, raw string, err error) error {
	common.LogError("模型回應解析失敗",
		zap.String("operation", op),
		zap.Error(err),
		zap.String("raw_response", common.Truncate(raw, rawLogLimit)),
	)
	return common.NewUpstreamError(op, err)
}
