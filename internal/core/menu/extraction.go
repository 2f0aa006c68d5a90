package menu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"menu-recommender/internal/core/ai/cache"
	"menu-recommender/internal/core/ai/image"
	"menu-recommender/internal/core/ai/provider"
	"menu-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

const opExtract = "extract"

type extractionResponse struct {
	MenuItems json.RawMessage `json:"menuItems"`
}

// Extract 將菜單轉為 MenuItem；結果可以是空陣列
func (s *Service) Extract(ctx context.Context, src Source, prefs *common.DietaryPreferences) ([]MenuItem, error) {
	if src == nil {
		return nil, common.NewValidationError("One of menuText, imageUrl, imageBase64 or localFilePath is required")
	}
	if s.provider == nil {
		return nil, ErrModelDisabled
	}

	system := s.systemPrompt() + prefs.PromptBlock()
	user, fingerprint, err := s.userContent(ctx, src)
	if err != nil {
		return nil, err
	}

	key := cache.Key([]byte(system), []byte(src.Kind()), fingerprint)
	if cached, ok := s.cache.Get(key); ok {
		var items []MenuItem
		if err := common.ParseJSONBytes(cached, &items); err == nil {
			common.LogInfo("擷取結果快取命中", zap.Int("items", len(items)))
			return items, nil
		}
	}

	raw, err := s.generate(ctx, opExtract, []provider.Message{
		provider.SystemMessage(system),
		provider.UserMessage(user...),
	})
	if err != nil {
		return nil, err
	}

	items, err := parseExtraction(raw)
	if err != nil {
		return nil, parseFailure(opExtract, raw, err)
	}

	if data, err := json.Marshal(items); err == nil {
		s.cache.Set(key, data)
	}
	common.LogInfo("菜單擷取完成", zap.String("source", src.Kind()), zap.Int("items", len(items)))
	return items, nil
}

// userContent 依輸入種類組出使用者訊息，內嵌與本機圖片先經過縮放
func (s *Service) userContent(ctx context.Context, src Source) ([]provider.Part, []byte, error) {
	switch v := src.(type) {
	case TextSource:
		return []provider.Part{provider.TextPart("Here is the menu text:\n\n" + v.Text)}, []byte(v.Text), nil

	case ImageURLSource:
		return []provider.Part{
			provider.TextPart("Extract the menu items from this menu image."),
			provider.ImagePart(v.URL),
		}, []byte(v.URL), nil

	case InlineImageSource:
		return s.imageContent(ctx, v.Data), v.Data, nil

	case LocalFileSource:
		data, err := s.readLocalFile(v.Path)
		if err != nil {
			return nil, nil, err
		}
		return s.imageContent(ctx, data), data, nil

	default:
		return nil, nil, common.NewValidationErrorf("unsupported menu source %q", src.Kind())
	}
}

func (s *Service) imageContent(ctx context.Context, data []byte) []provider.Part {
	normalized, mediaType := s.normalizer.Normalize(ctx, data)
	return []provider.Part{
		provider.TextPart("Extract the menu items from this menu image."),
		provider.ImagePart(image.EncodeDataURI(normalized, mediaType)),
	}
}

func (s *Service) readLocalFile(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, common.NewValidationErrorf("cannot read localFilePath: %v", err)
	}
	defer f.Close()

	limit := s.opts.MaxImageBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, common.NewValidationErrorf("cannot read localFilePath: %v", err)
	}
	if int64(len(data)) > limit {
		return nil, common.NewValidationErrorf("localFilePath exceeds maximum size of %d bytes", limit)
	}
	if len(data) == 0 {
		return nil, common.NewValidationError("localFilePath is empty")
	}
	return data, nil
}

// parseExtraction 回應必須是 {"menuItems": [...]}
func parseExtraction(raw string) ([]MenuItem, error) {
	var resp extractionResponse
	if err := common.ParseModelJSON(raw, &resp); err != nil {
		return nil, fmt.Errorf("invalid extraction JSON: %w", err)
	}
	var items []rawItem
	if err := requireArray(resp.MenuItems, "menuItems", &items); err != nil {
		return nil, err
	}
	return cleanItems(items), nil
}
