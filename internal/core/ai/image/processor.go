package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	_ "image/gif" // 支援 GIF

	"menu-recommender/internal/infrastructure/config"
	"menu-recommender/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // 支援 WebP
)

const (
	// DefaultMaxDimension 送給模型前圖片最長邊上限
	DefaultMaxDimension = 700
	// DefaultMaxPixels 超過此像素數不解碼，直接送出原圖
	DefaultMaxPixels = 40_000_000
)

// Normalizer 在送出擷取請求前縮小圖片
// 失敗時回傳原始資料，不中斷流程
type Normalizer interface {
	Normalize(ctx context.Context, data []byte) ([]byte, string)
}

// NewNormalizer 依設定選擇實作，只在啟動時決定
func NewNormalizer(cfg config.ImageConfig) Normalizer {
	if !cfg.ResizeEnabled {
		common.LogInfo("圖片縮放已停用，使用 no-op normalizer")
		return NoopNormalizer{}
	}
	return NewResizer(cfg.MaxDimension, cfg.JPEGQuality).WithMaxPixels(cfg.MaxPixels)
}

// NoopNormalizer 原樣回傳
type NoopNormalizer struct{}

// Normalize 原樣回傳並偵測媒體類型
func (NoopNormalizer) Normalize(_ context.Context, data []byte) ([]byte, string) {
	return data, DetectMediaType(data)
}

// Resizer 以 CatmullRom 縮放至最長邊不超過 maxDim，不放大
type Resizer struct {
	maxDim    int
	quality   int
	maxPixels int64
}

// NewResizer 創建 Resizer
func NewResizer(maxDim, quality int) *Resizer {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Resizer{maxDim: maxDim, quality: quality, maxPixels: DefaultMaxPixels}
}

// WithMaxPixels 設定解碼前的像素上限，n <= 0 時保留預設值
func (r *Resizer) WithMaxPixels(n int64) *Resizer {
	if n > 0 {
		r.maxPixels = n
	}
	return r
}

// Normalize 縮小過大的圖片
func (r *Resizer) Normalize(ctx context.Context, data []byte) ([]byte, string) {
	mediaType := DetectMediaType(data)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		common.LogWarn("無法判斷圖片尺寸，使用原圖", zap.Error(err), zap.Int("bytes", len(data)))
		return data, mediaType
	}
	if cfg.Width <= r.maxDim && cfg.Height <= r.maxDim {
		return data, mediaType
	}
	// 完整解碼需要 寬×高×4 位元組
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > r.maxPixels {
		common.LogWarn("圖片像素超過上限，略過縮放",
			zap.Int("width", cfg.Width),
			zap.Int("height", cfg.Height),
			zap.Int64("max_pixels", r.maxPixels),
		)
		return data, mediaType
	}
	if err := ctx.Err(); err != nil {
		return data, mediaType
	}

	out, outType, err := r.resize(data, cfg.Width, cfg.Height, format)
	if err != nil {
		common.LogWarn("圖片縮放失敗，使用原圖", zap.Error(err), zap.String("format", format))
		return data, mediaType
	}

	common.LogDebug("圖片已縮放",
		zap.Int("original_width", cfg.Width),
		zap.Int("original_height", cfg.Height),
		zap.Int("bytes_before", len(data)),
		zap.Int("bytes_after", len(out)),
	)
	return out, outType
}

func (r *Resizer) resize(data []byte, width, height int, format string) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}

	w, h := TargetSize(width, height, r.maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// TargetSize 計算縮放後尺寸：較長邊等於 maxDim，另一邊依比例四捨五入，最小 1
func TargetSize(width, height, maxDim int) (int, int) {
	if width <= maxDim && height <= maxDim {
		return width, height
	}
	if width >= height {
		h := int(math.Round(float64(height) * float64(maxDim) / float64(width)))
		return maxDim, maxInt(h, 1)
	}
	w := int(math.Round(float64(width) * float64(maxDim) / float64(height)))
	return maxInt(w, 1), maxDim
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
