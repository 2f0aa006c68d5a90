package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"menu-recommender/internal/infrastructure/config"
)

// Store 上傳原始檔的寫入目標
type Store interface {
	// Save 寫入檔案並回傳可公開存取的 URL
	Save(ctx context.Context, filename string, body io.Reader, size int64, contentType string) (string, error)
	Driver() string
}

var whitespace = regexp.MustCompile(`\s+`)

// UploadName 產生 "<unix 毫秒>-<原檔名，空白改為 '-'>"，並去除目錄部分
func UploadName(original string, now time.Time) (string, error) {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(original), "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", fmt.Errorf("invalid file name %q", original)
	}
	name = whitespace.ReplaceAllString(name, "-")
	return fmt.Sprintf("%d-%s", now.UnixMilli(), name), nil
}

// New 依設定建立存放
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicPrefix)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
