package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// LocalStore 寫入本機目錄，由 HTTP 服務以靜態檔提供
type LocalStore struct {
	dir    string
	prefix string
}

// NewLocalStore 創建本機存放，目錄不存在時自動建立
func NewLocalStore(dir, publicPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if publicPrefix == "" {
		publicPrefix = "/uploads"
	}
	return &LocalStore{dir: dir, prefix: publicPrefix}, nil
}

// Dir 上傳目錄
func (s *LocalStore) Dir() string {
	return s.dir
}

// Prefix 對外路徑前綴
func (s *LocalStore) Prefix() string {
	return s.prefix
}

// Driver 存放類型
func (s *LocalStore) Driver() string {
	return "local"
}

// Save 寫入檔案，先寫暫存檔再改名
func (s *LocalStore) Save(ctx context.Context, filename string, body io.Reader, _ int64, _ string) (string, error) {
	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid file name %q", filename)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, filename)); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	return path.Join(s.prefix, filename), nil
}
