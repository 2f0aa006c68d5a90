package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"menu-recommender/internal/core/menu"
	"menu-recommender/internal/pkg/common"
)

// Session 各步驟之間保存的中間結果
type Session struct {
	UploadURL      string               `json:"uploadUrl,omitempty"`
	LocalImage     string               `json:"localImage,omitempty"`
	MenuItems      []menu.MenuItem      `json:"menuItems,omitempty"`
	Quiz           []menu.QuizQuestion  `json:"quiz,omitempty"`
	Answers        []menu.Answer        `json:"answers,omitempty"`
	Recommendation *menu.Recommendation `json:"recommendation,omitempty"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// clearAfterUpload 重新上傳後，之後的結果都失效
func (s *Session) clearAfterUpload() {
	s.MenuItems = nil
	s.clearAfterExtract()
}

func (s *Session) clearAfterExtract() {
	s.Quiz = nil
	s.clearAfterQuiz()
}

func (s *Session) clearAfterQuiz() {
	s.Answers = nil
	s.Recommendation = nil
}

// FileSessionStore 以單一 JSON 檔保存 session
// 同一個檔案只應由一個行程使用，並行寫入時以最後寫入者為準
type FileSessionStore struct {
	path string
}

// NewFileSessionStore 創建 session 存放
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Path session 檔案位置
func (s *FileSessionStore) Path() string {
	return s.path
}

// Load 讀取 session，檔案不存在時回傳空 session
func (s *FileSessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var session Session
	if err := common.ParseJSONBytes(data, &session); err != nil {
		return nil, fmt.Errorf("session file %s is corrupt (run reset): %w", s.path, err)
	}
	return &session, nil
}

// Save 先寫暫存檔再改名
func (s *FileSessionStore) Save(session *Session) error {
	session.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Reset 刪除 session 檔
func (s *FileSessionStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}
