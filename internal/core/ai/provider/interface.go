package provider

import (
	"context"
	"time"
)

// 內容片段類型
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// Part 多模態訊息中的一段內容
type Part struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// TextPart 建立文字片段
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart 建立圖片片段，url 可為 http(s) 或 data URI
func ImagePart(url string) Part {
	return Part{Type: PartImageURL, ImageURL: url}
}

// Message 表示與 AI 模型的對話消息
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// SystemMessage 建立 system 訊息
func SystemMessage(text string) Message {
	return Message{Role: "system", Parts: []Part{TextPart(text)}}
}

// UserMessage 建立 user 訊息
func UserMessage(parts ...Part) Message {
	return Message{Role: "user", Parts: parts}
}

// HasImage 訊息中是否包含圖片
func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if p.Type == PartImageURL {
			return true
		}
	}
	return false
}

// Request 表示發送到 AI 提供者的請求
type Request struct {
	// Operation 僅供記錄與追蹤使用，例如 extract、quiz、recommend
	Operation   string    `json:"-"`
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	// JSONMode 要求模型只輸出 JSON 物件
	JSONMode bool `json:"json_mode,omitempty"`
}

// Usage token 使用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 表示從 AI 提供者收到的響應
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Provider 定義 AI 提供者介面
type Provider interface {
	// Generate 送出一次請求，不做自動重試
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GetModel 獲取當前使用的模型名稱
	GetModel() string

	// GetTimeout 獲取請求超時時間
	GetTimeout() time.Duration

	// Close 關閉提供者連接
	Close() error
}

// Config 定義 AI 提供者配置
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Referer     string
	Title       string
}
