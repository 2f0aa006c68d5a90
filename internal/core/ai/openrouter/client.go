package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"menu-recommender/internal/core/ai/provider"
	"menu-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client OpenAI 相容 chat completions API 客戶端
type Client struct {
	client *resty.Client
	cfg    provider.Config
	tracer trace.Tracer
}

var _ provider.Provider = (*Client)(nil)

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage provider.Usage `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// NewClient 創建新的客戶端
func NewClient(cfg provider.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("Content-Type", "application/json")
	if cfg.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		client.SetHeader("X-Title", cfg.Title)
	}

	return &Client{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("menu-recommender/openrouter"),
	}
}

// GetModel 獲取當前使用的模型名稱
func (c *Client) GetModel() string {
	return c.cfg.Model
}

// GetTimeout 獲取請求超時時間
func (c *Client) GetTimeout() time.Duration {
	return c.cfg.Timeout
}

// Close 關閉客戶端
func (c *Client) Close() error {
	return nil
}

// modelFor 帶圖片的請求改用 vision 模型
func (c *Client) modelFor(req *provider.Request) string {
	if req.Model != "" {
		return req.Model
	}
	if c.cfg.VisionModel != "" {
		for _, m := range req.Messages {
			if m.HasImage() {
				return c.cfg.VisionModel
			}
		}
	}
	return c.cfg.Model
}

func (c *Client) buildRequest(req *provider.Request) chatRequest {
	body := chatRequest{
		Model:       c.modelFor(req),
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.cfg.MaxTokens
	}
	if body.Temperature == 0 {
		body.Temperature = c.cfg.Temperature
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	for _, m := range req.Messages {
		msg := chatMessage{Role: m.Role, Content: make([]contentPart, 0, len(m.Parts))}
		for _, p := range m.Parts {
			switch p.Type {
			case provider.PartImageURL:
				msg.Content = append(msg.Content, contentPart{Type: provider.PartImageURL, ImageURL: &imageURL{URL: p.ImageURL}})
			default:
				msg.Content = append(msg.Content, contentPart{Type: provider.PartText, Text: p.Text})
			}
		}
		body.Messages = append(body.Messages, msg)
	}
	return body
}

// Generate 發送單次請求，逾時或失敗直接回傳錯誤
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := c.buildRequest(req)

	ctx, span := c.tracer.Start(ctx, "openrouter.chat_completions",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.operation", req.Operation),
			attribute.String("llm.model", body.Model),
			attribute.Int("llm.max_tokens", body.MaxTokens),
			attribute.Bool("llm.json_mode", req.JSONMode),
		),
	)
	defer span.End()

	start := time.Now()
	var result chatResponse
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("model request timed out after %s: %w", elapsed.Round(time.Millisecond), err)
		} else {
			err = fmt.Errorf("failed to send request to model provider: %w", err)
		}
		return nil, c.fail(span, req.Operation, elapsed, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))
	if resp.StatusCode() != http.StatusOK {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = common.Truncate(sanitizeBody(resp.Body()), 500)
		}
		return nil, c.fail(span, req.Operation, elapsed, fmt.Errorf("model provider returned status %d: %s", resp.StatusCode(), msg))
	}

	if len(result.Choices) == 0 {
		return nil, c.fail(span, req.Operation, elapsed, fmt.Errorf("no choices in model response"))
	}
	content := strings.TrimSpace(result.Choices[0].Message.Content)
	if content == "" {
		return nil, c.fail(span, req.Operation, elapsed, fmt.Errorf("empty content in model response"))
	}

	span.SetAttributes(
		attribute.Int("llm.usage.prompt_tokens", result.Usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", result.Usage.CompletionTokens),
	)
	common.LogModelCall(req.Operation, elapsed, nil)
	common.LogDebug("模型回應",
		zap.String("operation", req.Operation),
		zap.String("model", result.Model),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)

	return &provider.Response{
		Content: content,
		Model:   result.Model,
		Usage:   result.Usage,
	}, nil
}

func (c *Client) fail(span trace.Span, op string, elapsed time.Duration, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	common.LogModelCall(op, elapsed, err)
	return err
}

// sanitizeBody 清理錯誤回應內容中可能夾帶的圖片資料
func sanitizeBody(body []byte) string {
	s := string(body)
	if strings.Contains(s, "data:image/") || (len(body) > 100 && strings.Contains(s, "base64")) {
		return "[IMAGE_DATA_REMOVED]"
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err == nil {
		if b, err := json.Marshal(raw); err == nil {
			return string(b)
		}
	}
	return s
}
