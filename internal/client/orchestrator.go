// Package client 依序呼叫上傳、擷取、問卷、推薦各端點，並在步驟之間保存結果。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"menu-recommender/internal/core/ai/image"
	"menu-recommender/internal/core/menu"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrNoUpload 尚未上傳菜單圖片
	ErrNoUpload = errors.New("no menu image uploaded yet: run upload first")
	// ErrNoMenu 尚未擷取菜單
	ErrNoMenu = errors.New("no menu items yet: run extract first")
	// ErrNoQuiz 尚未產生問卷
	ErrNoQuiz = errors.New("no quiz yet: run quiz first")
	// ErrNoAnswers 尚未回答問卷
	ErrNoAnswers = errors.New("quiz not answered yet: run answer first")
	// ErrNoItemsFound 擷取成功但沒有任何菜色
	ErrNoItemsFound = errors.New("no menu items were found in that image, please retry with a clearer photo")
)

// APIError 服務端回傳的錯誤
type APIError struct {
	Status     int
	Message    string
	Details    string
	RetryAfter int
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry in %ds)", e.RetryAfter)
	}
	if e.Details != "" {
		msg += " - " + e.Details
	}
	return msg
}

// Options 客戶端設定
type Options struct {
	Token   string
	Timeout time.Duration
}

// Orchestrator 管線客戶端
type Orchestrator struct {
	http     *resty.Client
	sessions *FileSessionStore
}

// New 創建客戶端
func New(baseURL string, sessions *FileSessionStore, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.Token != "" {
		c.SetAuthToken(opts.Token)
	}
	return &Orchestrator{http: c, sessions: sessions}
}

// Session 目前的 session
func (o *Orchestrator) Session() (*Session, error) {
	return o.sessions.Load()
}

// Reset 清除 session
func (o *Orchestrator) Reset() error {
	return o.sessions.Reset()
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Upload 上傳菜單圖片
func (o *Orchestrator) Upload(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("menu image: %w", err)
	}
	session, err := o.sessions.Load()
	if err != nil {
		return "", err
	}

	var out uploadResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetFile("file", path).
		SetResult(&out).
		Post("/api/upload")
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("upload response did not include a url")
	}

	session.UploadURL = out.URL
	session.LocalImage = path
	session.clearAfterUpload()
	return out.URL, o.sessions.Save(session)
}

// Extract 擷取已上傳圖片中的菜色
// 上傳結果是絕對網址時交給模型讀取，否則送出本機檔案的 base64
func (o *Orchestrator) Extract(ctx context.Context) ([]menu.MenuItem, error) {
	session, err := o.sessions.Load()
	if err != nil {
		return nil, err
	}
	if session.UploadURL == "" {
		return nil, ErrNoUpload
	}

	var req menu.ExtractRequest
	if isAbsoluteURL(session.UploadURL) {
		req.ImageURL = session.UploadURL
	} else {
		data, err := os.ReadFile(session.LocalImage)
		if err != nil {
			return nil, fmt.Errorf("uploaded image is no longer readable, run upload again: %w", err)
		}
		req.ImageBase64 = image.EncodeDataURI(data, "")
	}
	return o.extract(ctx, session, req)
}

// ExtractText 擷取純文字菜單，不需要先上傳
func (o *Orchestrator) ExtractText(ctx context.Context, text string) ([]menu.MenuItem, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("menu text is empty")
	}
	session, err := o.sessions.Load()
	if err != nil {
		return nil, err
	}
	return o.extract(ctx, session, menu.ExtractRequest{MenuText: text})
}

func (o *Orchestrator) extract(ctx context.Context, session *Session, req menu.ExtractRequest) ([]menu.MenuItem, error) {
	var items []menu.MenuItem
	resp, err := o.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&items).
		Post("/api/processMenu")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	session.MenuItems = items
	session.clearAfterExtract()
	if err := o.sessions.Save(session); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoItemsFound
	}
	return items, nil
}

// GenerateQuiz 依擷取結果產生問卷
func (o *Orchestrator) GenerateQuiz(ctx context.Context) ([]menu.QuizQuestion, error) {
	session, err := o.sessions.Load()
	if err != nil {
		return nil, err
	}
	if len(session.MenuItems) == 0 {
		return nil, ErrNoMenu
	}

	var quiz []menu.QuizQuestion
	resp, err := o.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"menu": menu.Summarize(session.MenuItems)}).
		SetResult(&quiz).
		Post("/api/generateQuiz")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	session.Quiz = quiz
	session.clearAfterQuiz()
	return quiz, o.sessions.Save(session)
}

// Answer 記錄問卷回答；每題都必須作答，單選題只能選一個
func (o *Orchestrator) Answer(answers []menu.Answer) error {
	session, err := o.sessions.Load()
	if err != nil {
		return err
	}
	if len(session.Quiz) == 0 {
		return ErrNoQuiz
	}
	if err := validateAnswers(session.Quiz, answers); err != nil {
		return err
	}

	session.Answers = answers
	session.Recommendation = nil
	return o.sessions.Save(session)
}

func validateAnswers(quiz []menu.QuizQuestion, answers []menu.Answer) error {
	if len(answers) != len(quiz) {
		return fmt.Errorf("expected %d answers, got %d", len(quiz), len(answers))
	}
	for i, q := range quiz {
		a := answers[i]
		if a.Question != q.Question {
			return fmt.Errorf("answer %d is for %q, expected %q", i+1, a.Question, q.Question)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("question %q has no answer", q.Question)
		}
		if len(a.Values) > 1 && !q.AllowMultiple {
			return fmt.Errorf("question %q allows only one answer", q.Question)
		}
		for _, v := range a.Values {
			if !contains(q.Answers, v) {
				return fmt.Errorf("%q is not an option for %q", v, q.Question)
			}
		}
	}
	return nil
}

// Recommend 依菜單與回答取得推薦
func (o *Orchestrator) Recommend(ctx context.Context) (*menu.Recommendation, error) {
	session, err := o.sessions.Load()
	if err != nil {
		return nil, err
	}
	if len(session.MenuItems) == 0 {
		return nil, ErrNoMenu
	}
	if len(session.Answers) == 0 {
		return nil, ErrNoAnswers
	}

	var rec menu.Recommendation
	resp, err := o.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(menu.RecommendRequest{
			MenuItems:           session.MenuItems,
			QuestionsAndAnswers: menu.BuildTranscript(session.Answers),
		}).
		SetResult(&rec).
		Post("/api/suggestMenuItem")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	session.Recommendation = &rec
	return &rec, o.sessions.Save(session)
}

// AnswerFunc 互動式回答一題
type AnswerFunc func(q menu.QuizQuestion) ([]string, error)

// Run 依序執行整條管線；step 在每個步驟開始時被呼叫
func (o *Orchestrator) Run(ctx context.Context, imagePath string, answer AnswerFunc, step func(name string)) (*menu.Recommendation, error) {
	if step == nil {
		step = func(string) {}
	}

	step("upload")
	if _, err := o.Upload(ctx, imagePath); err != nil {
		return nil, err
	}

	step("extract")
	if _, err := o.Extract(ctx); err != nil {
		return nil, err
	}

	step("quiz")
	quiz, err := o.GenerateQuiz(ctx)
	if err != nil {
		return nil, err
	}

	step("answer")
	answers := make([]menu.Answer, 0, len(quiz))
	for _, q := range quiz {
		values, err := answer(q)
		if err != nil {
			return nil, err
		}
		answers = append(answers, menu.Answer{Question: q.Question, Values: values})
	}
	if err := o.Answer(answers); err != nil {
		return nil, err
	}

	step("recommend")
	return o.Recommend(ctx)
}

type errorBody struct {
	Error      string `json:"error"`
	Details    string `json:"details"`
	RetryAfter int    `json:"retryAfter"`
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode(), Message: resp.Status()}
	var body errorBody
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
		apiErr.RetryAfter = body.RetryAfter
	}
	return apiErr
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
