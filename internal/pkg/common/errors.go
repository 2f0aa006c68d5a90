package common

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Error   string `json:"error"`             // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// ValidationError 表示請求驗證失敗，不會觸發任何上游呼叫
type ValidationError struct {
	message string
	cause   error
}

func (e *ValidationError) Error() string {
	return e.message
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// NewValidationError 創建新的驗證錯誤
func NewValidationError(message string) error {
	return &ValidationError{message: message}
}

// NewValidationErrorf 以格式化字串創建驗證錯誤
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{message: fmt.Sprintf(format, args...)}
}

// WrapValidationError 以對外訊息包裝原因，errors.Is 可比對原因
func WrapValidationError(cause error, message string) error {
	return &ValidationError{message: message, cause: cause}
}

// IsValidationError 檢查是否為驗證錯誤
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// UpstreamError 模型供應商失敗或回傳無法解析的內容
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return e.Op + ": upstream failure"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError 包裝上游錯誤
func NewUpstreamError(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// IsUpstreamError 檢查是否為上游錯誤
func IsUpstreamError(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}

// RateLimitError 請求超出允許的速率
type RateLimitError struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: limit %d, resets at %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}

// RetryAfter 距離重置的秒數，至少 1 秒
func (e *RateLimitError) RetryAfter(now time.Time) int {
	secs := int(e.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// AsRateLimitError 取出 RateLimitError
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var r *RateLimitError
	ok := errors.As(err, &r)
	return r, ok
}

// UnauthorizedError 需要身分但請求未攜帶有效身分
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason == "" {
		return "Unauthorized"
	}
	return "Unauthorized: " + e.Reason
}

// IsUnauthorizedError 檢查是否為未授權錯誤
func IsUnauthorizedError(err error) bool {
	var u *UnauthorizedError
	return errors.As(err, &u)
}

// 預定義錯誤代碼
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"     // 400
	ErrCodeUnauthorized       = "UNAUTHORIZED"        // 401
	ErrCodeNotFound           = "NOT_FOUND"           // 404
	ErrCodeRequestTimeout     = "REQUEST_TIMEOUT"     // 504
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"   // 429
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
)

// 預定義錯誤
var (
	ErrInvalidRequest     = NewError(ErrCodeInvalidRequest, "Invalid request", http.StatusBadRequest, nil)
	ErrNotFound           = NewError(ErrCodeNotFound, "Not found", http.StatusNotFound, nil)
	ErrRequestTimeout     = NewError(ErrCodeRequestTimeout, "Request timeout", http.StatusGatewayTimeout, nil)
	ErrInternalError      = NewError(ErrCodeInternalError, "Internal server error", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "Service unavailable", http.StatusServiceUnavailable, nil)

	ErrInvalidImageFormat = NewError("INVALID_IMAGE_FORMAT", "Invalid image format", http.StatusBadRequest, nil)
	ErrInvalidImageSize   = NewError("INVALID_IMAGE_SIZE", "Image exceeds size limit", http.StatusBadRequest, nil)
)

// StatusOf 將錯誤對應到 HTTP 狀態碼與對外訊息
func StatusOf(err error) (int, string) {
	var (
		custom *CustomError
		valid  *ValidationError
		up     *UpstreamError
		rate   *RateLimitError
		unauth *UnauthorizedError
	)
	switch {
	case errors.As(err, &valid):
		return http.StatusBadRequest, valid.message
	case errors.As(err, &unauth):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.As(err, &rate):
		return http.StatusTooManyRequests, "Too many requests. Please try again later."
	case errors.As(err, &up):
		return http.StatusInternalServerError, "Failed to process request with the model provider"
	case errors.As(err, &custom):
		return custom.Status, custom.Message
	}
	return http.StatusInternalServerError, ErrInternalError.Message
}
