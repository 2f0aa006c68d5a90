package handlers

import (
	"errors"
	"net/http"

	"menu-recommender/internal/api/middleware"
	"menu-recommender/internal/infrastructure/config"
	"menu-recommender/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConfigKey router 注入設定時使用的 context key
const ConfigKey = "config"

// BindJSON 解析請求體；格式錯誤一律為 ValidationError，不會變成 500
func BindJSON(c *gin.Context, v interface{}) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return common.WrapValidationError(common.ErrInvalidRequest, "Request body is required")
	}
	if err := common.DecodeJSON(c.Request.Body, v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.NewError("REQUEST_TOO_LARGE", "Request body too large", http.StatusRequestEntityTooLarge, err)
		}
		return common.WrapValidationError(common.ErrInvalidRequest, "Invalid JSON in request body")
	}
	return nil
}

// RespondError 將錯誤轉為 {error, details?}；details 只在非正式環境的 debug 模式輸出
func RespondError(c *gin.Context, err error) {
	if rl, ok := common.AsRateLimitError(err); ok {
		middleware.WriteRateLimited(c, rl)
		return
	}

	status, message := common.StatusOf(err)
	body := common.ErrorResponse{Error: message}
	if showDetails(c) && err.Error() != message {
		body.Details = err.Error()
	}

	if status >= http.StatusInternalServerError {
		common.LogError("請求處理失敗",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", requestid.Get(c)),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func showDetails(c *gin.Context) bool {
	v, ok := c.Get(ConfigKey)
	if !ok {
		return false
	}
	cfg, ok := v.(*config.Config)
	return ok && cfg.App.Debug && !cfg.App.IsProduction()
}
