package menu

import (
	"net/http"
	"strings"

	"menu-recommender/internal/api/handlers"
	"menu-recommender/internal/api/middleware"
	menuService "menu-recommender/internal/core/menu"
	"menu-recommender/internal/core/ratelimit"
	"menu-recommender/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QuizRequest 問卷生成請求
type QuizRequest struct {
	Menu string `json:"menu"`
}

// Handler 菜單擷取、問卷與推薦
type Handler struct {
	service *menuService.Service
	limiter ratelimit.Limiter
}

// NewHandler 創建處理程序；limiter 只在請求驗證通過後才計數
func NewHandler(service *menuService.Service, limiter ratelimit.Limiter) *Handler {
	return &Handler{service: service, limiter: limiter}
}

// ProcessMenu 擷取菜單項目
func (h *Handler) ProcessMenu(c *gin.Context) {
	var req menuService.ExtractRequest
	if err := handlers.BindJSON(c, &req); err != nil {
		handlers.RespondError(c, err)
		return
	}

	src, err := menuService.ParseSource(req, h.service.SourceOptions())
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	if !h.service.ModelEnabled() {
		handlers.RespondError(c, menuService.ErrModelDisabled)
		return
	}
	if !middleware.Admit(c, h.limiter) {
		return
	}

	common.LogInfo("開始擷取菜單",
		zap.String("request_id", requestid.Get(c)),
		zap.String("source", src.Kind()),
	)

	items, err := h.service.Extract(c.Request.Context(), src, middleware.PreferencesFrom(c))
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GenerateQuiz 產生偏好問卷
func (h *Handler) GenerateQuiz(c *gin.Context) {
	var req QuizRequest
	if err := handlers.BindJSON(c, &req); err != nil {
		handlers.RespondError(c, err)
		return
	}
	if strings.TrimSpace(req.Menu) == "" {
		handlers.RespondError(c, common.NewValidationError("menu is required"))
		return
	}
	if !middleware.Admit(c, h.limiter) {
		return
	}

	quiz, err := h.service.GenerateQuiz(c.Request.Context(), req.Menu, middleware.PreferencesFrom(c))
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

// SuggestMenuItem 依問答推薦菜色
func (h *Handler) SuggestMenuItem(c *gin.Context) {
	var req menuService.RecommendRequest
	if err := handlers.BindJSON(c, &req); err != nil {
		handlers.RespondError(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		handlers.RespondError(c, err)
		return
	}
	if !middleware.Admit(c, h.limiter) {
		return
	}

	rec, err := h.service.Recommend(c.Request.Context(), req, middleware.PreferencesFrom(c))
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Questions 固定問卷
func Questions(c *gin.Context) {
	c.JSON(http.StatusOK, menuService.StaticQuestions())
}
