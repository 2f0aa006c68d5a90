package preferences

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"menu-recommender/internal/api/handlers"
	"menu-recommender/internal/api/middleware"
	"menu-recommender/internal/core/identity"
	"menu-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SaveRequest 飲食偏好；restrictions 與 allergies 必須是字串陣列
type SaveRequest struct {
	Restrictions      json.RawMessage `json:"restrictions"`
	RestrictionsOther string          `json:"restrictionsOther"`
	Allergies         json.RawMessage `json:"allergies"`
	AllergiesOther    json.RawMessage `json:"allergiesOther"`
}

// SaveResponse 儲存成功時回傳實際寫入的內容
type SaveResponse struct {
	Success     bool                      `json:"success"`
	Message     string                    `json:"message"`
	Preferences common.DietaryPreferences `json:"preferences"`
}

var errInvalidFormat = common.NewValidationError("Invalid data format")

// Handler 飲食偏好
type Handler struct {
	store identity.MetadataStore
}

// NewHandler 創建處理程序
func NewHandler(store identity.MetadataStore) *Handler {
	return &Handler{store: store}
}

// Save 儲存呼叫者的飲食偏好並標記完成引導
func (h *Handler) Save(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		handlers.RespondError(c, &common.UnauthorizedError{})
		return
	}

	var req SaveRequest
	if err := handlers.BindJSON(c, &req); err != nil {
		if common.IsValidationError(err) {
			err = errInvalidFormat
		}
		handlers.RespondError(c, err)
		return
	}

	restrictions, ok := stringArray(req.Restrictions, true)
	if !ok {
		handlers.RespondError(c, errInvalidFormat)
		return
	}
	allergies, ok := stringArray(req.Allergies, true)
	if !ok {
		handlers.RespondError(c, errInvalidFormat)
		return
	}
	allergiesOther, ok := stringArray(req.AllergiesOther, false)
	if !ok {
		handlers.RespondError(c, errInvalidFormat)
		return
	}

	prefs := common.DietaryPreferences{
		Restrictions:           restrictions,
		RestrictionsOther:      strings.TrimSpace(req.RestrictionsOther),
		Allergies:              allergies,
		AllergiesOther:         allergiesOther,
		HasCompletedOnboarding: true,
	}
	if err := h.store.Save(c.Request.Context(), id.UserID, prefs); err != nil {
		handlers.RespondError(c, common.NewError(common.ErrCodeInternalError, "Failed to save preferences", http.StatusInternalServerError, err))
		return
	}

	common.LogInfo("飲食偏好已儲存",
		zap.String("user_id", id.UserID),
		zap.Int("restrictions", len(prefs.AllRestrictions())),
		zap.Int("allergies", len(prefs.AllAllergies())),
	)
	c.JSON(http.StatusOK, SaveResponse{
		Success:     true,
		Message:     "Preferences saved successfully",
		Preferences: prefs,
	})
}

// Get 讀取呼叫者的飲食偏好，尚未儲存時為 null
func (h *Handler) Get(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		handlers.RespondError(c, &common.UnauthorizedError{})
		return
	}

	prefs, err := h.store.Get(c.Request.Context(), id.UserID)
	if err != nil {
		handlers.RespondError(c, common.NewError(common.ErrCodeInternalError, "Failed to load preferences", http.StatusInternalServerError, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// stringArray 欄位必須是字串陣列；選填欄位可以省略或為 null
func stringArray(raw json.RawMessage, required bool) ([]string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if required {
			return nil, false
		}
		return []string{}, true
	}
	if trimmed[0] != '[' {
		return nil, false
	}
	var values []string
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, false
	}
	return common.NonEmpty(values), true
}
