package middleware

import (
	"net/http"

	"menu-recommender/internal/core/identity"
	"menu-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	identityKey    = "identity"
	preferencesKey = "dietary_preferences"
)

// OptionalAuth 有合法 token 時載入身分與飲食偏好；沒有或無效時以匿名身分繼續
func OptionalAuth(verifier *identity.TokenVerifier, store identity.MetadataStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !verifier.Enabled() {
			c.Next()
			return
		}

		id, err := authenticate(verifier, header)
		if err != nil {
			common.LogWarn("忽略無效的身分 token", zap.Error(err), zap.String("path", c.Request.URL.Path))
			c.Next()
			return
		}
		c.Set(identityKey, id)
		loadPreferences(c, store, id)
		c.Next()
	}
}

// RequireAuth 沒有合法身分時回傳 401
func RequireAuth(verifier *identity.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authenticate(verifier, c.GetHeader("Authorization"))
		if err != nil {
			common.LogWarn("身分驗證失敗", zap.Error(err), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.ErrorResponse{Error: "Unauthorized"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func authenticate(verifier *identity.TokenVerifier, header string) (*identity.Identity, error) {
	token, err := identity.BearerToken(header)
	if err != nil {
		return nil, err
	}
	return verifier.Verify(token)
}

// loadPreferences 讀取失敗不影響請求，只是不加入偏好
func loadPreferences(c *gin.Context, store identity.MetadataStore, id *identity.Identity) {
	if store == nil {
		return
	}
	prefs, err := store.Get(c.Request.Context(), id.UserID)
	if err != nil {
		common.LogWarn("讀取飲食偏好失敗", zap.Error(err), zap.String("user_id", id.UserID))
		return
	}
	if prefs != nil {
		c.Set(preferencesKey, prefs)
	}
}

// IdentityFrom 取出已驗證的身分
func IdentityFrom(c *gin.Context) (*identity.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*identity.Identity)
	return id, ok && id != nil
}

// PreferencesFrom 取出飲食偏好，沒有時為 nil
func PreferencesFrom(c *gin.Context) *common.DietaryPreferences {
	v, ok := c.Get(preferencesKey)
	if !ok {
		return nil
	}
	prefs, _ := v.(*common.DietaryPreferences)
	return prefs
}
