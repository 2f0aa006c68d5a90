package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken 請求沒有攜帶 bearer token
	ErrNoToken = errors.New("missing bearer token")
	// ErrInvalidToken token 無法驗證
	ErrInvalidToken = errors.New("invalid token")
)

// Identity 由身分服務簽發的使用者身分
type Identity struct {
	UserID string
	Email  string
}

// TokenVerifier 驗證身分服務簽發的 HS256 token
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier 創建驗證器；secret 為空時所有 token 皆視為無效
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Enabled 是否設定了簽章金鑰
func (v *TokenVerifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// BearerToken 從 Authorization header 取出 token
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: use 'Bearer <token>'", ErrInvalidToken)
	}
	return strings.TrimSpace(parts[1]), nil
}

// Verify 驗證 token 並取出使用者 id（sub，相容舊的 userID claim）
func (v *TokenVerifier) Verify(tokenString string) (*Identity, error) {
	if !v.Enabled() {
		return nil, fmt.Errorf("%w: verifier has no secret", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		userID, _ = claims["userID"].(string)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)

	return &Identity{UserID: userID, Email: email}, nil
}

// Sign 簽發 token，供本機開發與測試使用
func (v *TokenVerifier) Sign(userID, email string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", errors.New("verifier has no secret")
	}
	if userID == "" {
		return "", errors.New("empty userID")
	}
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
