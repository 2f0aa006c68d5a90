package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"menu-recommender/internal/core/identity"
	"menu-recommender/internal/core/ratelimit"
	"menu-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func TestRateLimit_RejectsAfterLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Policy{Limit: 2, Window: time.Minute, Prefix: "test"})
	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/test", okHandler)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	var body struct {
		Error      string `json:"error"`
		Limit      int    `json:"limit"`
		Remaining  int    `json:"remaining"`
		Reset      string `json:"reset"`
		RetryAfter int    `json:"retryAfter"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == "" || body.Limit != 2 || body.Remaining != 0 || body.RetryAfter < 1 || body.RetryAfter > 60 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if _, err := time.Parse(time.RFC3339, body.Reset); err != nil {
		t.Fatalf("reset is not a timestamp: %q", body.Reset)
	}
	if w.Header().Get("Retry-After") == "" || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("missing rate limit headers: %v", w.Header())
	}

	// 其他客戶端不受影響
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Real-IP", "198.51.100.1")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", w.Code)
	}
}

func TestAdmit_NilLimiterAllows(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(nil))
	router.GET("/test", okHandler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func authRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw)
	router.GET("/test", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		userID := ""
		if ok {
			userID = id.UserID
		}
		c.JSON(http.StatusOK, gin.H{
			"userID":      userID,
			"preferences": PreferencesFrom(c),
		})
	})
	return router
}

func TestRequireAuth(t *testing.T) {
	verifier := identity.NewTokenVerifier("test-secret-key-for-testing-only", "")
	token, err := verifier.Sign("user-1", "user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	router := authRouter(RequireAuth(verifier))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"invalid format", "InvalidFormat", http.StatusUnauthorized},
		{"invalid token", "Bearer invalid_token_xyz", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			if tt.want == http.StatusUnauthorized && !strings.Contains(w.Body.String(), `"error":"Unauthorized"`) {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
			if tt.want == http.StatusOK && !strings.Contains(w.Body.String(), `"userID":"user-1"`) {
				t.Fatalf("identity not set: %s", w.Body.String())
			}
		})
	}
}

func TestRequireAuth_NoSecretRejectsEverything(t *testing.T) {
	signer := identity.NewTokenVerifier("some-secret", "")
	token, _ := signer.Sign("user-1", "", time.Hour)

	router := authRouter(RequireAuth(identity.NewTokenVerifier("", "")))
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOptionalAuth_LoadsPreferences(t *testing.T) {
	verifier := identity.NewTokenVerifier("test-secret-key-for-testing-only", "")
	store := identity.NewMemoryStore()
	if err := store.Save(context.Background(), "user-1", common.DietaryPreferences{Restrictions: []string{"Vegan"}, HasCompletedOnboarding: true}); err != nil {
		t.Fatal(err)
	}
	token, _ := verifier.Sign("user-1", "", time.Hour)
	router := authRouter(OptionalAuth(verifier, store))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"restrictions":["Vegan"]`) {
		t.Fatalf("preferences not loaded: %d %s", w.Code, w.Body.String())
	}

	// 無效 token 以匿名身分繼續
	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"userID":""`) || !strings.Contains(w.Body.String(), `"preferences":null`) {
		t.Fatalf("invalid token should be anonymous: %d %s", w.Code, w.Body.String())
	}
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator(time.Minute)
	router := gin.New()
	router.Use(d.Middleware())
	router.POST("/test", okHandler)

	send := func(body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/test", strings.NewReader(body))
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(`{"menu":"a"}`); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := send(`{"menu":"a"}`); code != http.StatusTooManyRequests {
		t.Fatalf("duplicate request: %d", code)
	}
	if code := send(`{"menu":"b"}`); code != http.StatusOK {
		t.Fatalf("different body: %d", code)
	}

	now := time.Now().Add(2 * time.Minute)
	d.now = func() time.Time { return now }
	if code := send(`{"menu":"a"}`); code != http.StatusOK {
		t.Fatalf("after window: %d", code)
	}
}

func TestDeduplicator_DisabledByDefault(t *testing.T) {
	router := gin.New()
	router.Use(NewDeduplicator(0).Middleware())
	router.POST("/test", okHandler)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/test", strings.NewReader(`{}`)))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
}

func TestBodySizeLimit(t *testing.T) {
	router := gin.New()
	router.Use(BodySizeLimit(16))
	router.POST("/test", okHandler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/test", strings.NewReader(strings.Repeat("x", 64))))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/test", strings.NewReader("small")))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(Recovery())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), common.ErrCodeInternalError) {
		t.Fatalf("unexpected response: %d %s", w.Code, w.Body.String())
	}
}
