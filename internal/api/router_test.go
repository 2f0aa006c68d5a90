package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"menu-recommender/internal/core/ai/provider"
	"menu-recommender/internal/core/ai/queue"
	"menu-recommender/internal/core/identity"
	"menu-recommender/internal/core/menu"
	"menu-recommender/internal/core/ratelimit"
	"menu-recommender/internal/infrastructure/config"
	"menu-recommender/internal/infrastructure/storage"

	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret-key-for-testing-only"

type stubProvider struct {
	mu       sync.Mutex
	content  string
	err      error
	requests []*provider.Request
}

func (s *stubProvider) Generate(_ context.Context, req *provider.Request) (*provider.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Response{Content: s.content}, nil
}

func (s *stubProvider) GetModel() string          { return "stub" }
func (s *stubProvider) GetTimeout() time.Duration { return time.Second }
func (s *stubProvider) Close() error              { return nil }

func (s *stubProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubProvider) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for _, m := range s.requests[len(s.requests)-1].Messages {
		for _, p := range m.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

type testServer struct {
	router   *gin.Engine
	stub     *stubProvider
	verifier *identity.TokenVerifier
	store    *identity.MemoryStore
}

func newTestServer(t *testing.T, stub *stubProvider, modelLimit int, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App:        config.AppConfig{Env: "test", Debug: true, Version: "test", Name: "menu-recommender-test"},
		OpenRouter: config.OpenRouterConfig{Enabled: stub != nil, Model: "stub"},
	}
	for _, m := range mutate {
		m(cfg)
	}

	uploads, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}

	var p provider.Provider
	if stub != nil {
		p = stub
	}
	gate := queue.NewGate(2)
	svc := menu.NewService(p, gate, nil, nil, menu.Options{})

	verifier := identity.NewTokenVerifier(testSecret, "")
	store := identity.NewMemoryStore()
	router := SetupRouter(cfg, Dependencies{
		Menu:           svc,
		Gate:           gate,
		ModelLimiter:   ratelimit.NewMemoryLimiter(ratelimit.Policy{Limit: modelLimit, Window: time.Minute, Prefix: "openai-api"}),
		GeneralLimiter: ratelimit.NewMemoryLimiter(ratelimit.Policy{Limit: 30, Window: time.Minute, Prefix: "general-api"}),
		Verifier:       verifier,
		Metadata:       store,
		Uploads:        uploads,
	})
	return &testServer{router: router, stub: stub, verifier: verifier, store: store}
}

func (s *testServer) do(method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) bearer(t *testing.T, userID string) http.Header {
	t.Helper()
	token, err := s.verifier.Sign(userID, userID+"@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	if _, ok := body["error"].(string); !ok {
		t.Fatalf("error body without error field: %s", w.Body.String())
	}
	return body
}

const caesarResponse = `{"menuItems":[{"name":"Caesar Salad","description":null,"course":null,"price":12},{"name":"Grilled Salmon","description":null,"course":null,"price":24}]}`

func TestProcessMenu(t *testing.T) {
	s := newTestServer(t, &stubProvider{content: caesarResponse}, 10)

	w := s.do("POST", "/api/processMenu", `{"menuText":"Caesar Salad - $12\nGrilled Salmon - $24"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	want := `[{"name":"Caesar Salad","description":null,"course":null,"price":12},{"name":"Grilled Salmon","description":null,"course":null,"price":24}]`
	if strings.TrimSpace(w.Body.String()) != want {
		t.Fatalf("body = %s", w.Body.String())
	}
	if w.Header().Get("X-RateLimit-Limit") != "10" {
		t.Fatalf("missing rate limit headers: %v", w.Header())
	}
}

func TestProcessMenuValidationMakesNoCall(t *testing.T) {
	s := newTestServer(t, &stubProvider{content: caesarResponse}, 1)

	for name, body := range map[string]string{
		"empty object":   `{}`,
		"blank fields":   `{"menuText":"  ","imageUrl":""}`,
		"two inputs":     `{"menuText":"x","imageUrl":"https://example.com/menu.jpg"}`,
		"invalid json":   `{"menuText":`,
		"empty body":     ``,
		"local disabled": `{"localFilePath":"/etc/passwd"}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := s.do("POST", "/api/processMenu", body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			decodeError(t, w)
		})
	}
	if s.stub.calls() != 0 {
		t.Fatalf("upstream called %d times", s.stub.calls())
	}

	// 驗證失敗不佔用限流名額
	if w := s.do("POST", "/api/processMenu", `{"menuText":"Soup"}`, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after invalid requests, got %d", w.Code)
	}
}

func TestProcessMenuRateLimited(t *testing.T) {
	s := newTestServer(t, &stubProvider{content: caesarResponse}, 1)
	header := http.Header{"X-Forwarded-For": {"203.0.113.9"}}

	if w := s.do("POST", "/api/processMenu", `{"menuText":"Soup"}`, header); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := s.do("POST", "/api/processMenu", `{"menuText":"Soup"}`, header)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	body := decodeError(t, w)
	if body["limit"] != float64(1) || body["remaining"] != float64(0) || body["retryAfter"] == nil || body["reset"] == nil {
		t.Fatalf("429 body = %v", body)
	}
	if s.stub.calls() != 1 {
		t.Fatalf("rejected request reached upstream: %d calls", s.stub.calls())
	}
}

func TestProcessMenuUpstreamFailure(t *testing.T) {
	for _, tt := range []struct {
		name        string
		env         string
		wantDetails bool
	}{
		{"development", "development", true},
		{"production", "production", false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &stubProvider{content: "I cannot read this menu"}, 10, func(c *config.Config) { c.App.Env = tt.env })

			w := s.do("POST", "/api/processMenu", `{"menuText":"Soup"}`, nil)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", w.Code)
			}
			body := decodeError(t, w)
			if body["error"] != "Failed to process request with the model provider" {
				t.Fatalf("error = %v", body["error"])
			}
			_, hasDetails := body["details"]
			if hasDetails != tt.wantDetails {
				t.Fatalf("details present = %v, body = %v", hasDetails, body)
			}
			if strings.Contains(w.Body.String(), "I cannot read this menu") {
				t.Fatal("raw model output leaked to the client")
			}
		})
	}
}

func TestProcessMenuProviderDisabled(t *testing.T) {
	s := newTestServer(t, nil, 10)
	if w := s.do("POST", "/api/processMenu", `{"menuText":"Soup"}`, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGenerateQuiz(t *testing.T) {
	stub := &stubProvider{content: `{"questions":[
		{"question":"Too few","answers":["a","b","c"]},
		{"question":"Which sauce?","answers":["Salsa verde","Mole","Chipotle","None"]}
	]}`}
	s := newTestServer(t, stub, 10)

	if w := s.do("POST", "/api/generateQuiz", `{"menu":"   "}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty menu: expected 400, got %d", w.Code)
	}
	if stub.calls() != 0 {
		t.Fatal("empty menu reached upstream")
	}

	w := s.do("POST", "/api/generateQuiz", `{"menu":"Tacos - $12\nMole - $18"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var quiz []menu.QuizQuestion
	if err := json.Unmarshal(w.Body.Bytes(), &quiz); err != nil {
		t.Fatal(err)
	}
	if len(quiz) != len(menu.StandardQuestions())+1 || quiz[len(quiz)-1].Question != "Which sauce?" {
		t.Fatalf("quiz = %+v", quiz)
	}
}

func sixItemMenu() string {
	return `[
		{"name":"Spicy Chicken Wings","description":"Ghost pepper glaze","course":"appetizers","price":11},
		{"name":"Grilled Chicken Caesar Salad","description":null,"course":"salads","price":14},
		{"name":"Szechuan Chicken Stir-Fry","description":"Numbing and spicy","course":"mains","price":17},
		{"name":"Mild Herb Chicken","description":null,"course":"mains","price":16},
		{"name":"Buffalo Chicken Pizza","description":null,"course":"mains","price":18},
		{"name":"Vegetable Curry","description":null,"course":"mains","price":15}
	]`
}

func TestSuggestMenuItem(t *testing.T) {
	stub := &stubProvider{content: "```json\n" + `{"description":"Heat and chicken, as requested.",
		"selectedItems":[{"name":"Spicy Chicken Wings","description":"Ghost pepper glaze","course":"appetizers","price":11},{"name":"Szechuan Chicken Stir-Fry","description":"Numbing and spicy","course":"mains","price":17}],
		"alternateChoices":[{"name":"Buffalo Chicken Pizza","description":null,"course":"mains","price":18},{"name":"Mild Herb Chicken","description":null,"course":"mains","price":16}]}` + "\n```"}
	s := newTestServer(t, stub, 10)

	body := `{"menuItems":` + sixItemMenu() + `,"questionsAndAnswers":"Q: Flavor?\nA: spicy\n\nQ: Protein?\nA: chicken"}`
	w := s.do("POST", "/api/suggestMenuItem", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var rec menu.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.SelectedItems) != 2 || len(rec.AlternateChoices) != 2 {
		t.Fatalf("rec = %+v", rec)
	}
	selected := map[string]bool{}
	for _, item := range rec.SelectedItems {
		selected[item.Name] = true
	}
	for _, item := range rec.AlternateChoices {
		if selected[item.Name] {
			t.Fatalf("%q is both selected and alternate", item.Name)
		}
	}
	if !strings.Contains(stub.lastPrompt(), "A: spicy") {
		t.Fatal("transcript missing from prompt")
	}
}

func TestSuggestMenuItemValidation(t *testing.T) {
	stub := &stubProvider{}
	s := newTestServer(t, stub, 10)

	for name, body := range map[string]string{
		"empty items":      `{"menuItems":[],"questionsAndAnswers":"Q: a\nA: b"}`,
		"missing items":    `{"questionsAndAnswers":"Q: a\nA: b"}`,
		"empty transcript": `{"menuItems":[{"name":"Soup"}],"questionsAndAnswers":""}`,
		"items not array":  `{"menuItems":"Soup","questionsAndAnswers":"Q: a\nA: b"}`,
	} {
		t.Run(name, func(t *testing.T) {
			if w := s.do("POST", "/api/suggestMenuItem", body, nil); w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
	if stub.calls() != 0 {
		t.Fatal("invalid request reached upstream")
	}
}

func TestSuggestMenuItemKeywordFallback(t *testing.T) {
	s := newTestServer(t, nil, 10)

	body := `{"menuItems":` + sixItemMenu() + `,"questionsAndAnswers":"Q: Flavor?\nA: spicy\n\nQ: Protein?\nA: chicken"}`
	w := s.do("POST", "/api/suggestMenuItem", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rec menu.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.SelectedItems) == 0 || rec.SelectedItems[0].Name != "Spicy Chicken Wings" {
		t.Fatalf("rec = %+v", rec)
	}
}

func TestQuestions(t *testing.T) {
	s := newTestServer(t, nil, 10)
	w := s.do("GET", "/api/questions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var qs []menu.QuizQuestion
	if err := json.Unmarshal(w.Body.Bytes(), &qs); err != nil {
		t.Fatal(err)
	}
	if len(qs) != 7 {
		t.Fatalf("got %d questions", len(qs))
	}
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, nil, 10)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "my menu.jpg")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("fake image bytes"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success  bool   `json:"success"`
		URL      string `json:"url"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || !strings.HasSuffix(resp.Filename, "-my-menu.jpg") || resp.URL != "/uploads/"+resp.Filename {
		t.Fatalf("resp = %+v", resp)
	}

	w = s.do("GET", resp.URL, "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "fake image bytes" {
		t.Fatalf("stored file not served: %d %q", w.Code, w.Body.String())
	}
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t, nil, 10)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "No file provided") {
		t.Fatalf("unexpected response: %d %s", w.Code, w.Body.String())
	}
}

func TestPreferencesFlow(t *testing.T) {
	stub := &stubProvider{content: `{"menuItems":[]}`}
	s := newTestServer(t, stub, 10)
	auth := s.bearer(t, "user-42")

	if w := s.do("POST", "/api/savePreferences", `{"restrictions":[],"allergies":[]}`, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}
	if w := s.do("POST", "/api/savePreferences", `{"restrictions":"Vegan","allergies":[]}`, auth); w.Code != http.StatusBadRequest {
		t.Fatalf("bad arrays: expected 400, got %d", w.Code)
	} else if body := decodeError(t, w); body["error"] != "Invalid data format" {
		t.Fatalf("error = %v", body["error"])
	}

	w := s.do("POST", "/api/savePreferences", `{"restrictions":["Vegan"],"allergies":["Peanuts","Other"],"allergiesOther":["kiwi"]}`, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"hasCompletedOnboarding":true`) || !strings.Contains(w.Body.String(), `"success":true`) {
		t.Fatalf("save response = %s", w.Body.String())
	}

	w = s.do("GET", "/api/preferences", "", auth)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"restrictions":["Vegan"]`) {
		t.Fatalf("get preferences = %d %s", w.Code, w.Body.String())
	}

	if w := s.do("POST", "/api/processMenu", `{"menuText":"Tofu Bowl - $11"}`, auth); w.Code != http.StatusOK {
		t.Fatalf("processMenu: %d", w.Code)
	}
	prompt := stub.lastPrompt()
	if !strings.Contains(prompt, "Dietary restrictions: Vegan") || !strings.Contains(prompt, "Allergies: Peanuts, kiwi") {
		t.Fatalf("preferences missing from prompt: %s", prompt)
	}
}

func TestPreferencesRejectsBeforeCounting(t *testing.T) {
	s := newTestServer(t, nil, 10)

	// 超過一般端點上限的未授權請求都應得到 401
	for i := 0; i < 35; i++ {
		if w := s.do("POST", "/api/savePreferences", `{"restrictions":[],"allergies":[]}`, nil); w.Code != http.StatusUnauthorized {
			t.Fatalf("request %d: expected 401, got %d", i+1, w.Code)
		}
	}

	w := s.do("GET", "/api/preferences", "", s.bearer(t, "user-7"))
	if w.Code != http.StatusOK || w.Header().Get("X-RateLimit-Remaining") != "29" {
		t.Fatalf("authorized request: %d remaining=%q", w.Code, w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil, 10)
	w := s.do("GET", "/api/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body := decodeError(t, w); body["error"] != "Not found" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, &stubProvider{err: errors.New("unused")}, 10)

	w := s.do("GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	var health struct {
		Status string `json:"status"`
		Model  struct {
			Enabled bool `json:"enabled"`
		} `json:"model"`
		Queue *queue.Status `json:"queue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || !health.Model.Enabled || health.Queue == nil || health.Queue.MaxConcurrency != 2 {
		t.Fatalf("health = %+v", health)
	}

	for _, path := range []string{"/ready", "/live"} {
		if w := s.do("GET", path, "", nil); w.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, w.Code)
		}
	}
}
