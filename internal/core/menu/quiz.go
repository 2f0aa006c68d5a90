package menu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"menu-recommender/internal/core/ai/provider"
	"menu-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	opQuiz = "quiz"
	// 模型產生的每題必須恰好四個選項
	quizAnswerCount = 4
)

type rawQuestion struct {
	Question      json.RawMessage `json:"question"`
	Answers       json.RawMessage `json:"answers"`
	AllowMultiple json.RawMessage `json:"allowMultiple"`
}

type quizResponse struct {
	Questions json.RawMessage `json:"questions"`
}

// GenerateQuiz 回傳固定前綴題目加上模型產生且格式正確的題目
func (s *Service) GenerateQuiz(ctx context.Context, menuSummary string, prefs *common.DietaryPreferences) ([]QuizQuestion, error) {
	menuSummary = strings.TrimSpace(menuSummary)
	if menuSummary == "" {
		return nil, common.NewValidationError("menu is required")
	}

	quiz := StandardQuestions()
	if s.provider == nil {
		common.LogWarn("模型未啟用，只回傳固定題目")
		return quiz, nil
	}

	raw, err := s.generate(ctx, opQuiz, []provider.Message{
		provider.UserMessage(provider.TextPart(buildQuizPrompt(menuSummary, prefs))),
	})
	if err != nil {
		return nil, err
	}

	generated, dropped, err := parseQuiz(raw)
	if err != nil {
		return nil, parseFailure(opQuiz, raw, err)
	}
	if dropped > 0 {
		common.LogWarn("丟棄格式不符的問題", zap.Int("dropped", dropped), zap.Int("kept", len(generated)))
	}
	return append(quiz, generated...), nil
}

// parseQuiz 回應必須是 {"questions": [...]}；個別題目格式不符時丟棄而非修補
func parseQuiz(raw string) ([]QuizQuestion, int, error) {
	var resp quizResponse
	if err := common.ParseModelJSON(raw, &resp); err != nil {
		return nil, 0, fmt.Errorf("invalid quiz JSON: %w", err)
	}
	var candidates []rawQuestion
	if err := requireArray(resp.Questions, "questions", &candidates); err != nil {
		return nil, 0, err
	}

	kept := make([]QuizQuestion, 0, len(candidates))
	for _, c := range candidates {
		if q, ok := validQuestion(c); ok {
			kept = append(kept, q)
		}
	}
	return kept, len(candidates) - len(kept), nil
}

func validQuestion(c rawQuestion) (QuizQuestion, bool) {
	text, ok := rawString(c.Question)
	if !ok || text == "" {
		return QuizQuestion{}, false
	}

	var rawAnswers []json.RawMessage
	if isNull(c.Answers) || json.Unmarshal(c.Answers, &rawAnswers) != nil || len(rawAnswers) != quizAnswerCount {
		return QuizQuestion{}, false
	}

	answers := make([]string, 0, quizAnswerCount)
	seen := make(map[string]bool, quizAnswerCount)
	for _, ra := range rawAnswers {
		a, ok := rawString(ra)
		if !ok || a == "" {
			return QuizQuestion{}, false
		}
		key := strings.ToLower(a)
		if seen[key] {
			return QuizQuestion{}, false
		}
		seen[key] = true
		answers = append(answers, a)
	}

	q := QuizQuestion{Question: text, Answers: answers}
	if !isNull(c.AllowMultiple) {
		_ = json.Unmarshal(c.AllowMultiple, &q.AllowMultiple)
	}
	return q, true
}
