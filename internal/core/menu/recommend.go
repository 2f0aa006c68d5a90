package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"menu-recommender/internal/core/ai/provider"
	"menu-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

const opRecommend = "recommend"

type recommendationResponse struct {
	Description      json.RawMessage `json:"description"`
	SelectedItems    json.RawMessage `json:"selectedItems"`
	AlternateChoices json.RawMessage `json:"alternateChoices"`
}

// RecommendRequest 推薦請求內容
type RecommendRequest struct {
	MenuItems           []MenuItem `json:"menuItems"`
	QuestionsAndAnswers string     `json:"questionsAndAnswers"`
}

// Validate 菜單與問答皆不可為空
func (r RecommendRequest) Validate() error {
	if len(r.MenuItems) == 0 {
		return common.NewValidationError("menuItems must be a non-empty array")
	}
	for i, item := range r.MenuItems {
		if strings.TrimSpace(item.Name) == "" {
			return common.NewValidationErrorf("menuItems[%d].name is required", i)
		}
	}
	if strings.TrimSpace(r.QuestionsAndAnswers) == "" {
		return common.NewValidationError("questionsAndAnswers must be a non-empty string")
	}
	return nil
}

// Recommend 由模型挑選菜色；模型未啟用時改用關鍵字比對
func (s *Service) Recommend(ctx context.Context, req RecommendRequest, prefs *common.DietaryPreferences) (*Recommendation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	transcript := strings.TrimSpace(req.QuestionsAndAnswers)

	if s.provider == nil {
		rec := KeywordRecommend(req.MenuItems, transcript)
		common.LogInfo("模型未啟用，使用關鍵字推薦", zap.Int("selected", len(rec.SelectedItems)))
		return rec, nil
	}

	itemsJSON, err := json.Marshal(req.MenuItems)
	if err != nil {
		return nil, fmt.Errorf("encode menu items: %w", err)
	}

	raw, err := s.generate(ctx, opRecommend, []provider.Message{
		provider.UserMessage(provider.TextPart(buildRecommendationPrompt(string(itemsJSON), transcript, prefs))),
	})
	if err != nil {
		return nil, err
	}

	rec, err := parseRecommendation(raw)
	if err != nil {
		return nil, parseFailure(opRecommend, raw, err)
	}

	for _, w := range CheckRecommendation(req.MenuItems, rec) {
		common.LogWarn("推薦結果與菜單不一致", zap.String("issue", w))
	}
	return rec, nil
}

func parseRecommendation(raw string) (*Recommendation, error) {
	var resp recommendationResponse
	if err := common.ParseModelJSON(raw, &resp); err != nil {
		return nil, fmt.Errorf("invalid recommendation JSON: %w", err)
	}

	var selected []rawItem
	if err := requireArray(resp.SelectedItems, "selectedItems", &selected); err != nil {
		return nil, err
	}
	rec := &Recommendation{SelectedItems: cleanItems(selected)}
	if len(rec.SelectedItems) == 0 {
		return nil, errors.New("selectedItems contains no named items")
	}

	rec.AlternateChoices = []MenuItem{}
	if !isNull(resp.AlternateChoices) {
		var alternates []rawItem
		if err := requireArray(resp.AlternateChoices, "alternateChoices", &alternates); err != nil {
			return nil, err
		}
		rec.AlternateChoices = cleanItems(alternates)
	}

	rec.Description, _ = rawString(resp.Description)
	return rec, nil
}

// CheckRecommendation 檢查推薦是否都來自原菜單、兩組是否重疊以及數量；只回報不修改
func CheckRecommendation(menu []MenuItem, rec *Recommendation) []string {
	known := make(map[string]bool, len(menu))
	for _, item := range menu {
		known[normalizeName(item.Name)] = true
	}

	var issues []string
	selected := make(map[string]bool, len(rec.SelectedItems))
	for _, item := range rec.SelectedItems {
		n := normalizeName(item.Name)
		selected[n] = true
		if !known[n] {
			issues = append(issues, fmt.Sprintf("selected item %q is not on the menu", item.Name))
		}
	}
	for _, item := range rec.AlternateChoices {
		n := normalizeName(item.Name)
		if !known[n] {
			issues = append(issues, fmt.Sprintf("alternate item %q is not on the menu", item.Name))
		}
		if selected[n] {
			issues = append(issues, fmt.Sprintf("item %q is both selected and alternate", item.Name))
		}
	}
	if n := len(rec.SelectedItems); n < 2 || n > 3 {
		issues = append(issues, fmt.Sprintf("expected 2-3 selected items, got %d", n))
	}
	if n := len(rec.AlternateChoices); n < 2 || n > 3 {
		issues = append(issues, fmt.Sprintf("expected 2-3 alternate choices, got %d", n))
	}
	return issues
}
