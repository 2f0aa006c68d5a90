package menu

import (
	"strconv"
	"strings"
)

// MenuItem 菜單上的一道菜；選填欄位缺少時序列化為 null
type MenuItem struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Course      *string  `json:"course"`
	Price       *float64 `json:"price"`
}

// QuizQuestion 偏好問題
type QuizQuestion struct {
	Question      string   `json:"question"`
	Answers       []string `json:"answers"`
	AllowMultiple bool     `json:"allowMultiple,omitempty"`
}

// Recommendation 推薦結果
type Recommendation struct {
	Description      string     `json:"description"`
	SelectedItems    []MenuItem `json:"selectedItems"`
	AlternateChoices []MenuItem `json:"alternateChoices"`
}

// StringPtr 回傳去除空白後的字串指標，空字串回傳 nil
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// PricePtr 價格指標
func PricePtr(p float64) *float64 {
	return &p
}

// Summarize 產生給問卷生成使用的菜單摘要，每行 "名稱 - $價格"
func Summarize(items []MenuItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		if item.Price != nil {
			lines = append(lines, name+" - $"+strconv.FormatFloat(*item.Price, 'f', -1, 64))
			continue
		}
		lines = append(lines, name)
	}
	return strings.Join(lines, "\n")
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
