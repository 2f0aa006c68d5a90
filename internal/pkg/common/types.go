package common

import (
	"strings"
)

// DietaryPreferences 使用者的飲食限制，由身分服務保存，管線只讀取
type DietaryPreferences struct {
	Restrictions           []string `json:"restrictions"`
	RestrictionsOther      string   `json:"restrictionsOther,omitempty"`
	Allergies              []string `json:"allergies"`
	AllergiesOther         []string `json:"allergiesOther,omitempty"`
	HasCompletedOnboarding bool     `json:"hasCompletedOnboarding"`
}

// AllRestrictions 合併勾選項目與自填項目
func (p *DietaryPreferences) AllRestrictions() []string {
	out := NonEmpty(p.Restrictions)
	if other := strings.TrimSpace(p.RestrictionsOther); other != "" {
		out = append(out, other)
	}
	return out
}

// AllAllergies 合併勾選項目與自填項目，"Other" 本身不算過敏原
func (p *DietaryPreferences) AllAllergies() []string {
	out := make([]string, 0, len(p.Allergies)+len(p.AllergiesOther))
	for _, a := range NonEmpty(p.Allergies) {
		if strings.EqualFold(a, "Other") {
			continue
		}
		out = append(out, a)
	}
	return append(out, NonEmpty(p.AllergiesOther)...)
}

// PromptBlock 轉為附加在提示詞後方的文字，沒有任何資料時回傳空字串
func (p *DietaryPreferences) PromptBlock() string {
	if p == nil || !p.HasCompletedOnboarding {
		return ""
	}
	restrictions := p.AllRestrictions()
	allergies := p.AllAllergies()
	if len(restrictions) == 0 && len(allergies) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nUSER'S DIETARY INFORMATION (IMPORTANT - Must be considered in all recommendations):\n")
	if len(restrictions) > 0 {
		b.WriteString("Dietary restrictions: ")
		b.WriteString(strings.Join(restrictions, ", "))
		b.WriteString("\n")
	}
	if len(allergies) > 0 {
		b.WriteString("Allergies: ")
		b.WriteString(strings.Join(allergies, ", "))
		b.WriteString("\n")
	}
	return b.String()
}
