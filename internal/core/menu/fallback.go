package menu

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "just": true, "only": true,
	"are": true, "you": true, "your": true, "what": true, "have": true, "little": true,
	"ready": true, "food": true, "good": true, "feed": true, "clue": true,
}

type scoredItem struct {
	item    MenuItem
	score   int
	matched []string
}

// KeywordRecommend 依回答關鍵字與菜色名稱、描述、分類的重疊程度排序
// 名稱命中 +2，描述或分類命中 +1；完全沒有命中時依菜單順序挑選
func KeywordRecommend(items []MenuItem, transcript string) *Recommendation {
	keywords := answerKeywords(transcript)

	scored := make([]scoredItem, 0, len(items))
	for _, item := range items {
		name := strings.ToLower(item.Name)
		var rest string
		if item.Description != nil {
			rest += strings.ToLower(*item.Description) + " "
		}
		if item.Course != nil {
			rest += strings.ToLower(*item.Course)
		}

		s := scoredItem{item: item}
		for _, k := range keywords {
			switch {
			case strings.Contains(name, k):
				s.score += 2
				s.matched = append(s.matched, k)
			case strings.Contains(rest, k):
				s.score++
				s.matched = append(s.matched, k)
			}
		}
		scored = append(scored, s)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	n := len(scored)
	selectCount := clamp(n/2, 1, 3)
	if n == 0 {
		selectCount = 0
	}
	altCount := n - selectCount
	if altCount > 3 {
		altCount = 3
	}

	rec := &Recommendation{
		SelectedItems:    make([]MenuItem, 0, selectCount),
		AlternateChoices: make([]MenuItem, 0, altCount),
	}
	var matched []string
	seen := map[string]bool{}
	for i := 0; i < selectCount; i++ {
		rec.SelectedItems = append(rec.SelectedItems, scored[i].item)
		for _, m := range scored[i].matched {
			if !seen[m] {
				seen[m] = true
				matched = append(matched, m)
			}
		}
	}
	for i := selectCount; i < selectCount+altCount; i++ {
		rec.AlternateChoices = append(rec.AlternateChoices, scored[i].item)
	}

	names := make([]string, len(rec.SelectedItems))
	for i, item := range rec.SelectedItems {
		names[i] = item.Name
	}
	switch {
	case len(names) == 0:
		rec.Description = "We could not find anything on this menu to recommend."
	case len(matched) > 0:
		rec.Description = fmt.Sprintf("Based on your answers (%s), we think you'll enjoy %s.", strings.Join(matched, ", "), joinNames(names))
	default:
		rec.Description = fmt.Sprintf("Nothing matched your answers directly, so here are some popular choices: %s.", joinNames(names))
	}
	return rec
}

// answerKeywords 從回答中取出長度至少 3 的小寫詞，去除重複與常見字
func answerKeywords(transcript string) []string {
	var out []string
	seen := map[string]bool{}
	for _, answer := range transcriptAnswers(transcript) {
		words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
			return !unicode.IsLetter(r) && r != '-'
		})
		for _, w := range words {
			w = strings.Trim(w, "-")
			if len(w) < 3 || stopWords[w] || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
