package menu

import (
	"fmt"
	"strings"
)

// Answer 問卷中一題的回答；多選題有多個值
type Answer struct {
	Question string   `json:"question"`
	Values   []string `json:"values"`
}

// BuildTranscript 依問卷順序輸出 "Q: ...\nA: ..."，題與題之間空一行
// 多選答案以 ", " 串接
func BuildTranscript(answers []Answer) string {
	pairs := make([]string, 0, len(answers))
	for _, a := range answers {
		q := strings.TrimSpace(a.Question)
		if q == "" {
			continue
		}
		values := make([]string, 0, len(a.Values))
		for _, v := range a.Values {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		pairs = append(pairs, fmt.Sprintf("Q: %s\nA: %s", q, strings.Join(values, ", ")))
	}
	return strings.Join(pairs, "\n\n")
}

// transcriptAnswers 取出逐字稿中所有 "A:" 行的內容
func transcriptAnswers(transcript string) []string {
	var out []string
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "A:") {
			if v := strings.TrimSpace(strings.TrimPrefix(line, "A:")); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
