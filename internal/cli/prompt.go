package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"menu-recommender/internal/core/menu"
)

// promptAnswers 逐題詢問，輸入無效時重問同一題
func promptAnswers(in *bufio.Reader, out io.Writer, quiz []menu.QuizQuestion) ([]menu.Answer, error) {
	answers := make([]menu.Answer, 0, len(quiz))
	for i, q := range quiz {
		fmt.Fprintf(out, "\n%d. %s\n", i+1, q.Question)
		values, err := askQuestion(in, out, q)
		if err != nil {
			return nil, err
		}
		answers = append(answers, menu.Answer{Question: q.Question, Values: values})
	}
	return answers, nil
}

func askQuestion(in *bufio.Reader, out io.Writer, q menu.QuizQuestion) ([]string, error) {
	for j, option := range q.Answers {
		fmt.Fprintf(out, "   [%d] %s\n", j+1, option)
	}
	hint := "pick one"
	if q.AllowMultiple {
		hint = "pick one or more, e.g. 1,3"
	}

	for {
		fmt.Fprintf(out, "   (%s) > ", hint)
		line, err := in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("no answer given for %q", q.Question)
			}
			return nil, err
		}

		values, perr := parseChoices(line, q)
		if perr == nil {
			return values, nil
		}
		fmt.Fprintf(out, "   %v\n", perr)
		if errors.Is(err, io.EOF) {
			return nil, perr
		}
	}
}

// parseChoices 將 "1,3" 或 "1 3" 轉為選項文字，重複的編號只算一次
func parseChoices(line string, q menu.QuizQuestion) ([]string, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, errors.New("please choose an option")
	}

	seen := make(map[int]bool, len(fields))
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(q.Answers) {
			return nil, fmt.Errorf("%q is not a valid choice (1-%d)", f, len(q.Answers))
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		values = append(values, q.Answers[n-1])
	}
	if len(values) > 1 && !q.AllowMultiple {
		return nil, errors.New("this question takes a single answer")
	}
	return values, nil
}
