package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const codeFence = "```"

// inlineFenceTag 單行 fence 的語言標籤，後面必須有空白與內容
var inlineFenceTag = regexp.MustCompile(`^[A-Za-z][\w-]*\s+(\S[\s\S]*)$`)

// StripCodeFence 移除模型回應外層的 markdown code fence（可帶語言標籤，例如 ```json）
// 沒有 fence 時回傳去除前後空白的原字串
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, codeFence) {
		return s
	}

	inner := strings.TrimPrefix(s, codeFence)
	inner = strings.TrimSuffix(inner, codeFence)

	// 第一行若只有語言標籤則丟棄
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		if isFenceTag(inner[:nl]) {
			inner = inner[nl+1:]
		}
	} else if m := inlineFenceTag.FindStringSubmatch(inner); m != nil {
		inner = m[1]
	}

	return strings.TrimSpace(inner)
}

// isFenceTag 空行或以字母開頭的標籤
func isFenceTag(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if c := line[0]; !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
		return false
	}
	for _, r := range line {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// ParseModelJSON 先移除 code fence 再解析模型輸出
func ParseModelJSON(raw string, v interface{}) error {
	cleaned := StripCodeFence(raw)
	if cleaned == "" {
		return fmt.Errorf("empty model response")
	}
	return ParseJSON(cleaned, v)
}

// ParseJSON 解析 JSON 字符串到結構體
func ParseJSON(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v)
}

// ParseJSONBytes 解析 JSON 位元組切片到結構體
func ParseJSONBytes(data []byte, v interface{}) error {
	return decodeJSON(bytes.NewReader(data), v)
}

// DecodeJSON 使用統一設定解析 JSON
func DecodeJSON(r io.Reader, v interface{}) error {
	return decodeJSON(r, v)
}

func decodeJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return err
		}
		return fmt.Errorf("unexpected extra JSON data")
	}
	return nil
}
