package menu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// rawItem 模型輸出的菜色，欄位型別不可信任
type rawItem struct {
	Name        json.RawMessage `json:"name"`
	Description json.RawMessage `json:"description"`
	Course      json.RawMessage `json:"course"`
	Price       json.RawMessage `json:"price"`
}

var errMissingField = errors.New("missing field")

// cleanItems 丟棄沒有名稱的項目，選填欄位統一為 nil 或合法值
func cleanItems(raw []rawItem) []MenuItem {
	items := make([]MenuItem, 0, len(raw))
	for _, r := range raw {
		name, ok := rawString(r.Name)
		if !ok || name == "" {
			continue
		}
		item := MenuItem{Name: name}
		if s, ok := rawString(r.Description); ok {
			item.Description = StringPtr(s)
		}
		if s, ok := rawString(r.Course); ok {
			item.Course = StringPtr(s)
		}
		item.Price = rawPrice(r.Price)
		items = append(items, item)
	}
	return items
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// rawString 只接受 JSON 字串，回傳去除空白後的值
func rawString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// rawPrice 接受數字或 "$12.50" 之類的字串，負值與無法解析時為 nil
func rawPrice(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if f, err := n.Float64(); err == nil && f >= 0 {
			return &f
		}
		return nil
	}

	s, ok := rawString(raw)
	if !ok {
		return nil
	}
	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil
	}
	return &f
}

// requireArray 欄位必須存在且為陣列
func requireArray(raw json.RawMessage, field string, v interface{}) error {
	if isNull(raw) {
		return fmt.Errorf("%w: %s", errMissingField, field)
	}
	if bytes.TrimSpace(raw)[0] != '[' {
		return fmt.Errorf("%s is not an array", field)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	return nil
}
