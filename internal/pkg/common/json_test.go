package common

import (
	"encoding/json"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n\t", `{"a":1}`},
		{"tagged fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"untagged fence", "```\n[1,2,3]\n```", `[1,2,3]`},
		{"fence with padding", "\n\n```JSON\n  {\"a\": [1]}  \n```\n", `{"a": [1]}`},
		{"single line fence", "```{\"a\":1}```", `{"a":1}`},
		{"single line tagged fence", "```json {\"a\":1}```", `{"a":1}`},
		{"single line bare value", "```true```", "true"},
		{"numeric first line is content", "```42\n```", "42"},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"plain text", "  no json here ", "no json here"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Fatalf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripCodeFenceRoundTrip(t *testing.T) {
	values := []interface{}{
		map[string]interface{}{"menuItems": []interface{}{map[string]interface{}{"name": "Caesar Salad", "price": 12}}},
		[]interface{}{"a", "b"},
		"plain string",
		42.5,
		true,
		nil,
	}

	for _, v := range values {
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %v: %v", v, err)
		}
		want := string(encoded)

		if got := StripCodeFence(want); got != want {
			t.Errorf("clean input changed: got %q, want %q", got, want)
		}
		for _, wrapped := range []string{
			"```json\n" + want + "\n```",
			"```\n" + want + "\n```",
			"  ```json\n" + want + "```  ",
		} {
			if got := StripCodeFence(wrapped); got != want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", wrapped, got, want)
			}
		}
	}
}

func TestParseModelJSON(t *testing.T) {
	var out struct {
		Questions []string `json:"questions"`
	}
	if err := ParseModelJSON("```json\n{\"questions\":[\"x\"]}\n```", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Questions) != 1 || out.Questions[0] != "x" {
		t.Fatalf("unexpected result: %+v", out)
	}

	out.Questions = nil
	if err := ParseModelJSON("```json {\"questions\":[\"y\"]}```", &out); err != nil || len(out.Questions) != 1 || out.Questions[0] != "y" {
		t.Fatalf("single line tagged fence: %+v %v", out, err)
	}

	if err := ParseModelJSON("```json\n```", &out); err == nil {
		t.Fatal("expected error for empty fenced body")
	}
	if err := ParseModelJSON(`{"questions":[]} trailing`, &out); err == nil {
		t.Fatal("expected error for trailing data")
	}
}
