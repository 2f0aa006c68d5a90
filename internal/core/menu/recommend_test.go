package menu

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"menu-recommender/internal/pkg/common"
)

func chickenMenu() []MenuItem {
	return []MenuItem{
		{Name: "Spicy Chicken Wings", Description: StringPtr("Tossed in ghost pepper sauce"), Course: StringPtr("appetizers"), Price: PricePtr(11)},
		{Name: "Grilled Chicken Caesar Salad", Course: StringPtr("salads"), Price: PricePtr(14)},
		{Name: "Szechuan Chicken Stir-Fry", Description: StringPtr("Spicy peppercorn glaze"), Course: StringPtr("mains"), Price: PricePtr(17)},
		{Name: "Mild Herb Chicken", Course: StringPtr("mains"), Price: PricePtr(16)},
		{Name: "Buffalo Chicken Pizza", Course: StringPtr("mains"), Price: PricePtr(18)},
		{Name: "Vegetable Curry", Course: StringPtr("mains"), Price: PricePtr(15)},
	}
}

const spicyTranscript = "Q: What flavor mood is ruling your stomach today?\nA: Fiery and spicy\n\nQ: Favorite protein?\nA: Chicken"

func itemsJSON(t *testing.T, items ...MenuItem) string {
	t.Helper()
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func assertDisjointAndOnMenu(t *testing.T, menu []MenuItem, rec *Recommendation) {
	t.Helper()
	known := map[string]bool{}
	for _, item := range menu {
		known[item.Name] = true
	}
	selected := map[string]bool{}
	for _, item := range rec.SelectedItems {
		if !known[item.Name] {
			t.Fatalf("selected %q is not on the menu", item.Name)
		}
		selected[item.Name] = true
	}
	for _, item := range rec.AlternateChoices {
		if !known[item.Name] {
			t.Fatalf("alternate %q is not on the menu", item.Name)
		}
		if selected[item.Name] {
			t.Fatalf("%q is both selected and alternate", item.Name)
		}
	}
}

func TestRecommend(t *testing.T) {
	menu := chickenMenu()
	resp := `{"description":"You asked for heat and chicken, so these bring both.","selectedItems":` +
		itemsJSON(t, menu[0], menu[2], menu[4]) + `,"alternateChoices":` + itemsJSON(t, menu[1], menu[3]) + `}`
	fp := &fakeProvider{responses: []string{resp}}
	svc := newTestService(fp, Options{})

	rec, err := svc.Recommend(context.Background(), RecommendRequest{MenuItems: menu, QuestionsAndAnswers: spicyTranscript}, nil)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(rec.SelectedItems) != 3 || len(rec.AlternateChoices) != 2 {
		t.Fatalf("rec = %+v", rec)
	}
	if rec.Description == "" {
		t.Fatal("description is empty")
	}
	assertDisjointAndOnMenu(t, menu, rec)
	if issues := CheckRecommendation(menu, rec); len(issues) != 0 {
		t.Fatalf("issues = %v", issues)
	}

	prompt := messageText(fp.last())
	if !strings.Contains(prompt, "Szechuan Chicken Stir-Fry") || !strings.Contains(prompt, "A: Fiery and spicy") {
		t.Fatal("menu or transcript missing from prompt")
	}
}

func TestRecommendMissingAlternates(t *testing.T) {
	menu := chickenMenu()
	fp := &fakeProvider{responses: []string{`{"description":"ok","selectedItems":` + itemsJSON(t, menu[0], menu[2]) + `}`}}

	rec, err := newTestService(fp, Options{}).Recommend(context.Background(), RecommendRequest{MenuItems: menu, QuestionsAndAnswers: spicyTranscript}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec.AlternateChoices == nil || len(rec.AlternateChoices) != 0 {
		t.Fatalf("alternates = %#v", rec.AlternateChoices)
	}
	out, _ := json.Marshal(rec)
	if !strings.Contains(string(out), `"alternateChoices":[]`) {
		t.Fatalf("serialized = %s", out)
	}
}

func TestRecommendUpstreamFailures(t *testing.T) {
	menu := chickenMenu()
	for name, resp := range map[string]string{
		"not json":               "I recommend the wings!",
		"missing selectedItems":  `{"description":"x","alternateChoices":[]}`,
		"empty selectedItems":    `{"description":"x","selectedItems":[]}`,
		"unnamed selectedItems":  `{"description":"x","selectedItems":[{"price":3}]}`,
		"alternateChoices error": `{"description":"x","selectedItems":[{"name":"Mild Herb Chicken"}],"alternateChoices":"none"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newTestService(&fakeProvider{responses: []string{resp}}, Options{}).
				Recommend(context.Background(), RecommendRequest{MenuItems: menu, QuestionsAndAnswers: spicyTranscript}, nil)
			if !common.IsUpstreamError(err) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestRecommendValidation(t *testing.T) {
	tests := []struct {
		name string
		req  RecommendRequest
	}{
		{"no items", RecommendRequest{QuestionsAndAnswers: spicyTranscript}},
		{"unnamed item", RecommendRequest{MenuItems: []MenuItem{{Name: " "}}, QuestionsAndAnswers: spicyTranscript}},
		{"no transcript", RecommendRequest{MenuItems: chickenMenu(), QuestionsAndAnswers: "\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakeProvider{}
			_, err := newTestService(fp, Options{}).Recommend(context.Background(), tt.req, nil)
			if !common.IsValidationError(err) {
				t.Fatalf("err = %v", err)
			}
			if fp.calls() != 0 {
				t.Fatal("upstream called for invalid input")
			}
		})
	}
}

func TestRecommendIncludesPreferences(t *testing.T) {
	menu := chickenMenu()
	fp := &fakeProvider{responses: []string{`{"description":"ok","selectedItems":` + itemsJSON(t, menu[5]) + `}`}}
	prefs := &common.DietaryPreferences{Restrictions: []string{"Vegetarian"}, HasCompletedOnboarding: true}

	if _, err := newTestService(fp, Options{}).Recommend(context.Background(), RecommendRequest{MenuItems: menu, QuestionsAndAnswers: spicyTranscript}, prefs); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(messageText(fp.last()), "Dietary restrictions: Vegetarian") {
		t.Fatal("preferences missing from prompt")
	}
}

func TestCheckRecommendation(t *testing.T) {
	menu := chickenMenu()
	rec := &Recommendation{
		SelectedItems:    []MenuItem{menu[0], {Name: "Lobster Roll"}},
		AlternateChoices: []MenuItem{{Name: "spicy  chicken wings"}},
	}
	issues := CheckRecommendation(menu, rec)

	want := []string{
		`selected item "Lobster Roll" is not on the menu`,
		`item "spicy  chicken wings" is both selected and alternate`,
		"expected 2-3 alternate choices, got 1",
	}
	if len(issues) != len(want) {
		t.Fatalf("issues = %q", issues)
	}
	for i := range want {
		if issues[i] != want[i] {
			t.Fatalf("issue %d = %q, want %q", i, issues[i], want[i])
		}
	}
}

func TestKeywordRecommendWithoutProvider(t *testing.T) {
	menu := chickenMenu()
	rec, err := newTestService(nil, Options{}).Recommend(context.Background(), RecommendRequest{MenuItems: menu, QuestionsAndAnswers: spicyTranscript}, nil)
	if err != nil {
		t.Fatal(err)
	}

	names := func(items []MenuItem) []string {
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = item.Name
		}
		return out
	}
	wantSelected := []string{"Spicy Chicken Wings", "Szechuan Chicken Stir-Fry", "Grilled Chicken Caesar Salad"}
	wantAlternates := []string{"Mild Herb Chicken", "Buffalo Chicken Pizza", "Vegetable Curry"}
	if got := names(rec.SelectedItems); strings.Join(got, "|") != strings.Join(wantSelected, "|") {
		t.Fatalf("selected = %q", got)
	}
	if got := names(rec.AlternateChoices); strings.Join(got, "|") != strings.Join(wantAlternates, "|") {
		t.Fatalf("alternates = %q", got)
	}
	assertDisjointAndOnMenu(t, menu, rec)
	if !strings.Contains(rec.Description, "spicy") || !strings.Contains(rec.Description, "Spicy Chicken Wings") {
		t.Fatalf("description = %q", rec.Description)
	}
}

func TestKeywordRecommendEdgeCases(t *testing.T) {
	empty := KeywordRecommend(nil, spicyTranscript)
	if len(empty.SelectedItems) != 0 || len(empty.AlternateChoices) != 0 || empty.Description == "" {
		t.Fatalf("empty menu rec = %+v", empty)
	}

	one := KeywordRecommend([]MenuItem{{Name: "Toast"}}, "Q: Anything?\nA: Surprise me")
	if len(one.SelectedItems) != 1 || len(one.AlternateChoices) != 0 {
		t.Fatalf("single item rec = %+v", one)
	}
	if !strings.Contains(one.Description, "Nothing matched") {
		t.Fatalf("description = %q", one.Description)
	}
}
