package menu

// standardPrefixLen 問卷固定前綴題數
const standardPrefixLen = 3

var staticQuestions = []QuizQuestion{
	{
		Question: "How hungry are you?",
		Answers: []string{
			"Girl dinner. Just vibes and crumbs.",
			"Appetizer energy only.",
			"Regular human hungry.",
			"I could eat a cow.",
		},
	},
	{
		Question: "Do you have any dietary restrictions?",
		Answers: []string{
			"Vegetarian",
			"Vegan",
			"Gluten-free (celiac disease)",
			"Lactose intolerant",
			"Kosher",
			"Halal",
			"Low sodium",
			"Diabetic-friendly/Low sugar",
		},
		AllowMultiple: true,
	},
	{
		Question: "Calorie Preference",
		Answers: []string{
			"Caloric deficit — gotta watch my carbs.",
			"Caloric maintenance — I’ll have what they’re having.",
			"Caloric surplus — I’m not watching my waist.",
			"No clue, just feed me good food.",
		},
	},
	{
		Question: "What flavor mood is ruling your stomach today?",
		Answers:  []string{"Fiery and adventurous", "Cheesy and comforting", "Crisp and salty", "Herbaceous and light"},
	},
	{
		Question: "What texture are you daydreaming about?",
		Answers:  []string{"Crunchy and shareable", "Tender and melt-in-your-mouth", "Bubbly and creamy", "Crispy and golden"},
	},
	{
		Question: "Pick the vibe your plate should bring",
		Answers:  []string{"Casual party-friendly", "Romantic upscale", "Nostalgic homey", "Bold and indulgent"},
	},
	{
		Question: "Pick the after-meal vibe you’re hunting",
		Answers:  []string{"Cozy and satisfied", "Energized and ready to chat", "A little tipsy and merry", "Light and refreshed"},
	},
}

// StaticQuestions 固定問卷（不經模型）
func StaticQuestions() []QuizQuestion {
	return cloneQuestions(staticQuestions)
}

// StandardQuestions 每份問卷開頭固定的題目
func StandardQuestions() []QuizQuestion {
	return cloneQuestions(staticQuestions[:standardPrefixLen])
}

func cloneQuestions(qs []QuizQuestion) []QuizQuestion {
	out := make([]QuizQuestion, len(qs))
	for i, q := range qs {
		out[i] = q
		out[i].Answers = append([]string(nil), q.Answers...)
	}
	return out
}
