package menu

import (
	"fmt"
	"os"
	"strings"

	"menu-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

const defaultExtractionPrompt = `You are a menu digitizer. Read the restaurant menu you are given and list every dish on it.

Respond with a single JSON object and nothing else, in exactly this shape:
{"menuItems":[{"name":"string","description":"string or null","course":"string or null","price":number or null}]}

Rules:
- "name" is the dish name as printed. Skip section headers, notes and anything that is not a dish.
- "description" is the printed description, or null when there is none.
- "course" is a lowercase category such as "appetizers", "mains", "desserts", "drinks" or "sides", or null when unclear.
- "price" is a plain number without currency symbols, or null when no price is shown.
- If the input is not a menu, return {"menuItems":[]}.`

const quizPrompt = `You write short, playful preference quizzes that help a diner choose from a specific restaurant menu.

Here is the menu (one item per line, with price when known):
%s

Write 3 to 5 multiple-choice questions that would best separate the dishes on this menu from each other.
Every question must have exactly 4 distinct answers. Do not ask about hunger level, dietary restrictions or calories; those are asked separately.

Respond with a single JSON object and nothing else:
{"questions":[{"question":"string","answers":["string","string","string","string"]}]}`

const recommendationPrompt = `You are a friendly waiter recommending dishes from this restaurant's menu.

Menu items (JSON):
%s

The diner answered a short quiz:
%s

Pick 2 or 3 dishes that best match the diner, and 2 or 3 different dishes as alternates.
Only choose dishes that appear in the menu above, and copy their name, description, course and price exactly.
No dish may appear in both lists.

Respond with a single JSON object and nothing else:
{"description":"a warm 2-4 sentence explanation that refers to the diner's answers and the chosen dishes","selectedItems":[menu items],"alternateChoices":[menu items]}`

// loadPromptFile 讀取自訂擷取提示詞，失敗時使用內建版本
func loadPromptFile(path string) string {
	if path == "" {
		return defaultExtractionPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		common.LogWarn("無法讀取擷取提示詞檔案，使用內建提示詞", zap.String("path", path), zap.Error(err))
		return defaultExtractionPrompt
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return defaultExtractionPrompt
	}
	common.LogInfo("已載入擷取提示詞檔案", zap.String("path", path))
	return prompt
}

func buildQuizPrompt(menuSummary string, prefs *common.DietaryPreferences) string {
	return fmt.Sprintf(quizPrompt, menuSummary) + prefs.PromptBlock()
}

func buildRecommendationPrompt(itemsJSON, transcript string, prefs *common.DietaryPreferences) string {
	return fmt.Sprintf(recommendationPrompt, itemsJSON, transcript) + prefs.PromptBlock()
}
