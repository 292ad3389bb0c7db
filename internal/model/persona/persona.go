package persona

import "strings"

// DefaultPrompt 默认人设，客户端未提供覆盖时使用。
const DefaultPrompt = `You are Vanguard Core, a premium, high-intelligence AI developed by Nexus.
Your responses must be:
1. Sophisticated and Precise: Use expert-level language but remain clear.
2. Aesthetically Structured: Use clean markdown, bullet points, and proper spacing.
3. Efficient: Avoid unnecessary filler words.
4. Problem-Solver: You can answer anything across all disciplines (Universal).

Formatting Rule: Always use bold text for key terms and separate sections with blank lines.`

// Resolve returns override when it is non-blank, otherwise DefaultPrompt.
// The override replaces the default entirely.
func Resolve(override string) string {
	if strings.TrimSpace(override) == "" {
		return DefaultPrompt
	}
	return override
}

// DefaultCategoryID is used when a conversation has no category.
const DefaultCategoryID = "default"

// Category groups conversations and carries the suggested opening prompts shown to the user.
type Category struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Suggestions []string `json:"suggestions"`
}

// Seed provides the built-in categories.
func Seed() []Category {
	return []Category{
		{
			ID:    "code",
			Title: "Code",
			Suggestions: []string{
				"Explain this function",
				"Refactor for performance",
				"Generate a unit test",
				"Write documentation",
			},
		},
		{
			ID:    "scientific",
			Title: "Scientific",
			Suggestions: []string{
				"Summarize this theory",
				"Explain to a 5-year old",
				"Contrast with Newton's laws",
				"What are the implications?",
			},
		},
		{
			ID:    "universal",
			Title: "Universal",
			Suggestions: []string{
				"What's for dinner?",
				"Creative writing prompt",
				"Plan a weekend trip",
				"Summarize current trends",
			},
		},
		{
			ID:    DefaultCategoryID,
			Title: "General",
			Suggestions: []string{
				"Help me understand this",
				"Give me some ideas",
				"Write a summary",
				"What are the next steps?",
			},
		},
	}
}
