package problems

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/learnpalm/practice/internal/models"
)

// Localize returns a copy of item whose prompt and choices are resolved to
// questionLang and whose explanation is resolved to explanationLang.
func Localize(item models.ProblemItem, questionLang, explanationLang string) models.ProblemItem {
	out := item
	out.Prompt = item.Prompt.Localize(questionLang)
	out.Explanation = item.Explanation.Localize(explanationLang)
	if item.Choices != nil {
		out.Choices = make([]models.Choice, len(item.Choices))
		for i, c := range item.Choices {
			out.Choices[i] = c.Localize(questionLang)
		}
	}
	return out
}

// LocalizeAll applies Localize to every item.
func LocalizeAll(items []models.ProblemItem, questionLang, explanationLang string) []models.ProblemItem {
	out := make([]models.ProblemItem, len(items))
	for i, item := range items {
		out[i] = Localize(item, questionLang, explanationLang)
	}
	return out
}

// ParseLanguage validates a requested language code. Blank input selects
// the fallback language. The code keeps the case it was sent in, since it
// becomes the key of every localized field.
func ParseLanguage(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return models.FallbackLanguage, nil
	}
	if _, err := language.Parse(code); err != nil {
		return "", fmt.Errorf("%w: unsupported language code %q", models.ErrInvalidRequest, raw)
	}
	return code, nil
}
