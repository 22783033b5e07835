package problems

import "github.com/learnpalm/practice/internal/models"

// Filter holds optional equality constraints. Blank values match everything.
type Filter struct {
	Type       string
	Difficulty string
	Skill      string
}

// Match reports whether item satisfies every non-blank constraint.
func (f Filter) Match(item models.ProblemItem) bool {
	return matches(f.Type, item.Type) &&
		matches(f.Difficulty, item.Difficulty) &&
		matches(f.Skill, item.Skill)
}

// Apply keeps the matching items, preserving order.
func (f Filter) Apply(items []models.ProblemItem) []models.ProblemItem {
	out := make([]models.ProblemItem, 0, len(items))
	for _, item := range items {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	return out
}

func matches(want, got string) bool {
	want = normalizeKey(want)
	return want == "" || want == normalizeKey(got)
}
