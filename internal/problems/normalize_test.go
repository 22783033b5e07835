package problems_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/learnpalm/practice/internal/models"
	"github.com/learnpalm/practice/internal/problems"
)

func TestNormalizeEmbeddedSequence(t *testing.T) {
	doc := models.NewRawDocument("store-1", map[string]any{
		"id":         "doc-1",
		"type":       "MCQ",
		"difficulty": " Hard ",
		"questions": []any{
			map[string]any{"id": "q-a", "prompt": "first", "answer": "A"},
			map[string]any{"difficulty": "Easy", "prompt": map[string]any{"en": "second"}},
		},
	})

	items := problems.Normalize(doc, "Algebra - Linear Functions", "")
	require.Len(t, items, 2)

	require.Equal(t, "q-a", items[0].ID)
	require.Equal(t, "doc-1", items[0].ParentID)
	require.Equal(t, "mcq", items[0].Type)
	require.Equal(t, "hard", items[0].Difficulty)
	require.Equal(t, "A", items[0].Answer)
	require.Equal(t, "Algebra - Linear Functions", items[0].Partition)

	require.Equal(t, "doc-1:1", items[1].ID)
	require.Equal(t, "easy", items[1].Difficulty)
	require.True(t, items[1].Prompt.IsTranslated())
}

func TestNormalizeFieldPriority(t *testing.T) {
	doc := models.NewRawDocument("d", map[string]any{
		"problems":  []any{map[string]any{"id": "from-problems"}},
		"items":     []any{map[string]any{"id": "from-items"}},
		"questions": "not a sequence",
	})

	items := problems.Normalize(doc, "p", "")
	require.Len(t, items, 1)
	require.Equal(t, "from-items", items[0].ID)
}

func TestNormalizeEmptySequenceYieldsNoItems(t *testing.T) {
	for _, field := range problems.EmbeddedFields {
		t.Run(field, func(t *testing.T) {
			doc := models.NewRawDocument("d", map[string]any{field: []any{}})
			require.Empty(t, problems.Normalize(doc, "p", ""))
		})
	}
}

func TestNormalizeDocumentWithoutSequenceIsOneItem(t *testing.T) {
	doc := models.NewRawDocument("store-9", map[string]any{
		"type":   "spr",
		"prompt": "What is 2+2?",
		"answer": "4",
	})

	items := problems.Normalize(doc, "p", "")
	require.Len(t, items, 1)
	require.Equal(t, "store-9:0", items[0].ID)
	require.Equal(t, "store-9", items[0].ParentID)
	require.Equal(t, "spr", items[0].Type)

	prompt, ok := items[0].Prompt.Plain()
	require.True(t, ok)
	require.Equal(t, "What is 2+2?", prompt)
}

func TestNormalizeDocumentOwnIDForImplicitItem(t *testing.T) {
	doc := models.NewRawDocument("store-id", map[string]any{"id": 17.0, "prompt": "x"})
	items := problems.Normalize(doc, "p", "")
	require.Len(t, items, 1)
	require.Equal(t, "17", items[0].ID)
	require.Equal(t, "17", items[0].ParentID)
}

func TestNormalizeFallbackChain(t *testing.T) {
	withDocDifficulty := models.NewRawDocument("d1", map[string]any{
		"difficulty": "Medium",
		"items":      []any{map[string]any{"type": "mcq"}},
	})
	items := problems.Normalize(withDocDifficulty, "p", "")
	require.Equal(t, "medium", items[0].Difficulty)

	without := models.NewRawDocument("d2", map[string]any{
		"items": []any{map[string]any{"type": "mcq"}},
	})
	items = problems.Normalize(without, "p", "")
	require.Equal(t, "", items[0].Difficulty)
	require.Equal(t, "", items[0].Skill)
}

func TestNormalizeSkillFallsBackToRequestedSkill(t *testing.T) {
	doc := models.NewRawDocument("d", map[string]any{
		"questions": []any{
			map[string]any{"skill": "Circles"},
			map[string]any{},
		},
	})

	items := problems.Normalize(doc, "p", " Linear-Functions ")
	require.Equal(t, "circles", items[0].Skill)
	require.Equal(t, "linear-functions", items[1].Skill)

	docSkill := models.NewRawDocument("d", map[string]any{
		"skill":     "percentages",
		"questions": []any{map[string]any{}},
	})
	items = problems.Normalize(docSkill, "p", "linear-functions")
	require.Equal(t, "percentages", items[0].Skill)
}

func TestNormalizeMalformedItemsDegrade(t *testing.T) {
	doc := models.NewRawDocument("d", map[string]any{
		"type": "mcq",
		"questions": []any{
			"just a string",
			map[string]any{"difficulty": 3, "type": []any{"x"}},
		},
	})

	items := problems.Normalize(doc, "p", "")
	require.Len(t, items, 2)
	require.Equal(t, "d:0", items[0].ID)
	require.Equal(t, "mcq", items[0].Type)
	require.Equal(t, "", items[1].Difficulty)
	require.Equal(t, "mcq", items[1].Type)
}

func TestNormalizeDoesNotMutateDocument(t *testing.T) {
	prompt := map[string]any{"en": "A", "fr": "B"}
	doc := models.NewRawDocument("d", map[string]any{"type": " MCQ ", "prompt": prompt})

	items := problems.Normalize(doc, "p", "")
	_ = problems.Localize(items[0], "fr", "fr")

	require.Equal(t, " MCQ ", doc.Fields["type"])
	require.Equal(t, map[string]any{"en": "A", "fr": "B"}, doc.Fields["prompt"])
}
