package problems

import (
	"strconv"

	"github.com/learnpalm/practice/internal/models"
)

// EmbeddedFields lists the document fields that may hold a question
// sequence, in priority order. The first one present as a sequence wins.
var EmbeddedFields = []string{"questions", "items", "problems"}

// Normalize flattens doc into problem items. A document without any
// embedded sequence is itself the single item at index 0. Malformed items
// degrade to empty metadata instead of failing.
func Normalize(doc models.RawDocument, partition, requestedSkill string) []models.ProblemItem {
	fields := doc.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	entries, embedded := embeddedItems(fields)
	if !embedded {
		entries = []any{fields}
	}

	requestedSkill = normalizeKey(requestedSkill)
	items := make([]models.ProblemItem, 0, len(entries))
	for idx, entry := range entries {
		itemFields, _ := entry.(map[string]any)
		if itemFields == nil {
			itemFields = map[string]any{}
		}
		items = append(items, normalizeItem(doc.ID, idx, itemFields, fields, partition, requestedSkill))
	}
	return items
}

func embeddedItems(fields map[string]any) ([]any, bool) {
	for _, name := range EmbeddedFields {
		if list, ok := fields[name].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

func normalizeItem(parentID string, idx int, item, doc map[string]any, partition, requestedSkill string) models.ProblemItem {
	id := models.StringField(item, "id")
	if id == "" {
		id = parentID + ":" + strconv.Itoa(idx)
	}

	skill := firstNonEmpty(metadata(item, "skill"), metadata(doc, "skill"), requestedSkill)

	return models.ProblemItem{
		ID:          id,
		ParentID:    parentID,
		Type:        firstNonEmpty(metadata(item, "type"), metadata(doc, "type")),
		Difficulty:  firstNonEmpty(metadata(item, "difficulty"), metadata(doc, "difficulty")),
		Skill:       skill,
		Section:     firstNonEmpty(models.StringField(item, "section"), models.StringField(doc, "section")),
		Prompt:      models.ParseText(item["prompt"]),
		Choices:     models.ParseChoices(item["choices"]),
		Explanation: models.ParseText(item["explanation"]),
		Answer:      item["answer"],
		Partition:   partition,
	}
}

func metadata(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return normalizeKey(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// uniqueIDs suffixes repeated ids with "#n" so that ids stay unique within
// one partition. The first occurrence keeps its id.
func uniqueIDs(items []models.ProblemItem) {
	seen := make(map[string]int, len(items))
	for i := range items {
		id := items[i].ID
		n := seen[id]
		seen[id] = n + 1
		if n == 0 {
			continue
		}
		candidate := id + "#" + strconv.Itoa(n+1)
		for seen[candidate] > 0 {
			n++
			candidate = id + "#" + strconv.Itoa(n+1)
		}
		seen[candidate] = 1
		items[i].ID = candidate
	}
}

// qualifyID prefixes a partition-local id with its partition. The result is
// the same whichever partitions a request reads.
func qualifyID(partition, id string) string {
	return models.Slug(partition) + "/" + id
}

// qualifyShared rewrites every id that occurs in more than one partition
// to its qualified form, so no partition claims the bare id.
func qualifyShared(perPartition [][]models.ProblemItem) {
	owners := make(map[string]int)
	for _, items := range perPartition {
		for _, item := range items {
			owners[item.ID]++
		}
	}
	for _, items := range perPartition {
		for i := range items {
			if owners[items[i].ID] > 1 {
				items[i].ID = qualifyID(items[i].Partition, items[i].ID)
			}
		}
	}
}
