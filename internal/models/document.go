package models

import (
	"reflect"
	"regexp"
	"strings"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// RawDocument is a record exactly as stored in a partition. It may be a
// question on its own or embed a sequence of questions.
type RawDocument struct {
	ID     string
	Fields map[string]any
}

// NewRawDocument builds a RawDocument from a decoded source. The source "id"
// field wins over the store-assigned id.
func NewRawDocument(storeID string, fields map[string]any) RawDocument {
	if fields == nil {
		fields = map[string]any{}
	}
	id := StringField(fields, "id")
	if id == "" {
		id = strings.TrimSpace(storeID)
	}
	return RawDocument{ID: id, Fields: fields}
}

// ProblemItem is one practice question after normalization.
type ProblemItem struct {
	ID          string   `json:"id"`
	ParentID    string   `json:"parentId"`
	Type        string   `json:"type"`
	Difficulty  string   `json:"difficulty"`
	Skill       string   `json:"skill"`
	Section     string   `json:"section,omitempty"`
	Prompt      Text     `json:"prompt,omitzero"`
	Choices     []Choice `json:"choices,omitempty"`
	Explanation Text     `json:"explanation,omitzero"`
	Answer      any      `json:"answer,omitempty"`
	Partition   string   `json:"partition"`
}

// CheckAnswer reports whether the submitted answer equals the stored one.
// Both sides are compared as decoded JSON values.
func (p ProblemItem) CheckAnswer(answer any) bool {
	if p.Answer == nil || answer == nil {
		return false
	}
	return reflect.DeepEqual(p.Answer, answer)
}

// StringField returns the trimmed string stored under key, or "" when the
// value is missing or not a string. Numeric ids are rendered as text.
func StringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(formatNumber(v))
	case int:
		return strings.TrimSpace(formatNumber(float64(v)))
	default:
		return ""
	}
}

// Slug lower-cases s and collapses anything outside [a-z0-9] into dashes.
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
