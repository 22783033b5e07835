package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/learnpalm/practice/internal/models"
	"github.com/learnpalm/practice/internal/problems"
)

// ErrEmptyDocument is returned for documents that carry no question at all.
var ErrEmptyDocument = errors.New("empty document")

// DocumentID returns the document's own id, or a content hash when it has
// none. It returns "" if the document cannot be serialized.
func DocumentID(doc map[string]any) string {
	if id := models.StringField(doc, "id"); id != "" {
		return id
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	s := sha1.Sum(payload)
	return hex.EncodeToString(s[:])
}

// Validate rejects documents that would normalize to nothing useful: empty
// documents and documents whose embedded question list is empty.
func Validate(doc map[string]any) error {
	if len(doc) == 0 {
		return ErrEmptyDocument
	}
	items := problems.Normalize(models.NewRawDocument("", doc), "", "")
	if len(items) == 0 {
		return errors.New("document embeds an empty question list")
	}
	for _, item := range items {
		if !item.Prompt.IsZero() || len(item.Choices) > 0 {
			return nil
		}
	}
	return errors.New("document has no prompt or choices")
}

// Stamp returns a shallow copy of doc with the ingest time recorded.
func Stamp(doc map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["ingestedAt"] = now.UTC().Format(time.RFC3339)
	return out
}

// ParseTimestamp accepts RFC 3339 and the legacy "2006-01-02 15:04:05"
// layout. Unparseable input yields the zero time.
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}

	return time.Time{}
}
