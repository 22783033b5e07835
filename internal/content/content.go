// Package content serves the pass-through study material that sits next to
// the practice questions: lessons, the skill taxonomy and the glossary.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/learnpalm/practice/internal/models"
)

// Collection names in the document store.
const (
	Lessons         = "lessons"
	LessonsMetadata = "lessons_metadata"
	Taxonomy        = "taxonomy"
	Glossary        = "glossary"
)

// Store is the document-store surface the service needs.
type Store interface {
	Get(ctx context.Context, collection, id string) (map[string]any, error)
	First(ctx context.Context, collection string) (map[string]any, error)
	All(ctx context.Context, collection string) ([]map[string]any, error)
}

// LessonIndex is the lesson listing with its presentation metadata.
type LessonIndex struct {
	Lessons    []map[string]any `json:"lessons"`
	Copy       any              `json:"copy"`
	Categories any              `json:"categories"`
}

// Service reads study material from a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Lesson returns a lesson by id.
func (s *Service) Lesson(ctx context.Context, id string) (map[string]any, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: lesson id required", models.ErrInvalidRequest)
	}
	return s.store.Get(ctx, Lessons, id)
}

// Lessons returns every lesson plus the copy and categories of the
// metadata document. Missing metadata yields empty objects.
func (s *Service) Lessons(ctx context.Context) (*LessonIndex, error) {
	lessons, err := s.store.All(ctx, Lessons)
	if err != nil {
		return nil, err
	}

	idx := &LessonIndex{
		Lessons:    lessons,
		Copy:       map[string]any{},
		Categories: map[string]any{},
	}

	meta, err := s.store.First(ctx, LessonsMetadata)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return idx, nil
	case err != nil:
		return nil, err
	}

	if v, ok := meta["copy"]; ok && v != nil {
		idx.Copy = v
	}
	if v, ok := meta["categories"]; ok && v != nil {
		idx.Categories = v
	}
	return idx, nil
}

// Taxonomy returns the taxonomy document.
func (s *Service) Taxonomy(ctx context.Context) (map[string]any, error) {
	return s.store.First(ctx, Taxonomy)
}

// Glossary returns the glossary terms. A glossary document without a
// terms array yields an empty list.
func (s *Service) Glossary(ctx context.Context) ([]any, error) {
	doc, err := s.store.First(ctx, Glossary)
	if err != nil {
		return nil, err
	}
	terms, ok := doc["terms"].([]any)
	if !ok {
		return []any{}, nil
	}
	return terms, nil
}
