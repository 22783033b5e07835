package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/learnpalm/practice/internal/content"
	"github.com/learnpalm/practice/internal/models"
	"github.com/learnpalm/practice/internal/problems"
)

const maxBodyBytes = 1 << 20

type problemService interface {
	Run(ctx context.Context, q problems.Query) (*problems.Result, error)
	FindByID(ctx context.Context, ref problems.ItemRef) (models.ProblemItem, error)
	Statistics(ctx context.Context) (*problems.Statistics, error)
}

type contentService interface {
	Lesson(ctx context.Context, id string) (map[string]any, error)
	Lessons(ctx context.Context) (*content.LessonIndex, error)
	Taxonomy(ctx context.Context) (map[string]any, error)
	Glossary(ctx context.Context) ([]any, error)
}

type healthChecker interface {
	Health(ctx context.Context) error
}

type server struct {
	log      *slog.Logger
	problems problemService
	content  contentService
	health   healthChecker
}

type errorResponse struct {
	Error string `json:"error"`
}

// gradeRequest names the served item. Skill or partition, echoed from the
// problems response, pin the item when its id is shared across partitions.
type gradeRequest struct {
	ID        string `json:"id"`
	Answer    any    `json:"answer"`
	Skill     string `json:"skill"`
	Partition string `json:"partition"`
}

type gradeResponse struct {
	Correct       bool `json:"correct"`
	CorrectAnswer any  `json:"correct_answer"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	r.Get("/health", s.handleHealth)
	r.Get("/problems", s.handleProblems)
	r.Post("/grade", s.handleGrade)
	r.Get("/statistics", s.handleStatistics)
	r.Get("/lessons", s.handleLessons)
	r.Get("/lessons/{id}", s.handleLesson)
	r.Get("/lesson", s.handleLesson)
	r.Get("/taxonomy", s.handleTaxonomy)
	r.Get("/glossary", s.handleGlossary)

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.health.Health(ctx); err != nil {
		s.log.Warn("health check failed", slog.Any("err", err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleProblems(w http.ResponseWriter, r *http.Request) {
	qp := r.URL.Query()

	questionLang, err := problems.ParseLanguage(qp.Get("questionLang"))
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	explanationLang, err := problems.ParseLanguage(qp.Get("explanationLang"))
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	q := problems.Query{
		Skill:               strings.TrimSpace(qp.Get("skill")),
		Type:                strings.TrimSpace(qp.Get("type")),
		Difficulty:          strings.TrimSpace(qp.Get("difficulty")),
		QuestionLanguage:    questionLang,
		ExplanationLanguage: explanationLang,
	}

	s.log.Info("get problems",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("skill", q.Skill),
		slog.String("type", q.Type),
		slog.String("difficulty", q.Difficulty),
		slog.String("question_lang", questionLang),
		slog.String("explanation_lang", explanationLang),
	)

	result, err := s.problems.Run(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || isBlank(req.Answer) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing question id or answer"})
		return
	}

	item, err := s.problems.FindByID(r.Context(), problems.ItemRef{
		ID:        req.ID,
		Skill:     req.Skill,
		Partition: req.Partition,
	})
	if err != nil {
		s.writeError(w, r, err, "question not found")
		return
	}

	writeJSON(w, http.StatusOK, gradeResponse{
		Correct:       item.CheckAnswer(req.Answer),
		CorrectAnswer: item.Answer,
	})
}

func (s *server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.problems.Statistics(r.Context())
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleLessons(w http.ResponseWriter, r *http.Request) {
	idx, err := s.content.Lessons(r.Context())
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

func (s *server) handleLesson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}

	lesson, err := s.content.Lesson(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "lesson not found")
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (s *server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	taxonomy, err := s.content.Taxonomy(r.Context())
	if err != nil {
		s.writeError(w, r, err, "taxonomy not found")
		return
	}
	writeJSON(w, http.StatusOK, taxonomy)
}

func (s *server) handleGlossary(w http.ResponseWriter, r *http.Request) {
	terms, err := s.content.Glossary(r.Context())
	if err != nil {
		s.writeError(w, r, err, "glossary not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"glossary": terms})
}

// writeError maps an error class to a status. Only invalid-request messages
// are echoed to the client; everything else gets a fixed message.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	reqID := middleware.GetReqID(r.Context())

	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNotFound):
		if notFound == "" {
			notFound = "not found"
		}
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFound})
	case errors.Is(err, models.ErrStoreUnavailable):
		s.log.Error("store unavailable", slog.String("request_id", reqID), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "store unavailable"})
	default:
		s.log.Error("request failed", slog.String("request_id", reqID), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
