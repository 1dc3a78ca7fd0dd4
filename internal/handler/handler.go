package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/answergrader/internal/grader"
	"github.com/pavelanni/answergrader/internal/handler/views"
	appI18n "github.com/pavelanni/answergrader/internal/i18n"
	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	grader       *grader.Evaluator
	history      *store.Store
	config       model.GraderConfig
	historyLimit int
}

// Option configures optional Handler dependencies.
type Option func(*Handler)

// WithHistory stores every successful evaluation in s and exposes /history.
func WithHistory(s *store.Store, limit int) Option {
	return func(h *Handler) {
		h.history = s
		h.historyLimit = limit
	}
}

// New creates a new Handler.
func New(g *grader.Evaluator, cfg model.GraderConfig, opts ...Option) (*Handler, error) {
	if g == nil {
		return nil, errors.New("grader is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.DefaultMarks <= 0 {
		cfg.DefaultMarks = model.DefaultMaxMarks
	}
	h := &Handler{grader: g, config: cfg}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/evaluate_exam", h.handleEvaluateExam)
	r.Get("/healthz", h.handleHealth)
	r.Get("/history", h.handleHistory)
	r.Get("/history/{id}", h.handleHistoryEntry)
	r.Handle("/static/*", http.StripPrefix(h.path("/static/"), http.FileServer(http.FS(views.Static))))
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the configured base path.
func (h *Handler) path(p string) string {
	return strings.TrimRight(h.config.BasePath, "/") + p
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.IndexPage(h.config).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleEvaluateExam(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	rawCount, subs, err := parseExamForm(r, h.config.MaxUploadBytes)
	if err != nil {
		slog.Warn("bad evaluation request", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.grader.EvaluateExam(r.Context(), rawCount, subs)
	switch {
	case errors.Is(err, grader.ErrInvalidInput):
		slog.Warn("invalid question count", "value", rawCount, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid question count")
		return
	case errors.Is(err, context.DeadlineExceeded):
		// The timeout middleware answers for us.
		slog.Warn("evaluation timed out", "error", err)
		return
	case err != nil:
		slog.Error("evaluation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	if h.history != nil {
		id, err := h.history.SaveEvaluation(res)
		if err != nil {
			slog.Error("failed to store evaluation", "error", err)
		} else {
			w.Header().Set("X-Evaluation-ID", id)
		}
	}

	localizeResult(r.Context(), &res)
	writeJSON(w, http.StatusOK, res)
}

// localizeResult fills the client-facing labels of res in the request language.
func localizeResult(ctx context.Context, res *model.ExamResult) {
	for i := range res.Results {
		res.Results[i].FeedbackLabel = appI18n.Feedback(ctx, res.Results[i].Feedback)
	}
	res.Summary = appI18n.Tp(ctx, "QuestionsGraded", len(res.Results))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":     "ok",
		"ocr_engine": h.config.OCREngine,
		"history":    h.history != nil,
	}
	if h.history != nil {
		n, err := h.history.EvaluationCount()
		if err != nil {
			slog.Error("failed to count evaluations", "error", err)
			resp["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["evaluations"] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	entries, err := h.history.ListEvaluations(h.historyLimit)
	if err != nil {
		slog.Error("failed to list evaluations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list evaluations")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	entry, err := h.history.GetEvaluation(id)
	if err != nil {
		slog.Error("failed to get evaluation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get evaluation")
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
