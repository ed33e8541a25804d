package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ielts-practice-service/internal/app"
	"ielts-practice-service/internal/domain"
)

// Handler exposes the attempt lifecycle and dashboard aggregation over REST.
// Identity is resolved upstream; callers pass the user ID in X-User-ID.
type Handler struct {
	attempts  *app.AttemptService
	dashboard *app.DashboardService
	log       *zap.Logger
}

func NewHandler(attempts *app.AttemptService, dashboard *app.DashboardService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{attempts: attempts, dashboard: dashboard, log: log}
}

// Router assembles the chi mux with CORS and recovery middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/attempts", func(r chi.Router) {
			r.Post("/start", h.startAttempt)
			r.Put("/{attemptID}/progress", h.saveProgress)
			r.Post("/{attemptID}/submit", h.submitAttempt)
			r.Post("/{attemptID}/cancel", h.cancelAttempt)
			r.Post("/{attemptID}/resume", h.resumeAttempt)
			r.Delete("/{attemptID}", h.deleteAttempt)
			r.Get("/{attemptID}/answers", h.listAnswers)
			r.Get("/{attemptID}/review", h.reviewAttempt)
		})
		r.Get("/dashboard/summary", h.dashboardSummary)
		r.Get("/courses", h.listCourses)
		r.Get("/courses/{examSource}/tests", h.listTests)
	})
	return r
}

type startRequest struct {
	ExamSource string `json:"examSource"`
	TestNumber string `json:"testNumber"`
	Skill      string `json:"skill"`
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	attempt, err := h.attempts.StartOrResume(r.Context(), domain.AttemptKey{
		UserID:     userID,
		ExamSource: req.ExamSource,
		TestNumber: req.TestNumber,
		Skill:      req.Skill,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, attempt)
}

type progressRequest struct {
	TimeLeft    *int             `json:"timeLeft"`
	CurrentPart *int             `json:"currentPart"`
	Answers     map[int64]string `json:"answers"`
}

func (h *Handler) saveProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	attemptID, ok := h.attemptID(w, r)
	if !ok {
		return
	}
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	if err := h.attempts.SaveProgress(r.Context(), attemptID, userID, req.TimeLeft, req.CurrentPart, req.Answers); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	Answers map[int64]string `json:"answers"`
}

func (h *Handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	attemptID, ok := h.attemptID(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return
	}
	result, err := h.attempts.Submit(r.Context(), attemptID, userID, req.Answers)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) cancelAttempt(w http.ResponseWriter, r *http.Request) {
	h.simpleAttemptOp(w, r, h.attempts.Cancel)
}

func (h *Handler) resumeAttempt(w http.ResponseWriter, r *http.Request) {
	h.simpleAttemptOp(w, r, h.attempts.Resume)
}

func (h *Handler) deleteAttempt(w http.ResponseWriter, r *http.Request) {
	h.simpleAttemptOp(w, r, h.attempts.Delete)
}

func (h *Handler) listAnswers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	attemptID, ok := h.attemptID(w, r)
	if !ok {
		return
	}
	answers, err := h.attempts.ListAnswers(r.Context(), attemptID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, answers)
}

func (h *Handler) reviewAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	attemptID, ok := h.attemptID(w, r)
	if !ok {
		return
	}
	review, err := h.attempts.Review(r.Context(), attemptID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, review)
}

func (h *Handler) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	search := r.URL.Query().Get("search")

	summary, err := h.dashboard.Summary(r.Context(), userID, page, size, search)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) listCourses(w http.ResponseWriter, r *http.Request) {
	sources, err := h.dashboard.ExamSources(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sources)
}

func (h *Handler) listTests(w http.ResponseWriter, r *http.Request) {
	numbers, err := h.dashboard.TestNumbers(r.Context(), chi.URLParam(r, "examSource"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, numbers)
}

// simpleAttemptOp handles the operations that take only the attempt ID and
// return no body.
func (h *Handler) simpleAttemptOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, attemptID int64, userID uuid.UUID) error) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	attemptID, ok := h.attemptID(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), attemptID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		h.writeError(w, domain.ErrInvalidInput)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, domain.ErrInvalidInput)
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) attemptID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "attemptID"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, domain.ErrInvalidInput)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warn("encode response failed", zap.Error(err))
	}
}

type errorPayload struct {
	Error string `json:"error"`
}

// writeError maps the domain error families onto HTTP statuses. Unexpected
// errors become an opaque 500 so internals never leak to clients.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case app.IsNotFound(err):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
		message = err.Error()
	default:
		h.log.Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, status, errorPayload{Error: message})
}
