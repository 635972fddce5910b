// Package api serves stored trending data and the manual scrape trigger over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"ghtrending/db"
	"ghtrending/metrics"
	"ghtrending/models"
)

const readTimeout = 60 * time.Second

// Store defines the read operations needed by the API
type Store interface {
	ListTrending(ctx context.Context, q models.TrendingQuery) ([]models.TrendingEntry, error)
	GetProjectByID(ctx context.Context, id int64) (*models.Project, error)
	ListProjectHistory(ctx context.Context, projectID int64, limit int) ([]models.TrendingSnapshot, error)
	GetSummaryByProjectID(ctx context.Context, projectID int64) (*models.Summary, error)
	Ping(ctx context.Context) error
}

// CycleRunner runs one scrape cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context, language string, since models.TimeWindow) (int, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	store   Store
	runner  CycleRunner
	metrics *metrics.Manager
	logger  *zap.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(store Store, runner CycleRunner, m *metrics.Manager, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		store:   store,
		runner:  runner,
		metrics: m,
		logger:  logger,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger, m))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.healthCheck)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(readTimeout))
			r.Get("/trending", h.getTrending)
			r.Get("/projects/{id}", h.getProject)
			r.Get("/projects/{id}/history", h.getProjectHistory)
			r.Get("/projects/{id}/summary", h.getProjectSummary)
		})
		// a cycle is bounded by the fetch timeout, not the read timeout
		r.Post("/fetch", h.triggerFetch)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getTrending lists snapshots newest batch first, then by rank.
// GET /api/trending?limit=N&language=L
func (h *Handler) getTrending(w http.ResponseWriter, r *http.Request) {
	q := models.NewTrendingQuery(r.URL.Query().Get("language"), queryInt(r, "limit"))

	entries, err := h.store.ListTrending(r.Context(), q)
	if err != nil {
		h.internalError(w, "Failed to list trending", err)
		return
	}
	if entries == nil {
		entries = []models.TrendingEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// GET /api/projects/{id}
func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	project, err := h.store.GetProjectByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			respondWithError(w, http.StatusNotFound, "Project not found")
			return
		}
		h.internalError(w, "Failed to get project", err)
		return
	}
	respondWithJSON(w, http.StatusOK, project)
}

// GET /api/projects/{id}/history?limit=N
func (h *Handler) getProjectHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	if _, err := h.store.GetProjectByID(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			respondWithError(w, http.StatusNotFound, "Project not found")
			return
		}
		h.internalError(w, "Failed to get project", err)
		return
	}

	history, err := h.store.ListProjectHistory(r.Context(), id, queryInt(r, "limit"))
	if err != nil {
		h.internalError(w, "Failed to list project history", err)
		return
	}
	if history == nil {
		history = []models.TrendingSnapshot{}
	}
	respondWithJSON(w, http.StatusOK, history)
}

// GET /api/projects/{id}/summary
func (h *Handler) getProjectSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	summary, err := h.store.GetSummaryByProjectID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrSummaryNotFound) {
			respondWithError(w, http.StatusNotFound, "Summary not found")
			return
		}
		h.internalError(w, "Failed to get summary", err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// triggerFetch runs one scrape cycle synchronously.
// POST /api/fetch?language=L&since=daily|weekly|monthly
func (h *Handler) triggerFetch(w http.ResponseWriter, r *http.Request) {
	since, err := models.ParseTimeWindow(r.URL.Query().Get("since"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid 'since' parameter. Must be one of daily, weekly, monthly.")
		return
	}

	count, err := h.runner.RunCycle(r.Context(), r.URL.Query().Get("language"), since)
	if err != nil {
		if errors.Is(err, models.ErrCycleInProgress) {
			respondWithError(w, http.StatusConflict, "A fetch is already running")
			return
		}
		h.internalError(w, "Manual fetch failed", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"persisted_count": count})
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

func projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid project id")
		return 0, false
	}
	return id, true
}

// queryInt returns 0 when the parameter is absent or not a number.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
