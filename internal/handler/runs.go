package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RunsHandler serves the run history endpoints.
type RunsHandler struct {
	runs   RunAPI
	logger *slog.Logger
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(runs RunAPI, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{
		runs:   runs,
		logger: logger,
	}
}

// HandleList serves GET /api/runs?limit=N&offset=M.
// Unparseable pagination values fall back to defaults rather than erroring.
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	runs, err := h.runs.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"count":  len(runs),
		"limit":  limit,
		"offset": offset,
	})
}

// HandleGetByID serves GET /api/runs/{id}.
func (h *RunsHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}
