package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PackagesHandler answers "would this python package work?" queries so
// clients can warn users before submitting a run.
type PackagesHandler struct {
	runs   RunAPI
	logger *slog.Logger
}

// NewPackagesHandler creates a new PackagesHandler.
func NewPackagesHandler(runs RunAPI, logger *slog.Logger) *PackagesHandler {
	return &PackagesHandler{
		runs:   runs,
		logger: logger,
	}
}

// HandleGet serves GET /api/packages/{name}.
//
// The response classifies the name after alias resolution:
//
//	{"name":"cv2","canonical":"opencv-python","class":"prebuilt"}
func (h *PackagesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	info, err := h.runs.ResolvePackage(name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}
