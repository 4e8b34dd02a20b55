package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/codename-co/runbox/internal/apperror"
	"github.com/codename-co/runbox/internal/model"
	"github.com/codename-co/runbox/internal/protocol"
	"github.com/codename-co/runbox/internal/service"
)

// RunAPI is the slice of the service layer the handlers need. Tests
// substitute a mock; production passes *service.RunService.
type RunAPI interface {
	Execute(ctx context.Context, req protocol.Request) (*protocol.Result, error)
	ListRuns(ctx context.Context, limit, offset int) ([]model.Run, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ResolvePackage(name string) (*service.PackageInfo, error)
}

// ExecuteHandler handles code execution requests.
type ExecuteHandler struct {
	runs   RunAPI
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(runs RunAPI, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		runs:   runs,
		logger: logger,
	}
}

// executeRequest is the wire shape of POST /api/execute. Durations cross
// the wire in milliseconds; protocol.Request carries time.Duration.
type executeRequest struct {
	Code      string          `json:"code"`
	Language  string          `json:"language"`
	Context   map[string]any  `json:"context,omitempty"`
	Packages  []string        `json:"packages,omitempty"`
	Files     []protocol.File `json:"files,omitempty"`
	TimeoutMs int64           `json:"timeoutMs,omitempty"`
}

// executeResponse is the wire shape of the execution result. The id
// matches the requestId on progress events and the run history record.
type executeResponse struct {
	ID                string                  `json:"id"`
	OK                bool                    `json:"ok"`
	Value             json.RawMessage         `json:"value,omitempty"`
	ValueText         string                  `json:"valueText,omitempty"`
	Stdout            string                  `json:"stdout"`
	Stderr            string                  `json:"stderr"`
	Console           []protocol.ConsoleEntry `json:"consoleEntries,omitempty"`
	OutputFiles       []protocol.File         `json:"outputFiles,omitempty"`
	PackagesInstalled []string                `json:"packagesInstalled,omitempty"`
	ExecutionTimeMs   int64                   `json:"executionTimeMs"`
	ErrorKind         string                  `json:"errorKind,omitempty"`
	Message           string                  `json:"message,omitempty"`
}

// HandleExecute processes POST /api/execute.
//
// A failed script still returns 200: the API call succeeded, the result
// describes the script failure. Non-2xx statuses are reserved for
// problems with the request itself or with the service.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	result, err := h.runs.Execute(r.Context(), protocol.Request{
		Code:     req.Code,
		Language: protocol.Language(req.Language),
		Context:  req.Context,
		Packages: req.Packages,
		Files:    req.Files,
		Timeout:  time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		ID:                result.ID,
		OK:                result.OK,
		Value:             result.Value,
		ValueText:         result.ValueText,
		Stdout:            result.Stdout,
		Stderr:            result.Stderr,
		Console:           result.Console,
		OutputFiles:       result.OutputFiles,
		PackagesInstalled: result.PackagesInstalled,
		ExecutionTimeMs:   result.Duration.Milliseconds(),
		ErrorKind:         string(result.ErrKind),
		Message:           result.Message,
	})
}
