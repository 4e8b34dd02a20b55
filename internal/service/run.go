// Package service contains the business logic layer of the application.
//
// The layering follows the usual three-tier split:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, orchestrates, records
//	Repository (data layer)  → reads/writes the database
//
// RunService sits between the HTTP handlers and two backends: the runner
// manager that actually executes code, and the repository that records
// run history. Handlers never touch either directly.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codename-co/runbox/internal/apperror"
	"github.com/codename-co/runbox/internal/model"
	"github.com/codename-co/runbox/internal/protocol"
	"github.com/codename-co/runbox/internal/pypkg"
	"github.com/codename-co/runbox/internal/repository"
)

// Validation limits.
const (
	MaxCodeLength    = 200000 // ~200KB of source
	MaxPackages      = 25
	MaxFiles         = 50
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Executor runs one request to completion. *runner.Manager satisfies this;
// tests substitute a mock.
type Executor interface {
	Execute(ctx context.Context, req protocol.Request) *protocol.Result
}

// RunService validates execution requests, dispatches them to the
// executor, and records every run in the repository.
type RunService struct {
	exec   Executor
	repo   repository.RunRepository
	logger *slog.Logger
}

// NewRunService creates a RunService. repo may be nil, in which case runs
// are executed but not recorded.
func NewRunService(exec Executor, repo repository.RunRepository, logger *slog.Logger) *RunService {
	return &RunService{
		exec:   exec,
		repo:   repo,
		logger: logger,
	}
}

// Execute validates the request, runs it, and records the outcome.
//
// Validation failures come back as domain errors for the handler to map
// to HTTP status codes. Guest failures (syntax errors, timeouts and so
// on) are NOT errors here: they come back as a Result with OK=false,
// because a script that fails is still a successful API call.
func (s *RunService) Execute(ctx context.Context, req protocol.Request) (*protocol.Result, error) {
	if s.exec == nil {
		return nil, apperror.Unavailable("code execution is not available")
	}

	if strings.TrimSpace(req.Code) == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	if len(req.Code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	switch req.Language {
	case protocol.LanguageJavaScript, protocol.LanguagePython:
	case "":
		return nil, apperror.ValidationFailed("language", "language is required")
	default:
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("unsupported language %q", req.Language))
	}

	if len(req.Packages) > 0 && req.Language != protocol.LanguagePython {
		return nil, apperror.ValidationFailed("packages",
			"packages are only supported for python")
	}
	if len(req.Packages) > MaxPackages {
		return nil, apperror.ValidationFailed("packages",
			fmt.Sprintf("at most %d packages per request", MaxPackages))
	}
	if len(req.Files) > MaxFiles {
		return nil, apperror.ValidationFailed("files",
			fmt.Sprintf("at most %d files per request", MaxFiles))
	}
	if req.Timeout < 0 {
		return nil, apperror.ValidationFailed("timeout", "timeout must not be negative")
	}

	result := s.exec.Execute(ctx, req)
	s.record(ctx, req, result)

	return result, nil
}

// record persists the run. Recording is best-effort: a history write
// failure must not turn a completed execution into an API error.
func (s *RunService) record(ctx context.Context, req protocol.Request, res *protocol.Result) {
	if s.repo == nil {
		return
	}

	status := model.RunStatusOK
	if !res.OK {
		status = model.RunStatusFailed
	}

	// The executor mints the run id on its own copy of the request and
	// echoes it on the result; that id is the one progress events carried.
	id := res.ID
	if id == "" {
		id = req.ID
	}

	run := &model.Run{
		ID:          id,
		Language:    string(req.Language),
		Status:      status,
		ErrKind:     string(res.ErrKind),
		Code:        req.Code,
		StdoutBytes: len(res.Stdout),
		StderrBytes: len(res.Stderr),
		Duration:    res.Duration,
	}

	if err := s.repo.Create(ctx, run); err != nil {
		s.logger.Error("failed to record run",
			slog.String("id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ListRuns retrieves run history with pagination, newest first.
func (s *RunService) ListRuns(ctx context.Context, limit, offset int) ([]model.Run, error) {
	if s.repo == nil {
		return nil, apperror.Unavailable("run history is not available")
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := s.repo.List(ctx, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list runs", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

// GetRun retrieves one recorded run by its ID.
func (s *RunService) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if s.repo == nil {
		return nil, apperror.Unavailable("run history is not available")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "run ID is required")
	}

	return s.repo.GetByID(ctx, id)
}

// PackageInfo describes how a python package request would be handled,
// without executing anything.
type PackageInfo struct {
	Name      string `json:"name"`
	Canonical string `json:"canonical"`
	Class     string `json:"class"`
	Reason    string `json:"reason,omitempty"`
}

// ResolvePackage classifies a python package name.
func (s *RunService) ResolvePackage(name string) (*PackageInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "package name is required")
	}

	canonical := pypkg.ResolveAlias(name)
	class := pypkg.Classify(canonical)

	info := &PackageInfo{
		Name:      name,
		Canonical: canonical,
		Class:     string(class),
	}
	if class == pypkg.Incompatible {
		info.Reason = pypkg.IncompatibleReason(canonical)
	}

	return info, nil
}
