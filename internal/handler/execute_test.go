package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codename-co/runbox/internal/apperror"
	"github.com/codename-co/runbox/internal/handler"
	"github.com/codename-co/runbox/internal/model"
	"github.com/codename-co/runbox/internal/protocol"
	"github.com/codename-co/runbox/internal/service"
)

// MockRunAPI implements handler.RunAPI without engines or a database.
type MockRunAPI struct {
	CapturedReq protocol.Request
	ReturnRes   *protocol.Result
	ReturnErr   error
	Runs        []model.Run
	RunsErr     error
}

func (m *MockRunAPI) Execute(_ context.Context, req protocol.Request) (*protocol.Result, error) {
	m.CapturedReq = req
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnRes, nil
}

func (m *MockRunAPI) ListRuns(_ context.Context, limit, offset int) ([]model.Run, error) {
	if m.RunsErr != nil {
		return nil, m.RunsErr
	}
	return m.Runs, nil
}

func (m *MockRunAPI) GetRun(_ context.Context, id string) (*model.Run, error) {
	for i := range m.Runs {
		if m.Runs[i].ID == id {
			return &m.Runs[i], nil
		}
	}
	return nil, apperror.NotFound("run", id)
}

func (m *MockRunAPI) ResolvePackage(name string) (*service.PackageInfo, error) {
	if name == "" {
		return nil, apperror.ValidationFailed("name", "package name is required")
	}
	return &service.PackageInfo{Name: name, Canonical: name, Class: "installable"}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestExecuteHandler_HandleExecute(t *testing.T) {
	logger := testLogger()

	t.Run("valid execution", func(t *testing.T) {
		mock := &MockRunAPI{
			ReturnRes: &protocol.Result{
				ID:        "run-123",
				OK:        true,
				Value:     json.RawMessage(`42`),
				ValueText: "42",
				Stdout:    "Hello World\n",
				Duration:  100 * time.Millisecond,
			},
		}
		h := handler.NewExecuteHandler(mock, logger)

		reqBody := `{"code":"6 * 7","language":"javascript","timeoutMs":5000}`
		req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(reqBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var res map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		// The id in the response matches the requestId on progress events.
		assert.Equal(t, "run-123", res["id"])
		assert.Equal(t, true, res["ok"])
		assert.Equal(t, "42", res["valueText"])
		assert.Equal(t, "Hello World\n", res["stdout"])
		assert.EqualValues(t, 100, res["executionTimeMs"])

		assert.Equal(t, "6 * 7", mock.CapturedReq.Code)
		assert.Equal(t, protocol.LanguageJavaScript, mock.CapturedReq.Language)
		assert.Equal(t, 5*time.Second, mock.CapturedReq.Timeout)
	})

	t.Run("failed script is still 200", func(t *testing.T) {
		mock := &MockRunAPI{
			ReturnRes: &protocol.Result{
				OK:      false,
				Stdout:  "before the crash\n",
				ErrKind: protocol.ErrRuntime,
				Message: "boom",
			},
		}
		h := handler.NewExecuteHandler(mock, logger)

		reqBody := `{"code":"throw new Error('boom')","language":"javascript"}`
		req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(reqBody))
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var res map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, false, res["ok"])
		assert.Equal(t, "runtime", res["errorKind"])
		assert.Equal(t, "before the crash\n", res["stdout"])
	})

	t.Run("invalid request body", func(t *testing.T) {
		h := handler.NewExecuteHandler(&MockRunAPI{}, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString("{not json"))
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		mock := &MockRunAPI{ReturnErr: apperror.ValidationFailed("code", "code is required")}
		h := handler.NewExecuteHandler(mock, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(`{"code":"","language":"python"}`))
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)

		var res handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "validation_error", res.Error)
	})

	t.Run("unavailable backend maps to 503", func(t *testing.T) {
		mock := &MockRunAPI{ReturnErr: apperror.Unavailable("code execution is not available")}
		h := handler.NewExecuteHandler(mock, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/execute", bytes.NewBufferString(`{"code":"1","language":"python"}`))
		rr := httptest.NewRecorder()

		h.HandleExecute(rr, req)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestRunsHandler(t *testing.T) {
	logger := testLogger()

	t.Run("list", func(t *testing.T) {
		mock := &MockRunAPI{Runs: []model.Run{
			{ID: "r1", Language: "python", Status: model.RunStatusOK},
			{ID: "r2", Language: "javascript", Status: model.RunStatusFailed, ErrKind: "timeout"},
		}}
		h := handler.NewRunsHandler(mock, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rr := httptest.NewRecorder()
		h.HandleList(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var res struct {
			Runs  []model.Run `json:"runs"`
			Count int         `json:"count"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, 2, res.Count)
		assert.Equal(t, "r1", res.Runs[0].ID)
	})

	t.Run("get by id", func(t *testing.T) {
		mock := &MockRunAPI{Runs: []model.Run{{ID: "r1", Language: "python"}}}
		h := handler.NewRunsHandler(mock, logger)

		r := chi.NewRouter()
		r.Get("/api/runs/{id}", h.HandleGetByID)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/r1", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var run model.Run
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&run))
		assert.Equal(t, "python", run.Language)
	})

	t.Run("get missing run is 404", func(t *testing.T) {
		h := handler.NewRunsHandler(&MockRunAPI{}, logger)

		r := chi.NewRouter()
		r.Get("/api/runs/{id}", h.HandleGetByID)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPackagesHandler(t *testing.T) {
	h := handler.NewPackagesHandler(&MockRunAPI{}, testLogger())

	r := chi.NewRouter()
	r.Get("/api/packages/{name}", h.HandleGet)

	req := httptest.NewRequest(http.MethodGet, "/api/packages/requests", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var info service.PackageInfo
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&info))
	assert.Equal(t, "requests", info.Name)
	assert.Equal(t, "installable", info.Class)
}
