package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codename-co/runbox/internal/engine"
	"github.com/codename-co/runbox/internal/protocol"
)

type mockEngine struct {
	mode      engine.CancellationMode
	executeFn func(ctx context.Context, req protocol.Request) (*protocol.Result, error)

	mu         sync.Mutex
	lastReq    protocol.Request
	terminated bool
	progressFn func(requestID, message string)
}

func (m *mockEngine) Execute(ctx context.Context, req protocol.Request) (*protocol.Result, error) {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.executeFn != nil {
		return m.executeFn(ctx, req)
	}
	return &protocol.Result{OK: true, ValueText: "ok"}, nil
}

func (m *mockEngine) CancellationMode() engine.CancellationMode { return m.mode }

func (m *mockEngine) Close() error { return nil }

func (m *mockEngine) Terminate() {
	m.mu.Lock()
	m.terminated = true
	m.mu.Unlock()
}

func (m *mockEngine) SetProgressFunc(fn func(requestID, message string)) {
	m.progressFn = fn
}

func (m *mockEngine) wasTerminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}

func (m *mockEngine) requestID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq.ID
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestManager(js, py *mockEngine) *Manager {
	cfg := DefaultConfig()
	cfg.Grace = 200 * time.Millisecond
	return New(cfg, js, py, testLogger())
}

func TestManager_RoutesByLanguage(t *testing.T) {
	js := &mockEngine{mode: engine.Cooperative, executeFn: func(context.Context, protocol.Request) (*protocol.Result, error) {
		return &protocol.Result{OK: true, ValueText: "from js"}, nil
	}}
	py := &mockEngine{mode: engine.Destructive, executeFn: func(context.Context, protocol.Request) (*protocol.Result, error) {
		return &protocol.Result{OK: true, ValueText: "from py"}, nil
	}}
	m := newTestManager(js, py)
	defer m.Close()

	res := m.Execute(context.Background(), protocol.Request{Code: "1", Language: protocol.LanguageJavaScript})
	require.True(t, res.OK)
	assert.Equal(t, "from js", res.ValueText)

	res = m.Execute(context.Background(), protocol.Request{Code: "1", Language: protocol.LanguagePython})
	require.True(t, res.OK)
	assert.Equal(t, "from py", res.ValueText)
}

func TestManager_UnsupportedLanguage(t *testing.T) {
	m := newTestManager(&mockEngine{}, &mockEngine{})
	defer m.Close()

	res := m.Execute(context.Background(), protocol.Request{Code: "1", Language: "ruby"})
	require.False(t, res.OK)
	assert.Equal(t, protocol.ErrRuntime, res.ErrKind)
	assert.Contains(t, res.Message, "unsupported language")
}

func TestManager_MintsRequestID(t *testing.T) {
	js := &mockEngine{}
	m := newTestManager(js, &mockEngine{})
	defer m.Close()

	res := m.Execute(context.Background(), protocol.Request{Code: "1", Language: protocol.LanguageJavaScript})
	require.NotEmpty(t, js.requestID())
	// The minted id must come back to the caller, not stay on the
	// manager's copy of the request.
	assert.Equal(t, js.requestID(), res.ID)

	res = m.Execute(context.Background(), protocol.Request{ID: "fixed", Code: "1", Language: protocol.LanguageJavaScript})
	assert.Equal(t, "fixed", js.requestID())
	assert.Equal(t, "fixed", res.ID)
}

func TestManager_EngineErrorBecomesResult(t *testing.T) {
	js := &mockEngine{executeFn: func(context.Context, protocol.Request) (*protocol.Result, error) {
		return nil, errors.New("runtime pool exhausted")
	}}
	m := newTestManager(js, &mockEngine{})
	defer m.Close()

	res := m.Execute(context.Background(), protocol.Request{Code: "1", Language: protocol.LanguageJavaScript})
	require.False(t, res.OK)
	assert.Equal(t, protocol.ErrRuntime, res.ErrKind)
	assert.Contains(t, res.Message, "pool exhausted")
}

func TestManager_BackstopTerminatesStuckEngine(t *testing.T) {
	py := &mockEngine{mode: engine.Destructive, executeFn: func(ctx context.Context, _ protocol.Request) (*protocol.Result, error) {
		// Simulate an engine whose own deadline never fires.
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	m := newTestManager(&mockEngine{}, py)
	defer m.Close()

	res := m.Execute(context.Background(), protocol.Request{
		Code:     "while True: pass",
		Language: protocol.LanguagePython,
		Timeout:  100 * time.Millisecond,
	})
	require.False(t, res.OK)
	assert.Equal(t, protocol.ErrTimeout, res.ErrKind)
	assert.Contains(t, res.Message, "timed out")
	assert.NotEmpty(t, res.ID)
	assert.True(t, py.wasTerminated())
	assert.Equal(t, 0, m.Pending())
}

func TestManager_ProgressFanOut(t *testing.T) {
	py := &mockEngine{executeFn: func(_ context.Context, req protocol.Request) (*protocol.Result, error) {
		return &protocol.Result{OK: true}, nil
	}}
	m := newTestManager(&mockEngine{}, py)
	defer m.Close()

	var mu sync.Mutex
	var got []Event
	unsubscribe := m.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	m.Execute(context.Background(), protocol.Request{ID: "r1", Code: "1", Language: protocol.LanguagePython})

	mu.Lock()
	require.NotEmpty(t, got)
	assert.Equal(t, "r1", got[0].RequestID)
	assert.Equal(t, "running script", got[0].Message)
	seen := len(got)
	mu.Unlock()

	unsubscribe()
	m.Execute(context.Background(), protocol.Request{Code: "1", Language: protocol.LanguagePython})

	mu.Lock()
	assert.Len(t, got, seen)
	mu.Unlock()
}

func TestManager_PanickingListenerIsIsolated(t *testing.T) {
	m := newTestManager(&mockEngine{}, &mockEngine{})
	defer m.Close()

	var mu sync.Mutex
	var calls int
	m.Subscribe(func(Event) { panic("bad listener") })
	m.Subscribe(func(Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	res := m.Execute(context.Background(), protocol.Request{Code: "1", Language: protocol.LanguageJavaScript})
	require.True(t, res.OK)

	mu.Lock()
	assert.Greater(t, calls, 0)
	mu.Unlock()
}

func TestManager_WorkerProgressIsForwarded(t *testing.T) {
	py := &mockEngine{}
	py.executeFn = func(_ context.Context, req protocol.Request) (*protocol.Result, error) {
		if py.progressFn != nil {
			py.progressFn(req.ID, "installing package: numpy")
		}
		return &protocol.Result{OK: true}, nil
	}
	m := newTestManager(&mockEngine{}, py)
	defer m.Close()

	var mu sync.Mutex
	var messages []string
	m.Subscribe(func(ev Event) {
		mu.Lock()
		messages = append(messages, ev.Message)
		mu.Unlock()
	})

	m.Execute(context.Background(), protocol.Request{Code: "1", Language: protocol.LanguagePython})

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, messages, "installing package: numpy")
}
