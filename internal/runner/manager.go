// Package runner exposes the single execution entry point the rest of the
// application uses. The manager owns both engines, selects one per request
// by language, mints request ids, enforces the host-side timeout backstop,
// and fans progress events out to subscribers.
//
// Execute never propagates a Go error for guest behavior: every failure
// path resolves to a Result value.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/codename-co/runbox/internal/engine"
	"github.com/codename-co/runbox/internal/protocol"
)

// Event is one advisory progress signal, keyed by request id. Purely
// informational; correctness never depends on it.
type Event struct {
	RequestID string `json:"requestId"`
	Message   string `json:"message"`
}

// Config holds the manager's timeout policy.
type Config struct {
	// MinTimeout and MaxTimeout clamp the per-request deadline for the
	// backstop timer. They should match the engines' own ranges.
	MinTimeout time.Duration
	MaxTimeout time.Duration
	// Grace is how long past the engine's own deadline the backstop
	// waits before declaring the engine stuck and terminating it.
	Grace time.Duration
}

// DefaultConfig provides the manager's default timeout policy.
func DefaultConfig() Config {
	return Config{
		MinTimeout: 100 * time.Millisecond,
		MaxTimeout: 2 * time.Minute,
		Grace:      2 * time.Second,
	}
}

// terminator is the capability the manager needs to destroy a stuck
// engine's execution unit. The persistent worker engine implements it.
type terminator interface {
	Terminate()
}

// progressSource lets an engine push progress signals through the manager's
// fan-out.
type progressSource interface {
	SetProgressFunc(func(requestID, message string))
}

type pendingCall struct {
	result chan *protocol.Result
}

// Manager routes execution requests to the engine for their language.
type Manager struct {
	config Config
	logger *slog.Logger

	js engine.Engine
	py engine.Engine

	mu        sync.Mutex
	pending   map[string]*pendingCall
	listeners map[int]func(Event)
	nextSub   int
}

// New creates a manager owning the given engines. The manager is the only
// component holding engine references; callers interact with it alone.
func New(cfg Config, js, py engine.Engine, logger *slog.Logger) *Manager {
	m := &Manager{
		config:    cfg,
		logger:    logger,
		js:        js,
		py:        py,
		pending:   make(map[string]*pendingCall),
		listeners: make(map[int]func(Event)),
	}
	if src, ok := py.(progressSource); ok {
		src.SetProgressFunc(m.publish)
	}
	return m
}

// Execute runs one request to completion. All failures — unsupported
// language, guest errors, timeouts, engine crashes — come back as Result
// values; this method never panics or returns an error.
func (m *Manager) Execute(ctx context.Context, req protocol.Request) *protocol.Result {
	if req.ID == "" {
		req.ID = xid.New().String()
	}

	eng := m.engineFor(req.Language)
	if eng == nil {
		res := protocol.Failure(protocol.ErrRuntime,
			fmt.Sprintf("unsupported language %q", req.Language))
		res.ID = req.ID
		return res
	}

	timeout := protocol.ClampTimeout(req.Timeout, m.config.MinTimeout, m.config.MaxTimeout)
	req.Timeout = timeout

	pc := &pendingCall{result: make(chan *protocol.Result, 1)}
	m.mu.Lock()
	m.pending[req.ID] = pc
	m.mu.Unlock()

	m.publish(req.ID, "running script")
	m.logger.Info("executing request",
		slog.String("id", req.ID),
		slog.String("language", string(req.Language)),
		slog.Duration("timeout", timeout),
	)

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		res, err := eng.Execute(execCtx, req)
		if err != nil {
			// Host-side fault; still resolves to a value for the caller.
			res = protocol.Failure(protocol.ErrRuntime, err.Error())
		}
		// Buffered send: if the backstop already resolved this call, the
		// stale result is dropped with the pending entry.
		pc.result <- res
	}()

	// The backstop fires only if the engine's own deadline failed to. For
	// the worker engine that means destroying the execution unit outright.
	backstop := time.NewTimer(timeout + m.config.Grace)
	defer backstop.Stop()

	select {
	case res := <-pc.result:
		// Every result carries the id the run executed under, so the
		// response, progress events and run history all correlate.
		res.ID = req.ID
		m.resolve(req.ID)
		m.publish(req.ID, "result")
		m.logResult(req.ID, res)
		return res

	case <-backstop.C:
		m.resolve(req.ID)
		m.publish(req.ID, "result")
		if term, ok := eng.(terminator); ok {
			term.Terminate()
		}
		m.logger.Warn("request exceeded backstop, engine terminated",
			slog.String("id", req.ID), slog.Duration("timeout", timeout))
		res := protocol.Failure(protocol.ErrTimeout,
			fmt.Sprintf("execution timed out after %s", timeout))
		res.ID = req.ID
		return res
	}
}

func (m *Manager) engineFor(lang protocol.Language) engine.Engine {
	switch lang {
	case protocol.LanguageJavaScript:
		return m.js
	case protocol.LanguagePython:
		return m.py
	}
	return nil
}

// resolve discards the pending entry for id; a result arriving afterwards
// has nowhere to write.
func (m *Manager) resolve(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// Pending reports the number of in-flight requests.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Subscribe registers a progress listener and returns its unsubscribe
// function. Listeners are advisory; a panicking listener is isolated and
// never breaks other listeners or the execution itself.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) publish(requestID, message string) {
	m.mu.Lock()
	fns := make([]func(Event), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	ev := Event{RequestID: requestID, Message: message}
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Warn("progress listener panicked", slog.Any("panic", r))
				}
			}()
			fn(ev)
		}()
	}
}

func (m *Manager) logResult(id string, res *protocol.Result) {
	if res.OK {
		m.logger.Info("request completed",
			slog.String("id", id), slog.Duration("duration", res.Duration))
		return
	}
	m.logger.Info("request failed",
		slog.String("id", id),
		slog.String("kind", string(res.ErrKind)),
		slog.Duration("duration", res.Duration),
	)
}

// Close shuts both engines down. In-flight calls resolve through their own
// error paths.
func (m *Manager) Close() error {
	err := m.js.Close()
	if pyErr := m.py.Close(); pyErr != nil && err == nil {
		err = pyErr
	}
	return err
}
