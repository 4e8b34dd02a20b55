// Package jsvm implements the ephemeral JavaScript engine: every call gets a
// brand-new isolated interpreter, runs to completion or interruption, and the
// interpreter is discarded. Nothing survives between calls.
//
// The interpreter is goja, a pure-Go ECMAScript implementation. Guest code
// sees no host globals, no filesystem, no network and no timers — only the
// injected console object and the request's context variables.
package jsvm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"

	"github.com/codename-co/runbox/internal/engine"
	"github.com/codename-co/runbox/internal/protocol"
)

// errDeadline is the sentinel passed to the interpreter interrupt; its text
// feeds the error classifier.
var errDeadline = errors.New("execution timed out")

// Engine is the ephemeral JavaScript engine.
type Engine struct {
	config Config
	logger *slog.Logger
	pool   *pool
}

// New creates the engine and starts its interpreter pre-warm pool.
func New(cfg Config, logger *slog.Logger) *Engine {
	e := &Engine{
		config: cfg,
		logger: logger,
		pool:   newPool(cfg, logger),
	}
	e.pool.start()
	return e
}

// CancellationMode reports that this engine interrupts cooperatively, at
// interpreter-checked instruction boundaries.
func (e *Engine) CancellationMode() engine.CancellationMode {
	return engine.Cooperative
}

// Close discards the pre-warmed interpreters.
func (e *Engine) Close() error {
	e.pool.stop()
	return nil
}

// Execute runs one request in a fresh interpreter. All guest failures are
// returned inside the Result; the error return is reserved for host faults
// and is currently always nil.
func (e *Engine) Execute(ctx context.Context, req protocol.Request) (*protocol.Result, error) {
	start := time.Now()
	timeout := protocol.ClampTimeout(req.Timeout, e.config.MinTimeout, e.config.MaxTimeout)

	vm := e.pool.get()
	rec := newConsoleRecorder(start, e.config.MaxConsoleBytes)
	if err := rec.install(vm); err != nil {
		return e.failure(protocol.ErrRuntime, fmt.Sprintf("installing console: %v", err), rec, start), nil
	}

	if res := e.injectContext(vm, req.Context, rec, start); res != nil {
		return res, nil
	}

	// Cooperative deadline: the interrupt fires at interpreter-checked
	// points, so a single long uninterruptible host call can overrun it,
	// but ordinary guest loops cannot.
	watchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	finished := make(chan struct{})
	go func() {
		select {
		case <-watchCtx.Done():
			vm.Interrupt(errDeadline)
		case <-finished:
		}
	}()

	val, runErr := vm.RunString(rewrite(req.Code))
	close(finished)

	// The interpreter is discarded on every exit path below; it is never
	// returned to the pool.
	if runErr != nil {
		return e.classifyRunError(runErr, timeout, rec, start), nil
	}

	res := &protocol.Result{
		OK:       true,
		Stdout:   rec.stdout(),
		Stderr:   rec.stderr(),
		Console:  rec.entries,
		Duration: time.Since(start),
	}

	if val != nil && !goja.IsUndefined(val) {
		exported := val.Export()
		res.ValueText = protocol.FormatValue(exported)
		if b, err := json.Marshal(exported); err == nil {
			if len(b) > e.config.MaxResultBytes {
				return e.failure(protocol.ErrRuntime,
					fmt.Sprintf("result value exceeds %d bytes", e.config.MaxResultBytes), rec, start), nil
			}
			res.Value = b
		}
	}

	e.logger.Debug("script completed",
		slog.Duration("duration", res.Duration),
		slog.Int("consoleEntries", len(res.Console)),
	)
	return res, nil
}

// injectContext evaluates each context value into a guest global. Values are
// serialized to a guest literal first; a non-serializable value is a runtime
// failure, not a crash.
func (e *Engine) injectContext(vm *goja.Runtime, context map[string]any, rec *consoleRecorder, start time.Time) *protocol.Result {
	for key, value := range context {
		lit, err := json.Marshal(value)
		if err != nil {
			return e.failure(protocol.ErrRuntime,
				fmt.Sprintf("context variable %q is not serializable: %v", key, err), rec, start)
		}
		keyLit, _ := json.Marshal(key)
		if _, err := vm.RunString(fmt.Sprintf("globalThis[%s] = (%s);", keyLit, lit)); err != nil {
			return e.failure(protocol.ErrRuntime,
				fmt.Sprintf("injecting context variable %q: %v", key, err), rec, start)
		}
	}
	return nil
}

func (e *Engine) classifyRunError(runErr error, timeout time.Duration, rec *consoleRecorder, start time.Time) *protocol.Result {
	var (
		interrupted *goja.InterruptedError
		syntaxErr   *goja.CompilerSyntaxError
		thrown      *goja.Exception
	)
	switch {
	case errors.As(runErr, &interrupted):
		return e.failure(protocol.ErrTimeout,
			fmt.Sprintf("execution timed out after %s", timeout), rec, start)
	case errors.As(runErr, &syntaxErr):
		return e.failure(protocol.ErrSyntax, syntaxErr.Error(), rec, start)
	case errors.As(runErr, &thrown):
		msg := thrown.Value().String()
		return e.failure(protocol.ClassifyError(msg), msg, rec, start)
	default:
		return e.failure(protocol.ClassifyError(runErr.Error()), runErr.Error(), rec, start)
	}
}

// failure builds a failed result carrying every console entry captured so
// far — partial output is never discarded.
func (e *Engine) failure(kind protocol.ErrKind, message string, rec *consoleRecorder, start time.Time) *protocol.Result {
	res := protocol.Failure(kind, message)
	res.Stdout = rec.stdout()
	res.Stderr = rec.stderr()
	res.Console = rec.entries
	res.Duration = time.Since(start)
	return res
}
