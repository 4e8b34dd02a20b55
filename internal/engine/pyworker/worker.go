// Package pyworker implements the persistent Python engine: one long-lived
// isolated interpreter reused across calls, with a per-request virtual
// filesystem, on-demand package installation, and destructive cancellation.
//
// The interpreter runs a harness program (see harness.go) in a separate
// execution unit — a child process in its own process group, or a Docker
// container — and the engine talks to it over an NDJSON protocol on
// stdin/stdout. Because arbitrary guest Python cannot be interrupted
// reliably, a timed-out execution unit is destroyed outright; the next call
// pays a fresh cold start.
package pyworker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/codename-co/runbox/internal/engine"
	"github.com/codename-co/runbox/internal/protocol"
)

// State is the engine lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateExecuting State = "executing"
	StateError     State = "error"
)

// argvHint is appended to non-zero-exit failures: in practice the most
// common cause is a script whose argument parser rejected the synthesized
// flags, and that looks like a crash to the caller.
const argvHint = "note: context values are passed to the script as command-line flags " +
	"(--key value; boolean true becomes a bare --key), so argument parsing may be the cause"

// Engine is the persistent Python worker engine.
type Engine struct {
	config Config
	logger *slog.Logger

	// mu serializes Initialize, Execute and Terminate: the engine has
	// exactly one execution unit and supports one in-flight execution.
	mu sync.Mutex

	stateMu sync.Mutex
	state   State

	tr      transport
	stdin   io.WriteCloser
	events  chan event
	workdir string
	ownsDir bool

	progressMu sync.Mutex
	onProgress func(requestID, message string)
}

// New creates the engine without starting the interpreter; the first Execute
// (or an explicit Initialize) pays the cold-start cost.
func New(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{config: cfg, logger: logger, state: StateIdle}
}

// SetProgressFunc registers the callback invoked for harness progress
// signals. Intended for the runner manager's fan-out.
func (e *Engine) SetProgressFunc(fn func(requestID, message string)) {
	e.progressMu.Lock()
	e.onProgress = fn
	e.progressMu.Unlock()
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// CancellationMode reports that cancelling this engine destroys its
// execution unit.
func (e *Engine) CancellationMode() engine.CancellationMode {
	return engine.Destructive
}

// Initialize boots the interpreter runtime. It is idempotent: if the worker
// is already live it returns immediately.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initLocked(ctx, "")
}

func (e *Engine) initLocked(ctx context.Context, requestID string) error {
	switch e.State() {
	case StateReady, StateExecuting:
		return nil
	}
	e.setState(StateLoading)
	e.emitProgress(requestID, "loading runtime")

	workdir := e.config.WorkDir
	e.ownsDir = false
	if workdir == "" {
		dir, err := os.MkdirTemp("", "runbox-worker-*")
		if err != nil {
			e.setState(StateError)
			return fmt.Errorf("creating worker dir: %w", err)
		}
		workdir = dir
		e.ownsDir = true
	}
	e.workdir = workdir

	tr, err := e.newTransport(workdir)
	if err != nil {
		e.setState(StateError)
		return err
	}

	stdin, stdout, err := tr.start(ctx)
	if err != nil {
		e.setState(StateError)
		return err
	}

	events := make(chan event, 64)
	go readEvents(stdout, events)

	// Cold start: wait for the harness ready signal.
	select {
	case ev, ok := <-events:
		if !ok || ev.Type != eventReady {
			tr.kill()
			e.setState(StateError)
			return fmt.Errorf("python harness failed to start: %s", strings.TrimSpace(tr.diagnostics()))
		}
	case <-time.After(e.config.InitTimeout):
		tr.kill()
		e.setState(StateError)
		return fmt.Errorf("python harness not ready after %s", e.config.InitTimeout)
	case <-ctx.Done():
		tr.kill()
		e.setState(StateError)
		return ctx.Err()
	}

	e.tr = tr
	e.stdin = stdin
	e.events = events
	e.setState(StateReady)
	e.logger.Info("python worker ready", slog.String("transport", string(e.config.Transport)))
	return nil
}

func (e *Engine) newTransport(workdir string) (transport, error) {
	switch e.config.Transport {
	case TransportContainer:
		return newContainerTransport(e.config, e.logger)
	default:
		return newProcessTransport(e.config, workdir, e.logger), nil
	}
}

// Execute runs one request on the shared interpreter. Guest failures,
// timeouts and worker crashes all come back as Result values.
func (e *Engine) Execute(ctx context.Context, req protocol.Request) (*protocol.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	timeout := protocol.ClampTimeout(req.Timeout, e.config.MinTimeout, e.config.MaxTimeout)

	if err := e.initLocked(ctx, req.ID); err != nil {
		res := protocol.Failure(protocol.ErrRuntime, fmt.Sprintf("initializing python runtime: %v", err))
		res.Duration = time.Since(start)
		return res, nil
	}
	e.setState(StateExecuting)

	plan := buildInstallPlan(req.Packages)
	cmd := command{
		Op:       "exec",
		ID:       req.ID,
		Code:     req.Code,
		Context:  req.Context,
		Packages: plan.install,
		Files:    req.Files,
	}
	line, err := json.Marshal(cmd)
	if err != nil {
		e.setState(StateReady)
		res := protocol.Failure(protocol.ErrRuntime, fmt.Sprintf("request is not serializable: %v", err))
		res.Duration = time.Since(start)
		return res, nil
	}
	if _, err := e.stdin.Write(append(line, '\n')); err != nil {
		e.destroyLocked()
		res := protocol.Failure(protocol.ErrRuntime, fmt.Sprintf("python worker unavailable: %v", err))
		res.Duration = time.Since(start)
		return res, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-e.events:
			if !ok {
				diag := strings.TrimSpace(e.tr.diagnostics())
				e.destroyLocked()
				msg := "python worker terminated unexpectedly"
				if diag != "" {
					msg += ": " + diag
				}
				res := protocol.Failure(protocol.ErrRuntime, msg)
				res.Duration = time.Since(start)
				return res, nil
			}
			switch ev.Type {
			case eventProgress:
				e.emitProgress(req.ID, ev.Message)
			case eventResult:
				if ev.ID != req.ID {
					// Stale result from a previous, destroyed execution.
					continue
				}
				e.setState(StateReady)
				return e.buildResult(ev, plan, start), nil
			}

		case <-deadline.C:
			// Destructive cancellation: no cooperative interruption point
			// exists for arbitrary guest Python, so the execution unit is
			// destroyed. No auto-respawn; the next call reinitializes.
			e.destroyLocked()
			res := protocol.Failure(protocol.ErrTimeout,
				fmt.Sprintf("execution timed out after %s; the python runtime was destroyed and will restart on the next call", timeout))
			res.Duration = time.Since(start)
			return res, nil

		case <-ctx.Done():
			e.destroyLocked()
			res := protocol.Failure(protocol.ErrTimeout,
				fmt.Sprintf("execution cancelled after %s; the python runtime was destroyed and will restart on the next call", time.Since(start).Round(time.Millisecond)))
			res.Duration = time.Since(start)
			return res, nil
		}
	}
}

// buildResult converts a harness result event into the shared Result shape,
// attaching the install plan's notes to stderr.
func (e *Engine) buildResult(ev event, plan installPlan, start time.Time) *protocol.Result {
	stderr := ev.Stderr
	if len(plan.notes) > 0 {
		var b strings.Builder
		for _, note := range plan.notes {
			b.WriteString("[runbox] ")
			b.WriteString(note)
			b.WriteByte('\n')
		}
		stderr = b.String() + stderr
	}

	res := &protocol.Result{
		OK:                ev.OK,
		Stdout:            ev.Stdout,
		Stderr:            stderr,
		OutputFiles:       ev.Files,
		PackagesInstalled: ev.Installed,
		Duration:          time.Since(start),
	}

	if ev.OK {
		res.Value = ev.Value
		res.ValueText = ev.ValueText
		if res.ValueText == "" && len(ev.Value) > 0 {
			res.ValueText = string(ev.Value)
		}
		return res
	}

	if ev.Exit != nil && *ev.Exit != 0 {
		res.ErrKind = protocol.ErrRuntime
		msg := fmt.Sprintf("script exited with status %d", *ev.Exit)
		if cleaned := protocol.CleanTraceback(ev.Stderr); cleaned != "" {
			msg += ": " + cleaned
		}
		res.Message = msg + "\n" + argvHint
		return res
	}

	res.Message = ev.ErrMsg
	switch protocol.ErrKind(ev.ErrKind) {
	case protocol.ErrSyntax, protocol.ErrRuntime, protocol.ErrTimeout, protocol.ErrSecurity:
		res.ErrKind = protocol.ErrKind(ev.ErrKind)
	default:
		res.ErrKind = protocol.ClassifyError(ev.ErrMsg)
	}
	return res
}

// Terminate destroys the execution unit and returns the engine to idle.
// Safe to call at any time; the next Execute reinitializes lazily.
func (e *Engine) Terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyLocked()
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	e.Terminate()
	return nil
}

func (e *Engine) destroyLocked() {
	if e.stdin != nil {
		// Best effort: a live harness exits cleanly on shutdown.
		line, _ := json.Marshal(command{Op: "shutdown"})
		_, _ = e.stdin.Write(append(line, '\n'))
		_ = e.stdin.Close()
		e.stdin = nil
	}
	if e.tr != nil {
		if err := e.tr.kill(); err != nil {
			e.logger.Debug("killing worker", slog.String("error", err.Error()))
		}
		e.tr = nil
	}
	if e.ownsDir && e.workdir != "" {
		_ = os.RemoveAll(e.workdir)
		e.workdir = ""
	}
	if e.events != nil {
		// The reader goroutine may still hold buffered harness lines; drain
		// until it observes EOF and closes the channel, so it can exit.
		go func(ch <-chan event) {
			for range ch {
			}
		}(e.events)
		e.events = nil
	}
	e.setState(StateIdle)
}

func (e *Engine) emitProgress(requestID, message string) {
	e.progressMu.Lock()
	fn := e.onProgress
	e.progressMu.Unlock()
	if fn != nil {
		fn(requestID, message)
	}
}

// readEvents decodes harness NDJSON lines into events until EOF, then
// closes the channel so a waiting Execute observes worker death.
func readEvents(r io.Reader, out chan<- event) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	// Result lines can carry multi-megabyte output files.
	scanner.Buffer(make([]byte, 64*1024), 32<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		out <- ev
	}
}
