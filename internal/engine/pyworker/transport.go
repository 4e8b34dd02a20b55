package pyworker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
)

// transport spawns the harness and exposes its protocol streams. Killing a
// transport is destructive: the execution unit is destroyed, not signalled
// to stop, because arbitrary guest Python offers no reliable interruption
// point.
type transport interface {
	// start launches the harness. stdin and stdout carry the NDJSON
	// protocol once start returns.
	start(ctx context.Context) (stdin io.WriteCloser, stdout io.Reader, err error)
	// kill forcibly destroys the execution unit and everything it spawned.
	kill() error
	// diagnostics returns any captured harness stderr, for error messages.
	diagnostics() string
}

// processTransport runs the harness as a direct child process.
//
// Isolation properties: own process group (killed wholesale on cancel), no
// environment inheritance from the host process, working directory confined
// to the engine's work dir.
type processTransport struct {
	config  Config
	workdir string
	logger  *slog.Logger
	cmd     *exec.Cmd
	stderr  bytes.Buffer
}

func newProcessTransport(cfg Config, workdir string, logger *slog.Logger) *processTransport {
	return &processTransport{config: cfg, workdir: workdir, logger: logger}
}

func (t *processTransport) start(ctx context.Context) (io.WriteCloser, io.Reader, error) {
	cmd := exec.Command(t.config.PythonBin, "-u", "-c", pythonHarness)
	cmd.Dir = t.workdir
	cmd.Env = t.buildEnv()
	// The harness runs in its own process group so kill() can take down
	// any subprocess it spawned (pip, guest children) in one shot.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stderr = &limitedWriter{w: &t.stderr, remaining: t.config.MaxOutputBytes}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("opening harness stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("opening harness stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting python harness: %w", err)
	}
	t.cmd = cmd

	// Reap the child when it exits for any reason.
	go func() { _ = cmd.Wait() }()

	t.logger.Debug("python harness started",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("workdir", t.workdir),
	)
	return stdin, stdout, nil
}

func (t *processTransport) kill() error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}
	// Negative PID = kill the entire process group.
	return syscall.Kill(-t.cmd.Process.Pid, syscall.SIGKILL)
}

func (t *processTransport) diagnostics() string {
	return t.stderr.String()
}

// buildEnv constructs a minimal environment. The host environment is never
// inherited, so credentials and API keys cannot leak into guest code.
func (t *processTransport) buildEnv() []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + t.workdir,
		"TMPDIR=" + t.workdir,
		"LANG=en_US.UTF-8",
		"PYTHONUNBUFFERED=1",
		"PYTHONDONTWRITEBYTECODE=1",
		"RUNBOX_WORKDIR=" + t.workdir,
	}
}

// limitedWriter wraps a writer and stops writing after a byte limit.
// Excess data is silently discarded.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.remaining <= 0 {
		return len(p), nil
	}
	if len(p) > lw.remaining {
		p = p[:lw.remaining]
	}
	n, err := lw.w.Write(p)
	lw.remaining -= n
	if err != nil {
		return n, err
	}
	return len(p), nil
}
