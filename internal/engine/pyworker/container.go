package pyworker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// containerWorkdir is where the harness keeps the virtual filesystem inside
// the container; it is backed by a tmpfs so the root filesystem can stay
// read-only.
const containerWorkdir = "/tmp/runbox"

// containerTransport runs the harness inside a Docker container: no network,
// read-only root filesystem, memory and CPU limits enforced by the runtime.
// kill() force-removes the container, which is the destructive-cancellation
// primitive for this transport.
type containerTransport struct {
	config      Config
	logger      *slog.Logger
	cli         *client.Client
	containerID string
	closeHijack func()
	stderr      bytes.Buffer
}

func newContainerTransport(cfg Config, logger *slog.Logger) (*containerTransport, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	// Make sure the image is pulled before the first execution needs it.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	io.Copy(io.Discard, reader)

	return &containerTransport{config: cfg, logger: logger, cli: cli}, nil
}

func (t *containerTransport) start(ctx context.Context) (io.WriteCloser, io.Reader, error) {
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   t.config.MemoryLimit,
			NanoCPUs: int64(t.config.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
		Tmpfs: map[string]string{
			"/tmp": "rw,size=64m",
		},
	}

	resp, err := t.cli.ContainerCreate(ctx, &container.Config{
		Image:        t.config.Image,
		Cmd:          []string{"python3", "-u", "-c", pythonHarness},
		Env:          []string{"RUNBOX_WORKDIR=" + containerWorkdir, "PYTHONUNBUFFERED=1"},
		User:         "nobody",
		WorkingDir:   "/tmp",
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
	}, hostConfig, nil, nil, "")
	if err != nil {
		return nil, nil, fmt.Errorf("ContainerCreate failed: %w", err)
	}
	t.containerID = resp.ID

	attach, err := t.cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		t.removeContainer()
		return nil, nil, fmt.Errorf("failed to attach to container: %w", err)
	}
	t.closeHijack = attach.Close

	if err := t.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		attach.Close()
		t.removeContainer()
		return nil, nil, fmt.Errorf("ContainerStart failed: %w", err)
	}

	// The attach stream multiplexes stdout and stderr; demultiplex it so
	// the protocol reader sees a clean stdout.
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, &limitedWriter{w: &t.stderr, remaining: t.config.MaxOutputBytes}, attach.Reader)
		pw.CloseWithError(err)
	}()

	t.logger.Debug("python harness container started", slog.String("id", resp.ID[:12]))
	return attach.Conn, pr, nil
}

func (t *containerTransport) kill() error {
	if t.closeHijack != nil {
		t.closeHijack()
		t.closeHijack = nil
	}
	t.removeContainer()
	return nil
}

func (t *containerTransport) diagnostics() string {
	return t.stderr.String()
}

// removeContainer force removes the container, ignoring errors from
// already-gone containers.
func (t *containerTransport) removeContainer() {
	if t.containerID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.cli.ContainerRemove(ctx, t.containerID, container.RemoveOptions{Force: true}); err != nil {
		t.logger.Error("failed to remove container",
			slog.String("id", t.containerID), slog.String("error", err.Error()))
	}
	t.containerID = ""
}
