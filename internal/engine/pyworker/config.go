package pyworker

import (
	"time"
)

// TransportKind selects how the worker's execution unit is isolated.
type TransportKind string

const (
	// TransportProcess runs the harness as a direct child process in its
	// own process group with a sanitized environment.
	TransportProcess TransportKind = "process"
	// TransportContainer runs the harness inside a Docker container with
	// no network and a read-only root filesystem.
	TransportContainer TransportKind = "container"
)

// Config holds the configuration for the persistent Python worker engine.
type Config struct {
	// Transport selects the isolation mechanism for the execution unit.
	Transport TransportKind
	// PythonBin is the interpreter binary for the process transport.
	PythonBin string
	// WorkDir is the host directory holding the per-request virtual
	// filesystem (process transport only; the container transport uses a
	// tmpfs inside the container).
	WorkDir string

	// MinTimeout and MaxTimeout bound the per-request deadline.
	MinTimeout time.Duration
	MaxTimeout time.Duration
	// InitTimeout bounds the cold start (spawning the interpreter and
	// waiting for its ready signal).
	InitTimeout time.Duration

	// MaxOutputBytes caps captured stdout/stderr per request.
	MaxOutputBytes int

	// Container transport settings.
	Image       string
	MemoryLimit int64
	CPULimit    float64
}

// DefaultConfig provides sensible defaults for a Python sandbox.
func DefaultConfig() Config {
	return Config{
		Transport:   TransportProcess,
		PythonBin:   "python3",
		WorkDir:     "", // resolved to a fresh temp dir at initialize time
		MinTimeout:  100 * time.Millisecond,
		MaxTimeout:  2 * time.Minute,
		InitTimeout: 30 * time.Second,
		// 4 MB of captured output per stream
		MaxOutputBytes: 4 << 20,
		// Use a lightweight python image
		Image: "python:3.12-alpine",
		// 256 MB memory limit
		MemoryLimit: 256 * 1024 * 1024,
		// 1 CPU share
		CPULimit: 1.0,
	}
}
