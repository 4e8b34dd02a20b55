package jsvm

import (
	"time"
)

// Config holds the configuration for the ephemeral JavaScript engine.
type Config struct {
	// MinTimeout and MaxTimeout bound the per-request deadline. Requested
	// timeouts outside the range are clamped, never rejected.
	MinTimeout time.Duration
	MaxTimeout time.Duration
	// MaxCallStackSize bounds guest recursion depth.
	MaxCallStackSize int
	// MaxConsoleBytes caps the total bytes captured from console calls.
	MaxConsoleBytes int
	// MaxResultBytes caps the serialized size of the guest result value.
	MaxResultBytes int
	// PoolSize is the number of pre-warmed interpreter instances to keep.
	// Every instance serves exactly one execution and is then discarded.
	PoolSize int
}

// DefaultConfig provides sensible defaults for untrusted script execution.
func DefaultConfig() Config {
	return Config{
		MinTimeout:       100 * time.Millisecond,
		MaxTimeout:       30 * time.Second,
		MaxCallStackSize: 2048,
		// 1 MB of console output, 5 MB result ceiling
		MaxConsoleBytes: 1 << 20,
		MaxResultBytes:  5 << 20,
		PoolSize:        4,
	}
}
