// Package engine defines the contract every guest-language engine satisfies.
package engine

import (
	"context"

	"github.com/codename-co/runbox/internal/protocol"
)

// CancellationMode states what guarantee an engine gives when an in-flight
// execution must be stopped. The two engines intentionally differ and the
// difference is part of the contract, not an implementation detail.
type CancellationMode string

const (
	// Cooperative engines interrupt at interpreter-checked points; a long
	// uninterruptible native call can overrun the deadline before the check
	// fires.
	Cooperative CancellationMode = "cooperative"
	// Destructive engines are stopped by destroying their execution unit;
	// the next call pays a fresh cold-start cost.
	Destructive CancellationMode = "destructive"
)

// Engine runs guest code in an isolated environment.
//
// Execute returns an error only for host-side faults (a broken transport, a
// closed engine); guest failures of any kind come back inside the Result.
type Engine interface {
	Execute(ctx context.Context, req protocol.Request) (*protocol.Result, error)
	CancellationMode() CancellationMode
	Close() error
}
