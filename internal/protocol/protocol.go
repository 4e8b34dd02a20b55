// Package protocol defines the shared data contracts for code execution:
// the request and result shapes, the console entry record, and the error
// taxonomy used by every engine and by the HTTP layer.
//
// Both engines and the runner manager depend on this package; it depends on
// nothing but the standard library so it can sit at the bottom of the import
// graph.
package protocol

import (
	"encoding/json"
	"time"
)

// Language selects which guest interpreter runs the code.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
)

// Encoding describes how File.Content is encoded on the wire.
type Encoding string

const (
	EncodingText   Encoding = "text"
	EncodingBase64 Encoding = "base64"
)

// File is a named file mounted into (or collected from) the per-request
// virtual filesystem.
type File struct {
	Path     string   `json:"path"`
	Content  string   `json:"content"`
	Encoding Encoding `json:"encoding"`
}

// Request is the immutable input to one execution.
type Request struct {
	// ID correlates progress events with this request. Left empty by the
	// caller, the runner manager mints one.
	ID string `json:"id,omitempty"`

	Code string `json:"code"`

	Language Language `json:"language"`

	// Context values are injected into the guest global scope before the
	// code runs. Values must be JSON-serializable.
	Context map[string]any `json:"context,omitempty"`

	// Packages lists Python dependencies to install before running.
	// Ignored on the JavaScript path.
	Packages []string `json:"packages,omitempty"`

	// Files are mounted into the virtual filesystem before execution.
	Files []File `json:"files,omitempty"`

	// Timeout is the requested execution deadline. It is clamped into the
	// engine's configured [min,max] range, never rejected.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ConsoleEntry is one console call captured from guest code, in guest
// emission order.
type ConsoleEntry struct {
	Kind ConsoleKind `json:"kind"`
	// Args holds the stringified call arguments.
	Args []string `json:"args"`
	// ElapsedMs is the time since execution start when the entry was emitted.
	ElapsedMs int64 `json:"relativeTimestampMs"`
}

// ConsoleKind mirrors the console methods exposed to guest code.
type ConsoleKind string

const (
	ConsoleLog   ConsoleKind = "log"
	ConsoleWarn  ConsoleKind = "warn"
	ConsoleError ConsoleKind = "error"
	ConsoleInfo  ConsoleKind = "info"
	ConsoleDebug ConsoleKind = "debug"
)

// ErrKind classifies an execution failure. The four kinds are stable across
// both guest languages.
type ErrKind string

const (
	ErrSyntax   ErrKind = "syntax"
	ErrRuntime  ErrKind = "runtime"
	ErrTimeout  ErrKind = "timeout"
	ErrSecurity ErrKind = "security"
)

// Result is the outcome of one execution. OK selects between the success and
// failure halves; stdout/stderr/console captured before a failure are always
// carried on the failure as well.
type Result struct {
	// ID echoes the request id the run executed under, so callers can
	// correlate the outcome with progress events and run history.
	ID string `json:"id,omitempty"`

	OK bool `json:"ok"`

	// Value is the guest result serialized as JSON, when the guest produced
	// one. ValueText is its display form (see FormatValue).
	Value     json.RawMessage `json:"value,omitempty"`
	ValueText string          `json:"valueText,omitempty"`

	Stdout  string         `json:"stdout"`
	Stderr  string         `json:"stderr"`
	Console []ConsoleEntry `json:"consoleEntries,omitempty"`

	OutputFiles       []File   `json:"outputFiles,omitempty"`
	PackagesInstalled []string `json:"packagesInstalled,omitempty"`

	Duration time.Duration `json:"duration"`

	// Failure half. ErrKind and Message are set only when OK is false.
	ErrKind ErrKind `json:"errorKind,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Failure builds a failed Result with the given classification and message.
func Failure(kind ErrKind, message string) *Result {
	return &Result{OK: false, ErrKind: kind, Message: message}
}

// ClampTimeout forces d into [minT, maxT]. Zero and negative values clamp to
// minT. Out-of-range requests are silently clamped, never rejected.
func ClampTimeout(d, minT, maxT time.Duration) time.Duration {
	if d < minT {
		return minT
	}
	if d > maxT {
		return maxT
	}
	return d
}
