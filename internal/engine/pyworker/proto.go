package pyworker

import (
	"encoding/json"

	"github.com/codename-co/runbox/internal/protocol"
)

// command is one NDJSON line sent to the harness on its stdin.
type command struct {
	Op       string          `json:"op"` // "exec" or "shutdown"
	ID       string          `json:"id,omitempty"`
	Code     string          `json:"code,omitempty"`
	Context  map[string]any  `json:"context,omitempty"`
	Packages []string        `json:"packages,omitempty"`
	Files    []protocol.File `json:"files,omitempty"`
}

// event is one NDJSON line received from the harness on its stdout. The type
// tag is a closed set: ready, progress, result.
type event struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// progress
	Message string `json:"message,omitempty"`

	// result
	OK        bool            `json:"ok"`
	Value     json.RawMessage `json:"value,omitempty"`
	ValueText string          `json:"valueText,omitempty"`
	Stdout    string          `json:"stdout,omitempty"`
	Stderr    string          `json:"stderr,omitempty"`
	Installed []string        `json:"installed,omitempty"`
	Files     []protocol.File `json:"files,omitempty"`
	ErrKind   string          `json:"errKind,omitempty"`
	ErrMsg    string          `json:"errMessage,omitempty"`
	// Exit carries the SystemExit status when the guest called the
	// terminate primitive; absent means it did not.
	Exit *int `json:"exit,omitempty"`
}

const (
	eventReady    = "ready"
	eventProgress = "progress"
	eventResult   = "result"
)
