// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Run status values stored in the database.
const (
	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
)

// Run is one recorded execution: what language ran, how it ended, and
// how big the code and output were. The code itself is stored so a run
// can be re-inspected later; outputs are only summarised by size.
//
// The `json:"..."` tags tell Go's encoding/json package how to serialize
// this struct for the /api/runs endpoint.
type Run struct {
	ID          string        `json:"id"`
	Language    string        `json:"language"`
	Status      string        `json:"status"`
	ErrKind     string        `json:"errKind,omitempty"`
	Code        string        `json:"code"`
	StdoutBytes int           `json:"stdoutBytes"`
	StderrBytes int           `json:"stderrBytes"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"createdAt"`
}
