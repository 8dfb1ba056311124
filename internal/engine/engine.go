// Package engine defines the boundary to the external media-processing engine.
// The orchestrator only sees a flat filesystem keyed by file name, a command
// runner taking engine flags, and a line-oriented log subscription.
package engine

import (
	"context"
	"errors"
	"io"
)

// Log entry types delivered to LogFunc.
const (
	// TypeDiagnostic marks lines from the engine's diagnostic stream (stderr).
	TypeDiagnostic = "fferr"
	// TypeOutput marks lines from the engine's regular output (stdout).
	TypeOutput = "ffout"
)

// Static errors for engine operations.
var (
	// ErrInvalidName is returned for file names that are empty or contain path elements.
	ErrInvalidName = errors.New("engine: invalid file name")
	// ErrUnavailable is returned when the engine binary cannot be found.
	ErrUnavailable = errors.New("engine: ffmpeg binary not available")
)

// LogEntry is a single line emitted by the engine.
type LogEntry struct {
	Type    string
	Message string
}

// LogFunc receives engine log lines. It is called from the goroutine
// draining the engine output and must not block for long.
type LogFunc func(LogEntry)

// Engine is the capability set consumed from the media engine.
type Engine interface {
	// WriteFile stores data under name in the engine's working filesystem.
	WriteFile(ctx context.Context, name string, data io.Reader) error

	// ReadFile returns the content stored under name.
	ReadFile(ctx context.Context, name string) ([]byte, error)

	// Unlink removes name from the working filesystem.
	Unlink(ctx context.Context, name string) error

	// Run executes the engine with a flat argument list and waits for it to finish.
	// File names in args are resolved against the working filesystem.
	Run(ctx context.Context, args ...string) error

	// SetLogger replaces the log subscription. A nil fn drops log lines.
	SetLogger(fn LogFunc)
}
