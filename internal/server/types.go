// Package server provides the HTTP surface of the media compiler.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/media-compiler/internal/export"
	"github.com/maauso/media-compiler/internal/intake"
	"github.com/maauso/media-compiler/internal/progress"
	"github.com/maauso/media-compiler/internal/session"
)

// UploadQuery is the validated query string of POST /session/files.
type UploadQuery struct {
	Channel string `validate:"omitempty,oneof=visual audio any"`
}

// SessionResponse is the HTTP response describing the current session.
type SessionResponse struct {
	session.Snapshot
	// Progress is the last published progress event.
	Progress progress.Event `json:"progress"`
}

// UploadResponse is the HTTP response after submitting a batch of files.
type UploadResponse struct {
	intake.Result
	// Accepted is the number of files stored in the session.
	Accepted int `json:"accepted"`
	// Warnings are the distinct messages shown to the user.
	Warnings []string `json:"warnings,omitempty"`
}

// ExportResponse is the HTTP response for a recorded export.
type ExportResponse struct {
	ID            string     `json:"id"`
	Mode          string     `json:"mode,omitempty"`
	State         string     `json:"state"`
	Outcome       string     `json:"outcome"`
	FailedIn      string     `json:"failed_in,omitempty"`
	Error         string     `json:"error,omitempty"`
	Audio         string     `json:"audio,omitempty"`
	Output        string     `json:"output,omitempty"`
	Location      string     `json:"location,omitempty"`
	TotalDuration float64    `json:"total_duration,omitempty"`
	Processed     float64    `json:"processed,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// ExportListResponse is the HTTP response for GET /exports.
type ExportListResponse struct {
	Exports []ExportResponse `json:"exports"`
}

func newExportResponse(j *export.Job) ExportResponse {
	resp := ExportResponse{
		ID:            j.ID,
		Mode:          string(j.Mode),
		State:         string(j.State),
		Outcome:       string(j.Outcome),
		FailedIn:      string(j.FailedIn),
		Error:         j.Error,
		Audio:         j.AudioName,
		Output:        j.Output,
		Location:      j.Location,
		TotalDuration: j.TotalDuration,
		Processed:     j.Processed,
		StartedAt:     j.StartedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// EngineLoaded reports whether the media engine has been started.
	EngineLoaded bool `json:"engine_loaded"`
}
