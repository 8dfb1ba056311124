// Package export runs the export pipeline: it stages the session's assets in
// the media engine, probes the audio duration, encodes the video and delivers
// the result. A Job records the state machine of one export attempt.
package export

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/media-compiler/internal/export/id"
	"github.com/maauso/media-compiler/internal/session"
)

// State is a step of the export state machine.
type State string

const (
	StateIdle            State = "IDLE"
	StateValidating      State = "VALIDATING"
	StateLoadingEngine   State = "LOADING_ENGINE"
	StateStaging         State = "STAGING"
	StateProbingDuration State = "PROBING_DURATION"
	StateEncoding        State = "ENCODING"
	StateFinalizing      State = "FINALIZING"
	StateCleanup         State = "CLEANUP"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// Any failure after validation moves straight to StateCleanup.
var validTransitions = map[State][]State{
	StateIdle:            {StateValidating},
	StateValidating:      {StateLoadingEngine, StateStaging, StateIdle, StateCleanup},
	StateLoadingEngine:   {StateStaging, StateCleanup},
	StateStaging:         {StateProbingDuration, StateCleanup},
	StateProbingDuration: {StateEncoding, StateCleanup},
	StateEncoding:        {StateFinalizing, StateCleanup},
	StateFinalizing:      {StateCleanup},
	StateCleanup:         {StateIdle},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// Outcome is the final result of a job.
type Outcome string

const (
	OutcomePending   Outcome = "PENDING"
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeRejected  Outcome = "REJECTED"
	OutcomeFailed    Outcome = "FAILED"
)

// Job is one export attempt.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this export.
	ID string
	// Mode is the encoding strategy chosen from the session contents.
	Mode session.Mode
	// State is the current step of the state machine.
	State State
	// Outcome is the final result once the job is back in StateIdle.
	Outcome Outcome
	// FailedIn is the state the job was in when it failed.
	FailedIn State
	// Error contains the failure detail if the job failed.
	Error string
	// AudioName is the submitted name of the audio track.
	AudioName string
	// Output is the delivered file name, <audio-basename>.mov.
	Output string
	// Location is where the output was stored.
	Location string
	// TotalDuration is the probed audio duration in seconds.
	TotalDuration float64
	// Processed is the last parsed elapsed time in seconds.
	Processed float64
	// Staged lists the engine file names written for this export.
	Staged []string
	// StartedAt is when the job left StateIdle.
	StartedAt time.Time
	// CompletedAt is when the job returned to StateIdle.
	CompletedAt time.Time
}

// NewJob creates a Job in StateIdle with a generated ID.
func NewJob() *Job {
	return &Job{
		ID:      id.Generate(),
		State:   StateIdle,
		Outcome: OutcomePending,
		Staged:  make([]string, 0),
	}
}

// TransitionTo attempts to change the job state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(state State) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.State, state) {
		return ErrInvalidTransition
	}

	now := time.Now()
	switch {
	case j.State == StateIdle:
		j.StartedAt = now
	case state == StateIdle:
		j.CompletedAt = now
		if j.Outcome == OutcomePending {
			j.Outcome = OutcomeCompleted
		}
	}
	j.State = state
	return nil
}

// GetState returns the current state (thread-safe).
func (j *Job) GetState() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.State
}

// Reject records that the export never started.
func (j *Job) Reject(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outcome = OutcomeRejected
	j.Error = err.Error()
}

// Fail records a failure in the current state.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outcome = OutcomeFailed
	j.FailedIn = j.State
	j.Error = err.Error()
}

// Begin records the inputs of the export.
func (j *Job) Begin(mode session.Mode, audioName, output string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Mode = mode
	j.AudioName = audioName
	j.Output = output
}

// AddStaged records a file written to the engine.
func (j *Job) AddStaged(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Staged = append(j.Staged, name)
}

// StagedFiles returns a copy of the staged names.
func (j *Job) StagedFiles() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]string(nil), j.Staged...)
}

// SetDuration records the probed duration.
func (j *Job) SetDuration(total float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.TotalDuration = total
}

// SetProcessed records the elapsed media time seen while encoding.
func (j *Job) SetProcessed(elapsed float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Processed = elapsed
}

// SetLocation records where the output was stored.
func (j *Job) SetLocation(location string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Location = location
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:            j.ID,
		Mode:          j.Mode,
		State:         j.State,
		Outcome:       j.Outcome,
		FailedIn:      j.FailedIn,
		Error:         j.Error,
		AudioName:     j.AudioName,
		Output:        j.Output,
		Location:      j.Location,
		TotalDuration: j.TotalDuration,
		Processed:     j.Processed,
		Staged:        append([]string(nil), j.Staged...),
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
	}
}
