package export

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("export not found")

// DefaultHistorySize is the number of jobs MemoryHistory keeps.
const DefaultHistorySize = 50

// History records export attempts for inspection.
type History interface {
	// Save stores a job, replacing an earlier record with the same ID.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns the recorded jobs, most recent first.
	List(ctx context.Context) ([]*Job, error)
}

// Compile-time check that MemoryHistory implements History.
var _ History = (*MemoryHistory)(nil)

// MemoryHistory is an in-memory History holding the most recent jobs.
// Jobs are cloned on the way in and out.
type MemoryHistory struct {
	mu    sync.RWMutex
	limit int
	jobs  map[string]*Job
	order []string
}

// NewMemoryHistory creates a history keeping at most limit jobs.
// A non-positive limit uses DefaultHistorySize.
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &MemoryHistory{
		limit: limit,
		jobs:  make(map[string]*Job),
	}
}

// Save stores a clone of job and evicts the oldest record past the limit.
func (h *MemoryHistory) Save(_ context.Context, job *Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.jobs[job.ID]; !ok {
		h.order = append(h.order, job.ID)
	}
	h.jobs[job.ID] = job.Clone()

	for len(h.order) > h.limit {
		delete(h.jobs, h.order[0])
		h.order = h.order[1:]
	}
	return nil
}

// FindByID retrieves a job by its ID.
func (h *MemoryHistory) FindByID(_ context.Context, id string) (*Job, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	job, ok := h.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns all recorded jobs, most recently started first.
func (h *MemoryHistory) List(_ context.Context) ([]*Job, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]*Job, 0, len(h.order))
	for i := len(h.order) - 1; i >= 0; i-- {
		result = append(result, h.jobs[h.order[i]].Clone())
	}
	sort.SliceStable(result, func(a, b int) bool {
		return result[a].StartedAt.After(result[b].StartedAt)
	})
	return result, nil
}
