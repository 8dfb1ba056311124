package export

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistory_SaveAndFind(t *testing.T) {
	h := NewMemoryHistory(0)
	ctx := context.Background()
	job := NewJob()

	require.NoError(t, h.Save(ctx, job))

	found, err := h.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)

	// Stored copies are isolated from later mutation.
	job.AddStaged("audio.mp3")
	found, _ = h.FindByID(ctx, job.ID)
	assert.Empty(t, found.Staged)

	require.NoError(t, h.Save(ctx, job))
	found, _ = h.FindByID(ctx, job.ID)
	assert.Equal(t, []string{"audio.mp3"}, found.Staged)

	jobs, err := h.List(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestMemoryHistory_NotFound(t *testing.T) {
	_, err := NewMemoryHistory(0).FindByID(context.Background(), "export-1")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryHistory_EvictsOldest(t *testing.T) {
	h := NewMemoryHistory(3)
	ctx := context.Background()
	base := time.Now()

	var ids []string
	for i := 0; i < 5; i++ {
		job := &Job{ID: fmt.Sprintf("export-%d", i), StartedAt: base.Add(time.Duration(i) * time.Second)}
		ids = append(ids, job.ID)
		require.NoError(t, h.Save(ctx, job))
	}

	_, err := h.FindByID(ctx, ids[0])
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = h.FindByID(ctx, ids[1])
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs, err := h.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, []string{ids[4], ids[3], ids[2]}, []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})
}
