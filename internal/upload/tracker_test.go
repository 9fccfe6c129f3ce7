package upload

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startParams(total int) StartParams {
	return StartParams{
		UserID:      1,
		WorkspaceID: 10,
		FileName:    "report.pdf",
		MimeType:    "application/pdf",
		TotalChunks: total,
	}
}

func TestStartOrGetCreatesOnChunkZero(t *testing.T) {
	tracker := NewTracker()

	session, created, err := tracker.StartOrGet("U1", 0, startParams(3))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "U1", session.ID)
	assert.Equal(t, 3, session.TotalChunks)

	again, created, err := tracker.StartOrGet("U1", 1, startParams(3))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, session, again)
}

func TestStartOrGetRejectsNonZeroFirstChunk(t *testing.T) {
	tracker := NewTracker()

	_, _, err := tracker.StartOrGet("unknown", 2, startParams(3))
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, tracker.Len())
}

func TestRecordChunkIsIdempotent(t *testing.T) {
	tracker := NewTracker()
	session, _, err := tracker.StartOrGet("U1", 0, startParams(3))
	require.NoError(t, err)

	received, err := session.RecordChunk(0)
	require.NoError(t, err)
	assert.Equal(t, 1, received)

	received, err = session.RecordChunk(0)
	require.NoError(t, err)
	assert.Equal(t, 1, received)

	received, err = session.RecordChunk(2)
	require.NoError(t, err)
	assert.Equal(t, 2, received)
}

func TestRecordChunkOutOfRange(t *testing.T) {
	tracker := NewTracker()
	session, _, err := tracker.StartOrGet("U1", 0, startParams(3))
	require.NoError(t, err)

	_, err = session.RecordChunk(3)
	assert.ErrorIs(t, err, ErrChunkIndexOutOfRange)
	_, err = session.RecordChunk(-1)
	assert.ErrorIs(t, err, ErrChunkIndexOutOfRange)
}

func TestMissingIndices(t *testing.T) {
	tracker := NewTracker()
	session, _, err := tracker.StartOrGet("U1", 0, startParams(5))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, session.MissingIndices())

	_, err = session.RecordChunk(0)
	require.NoError(t, err)
	_, err = session.RecordChunk(3)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 4}, session.MissingIndices())
	assert.False(t, session.IsComplete())

	for _, i := range []int{1, 2, 4} {
		_, err = session.RecordChunk(i)
		require.NoError(t, err)
	}
	assert.True(t, session.IsComplete())
	assert.Empty(t, session.MissingIndices())
}

func TestConcurrentRecordChunk(t *testing.T) {
	tracker := NewTracker()
	total := 100
	session, _, err := tracker.StartOrGet("U1", 0, startParams(total))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			_, err := session.RecordChunk(index)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.True(t, session.IsComplete())
	assert.Equal(t, total, session.ReceivedCount())
}

func TestRemove(t *testing.T) {
	tracker := NewTracker()
	_, _, err := tracker.StartOrGet("U1", 0, startParams(1))
	require.NoError(t, err)

	tracker.Remove("U1")
	_, err = tracker.Get("U1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPruneExpired(t *testing.T) {
	tracker := NewTracker()
	old, _, err := tracker.StartOrGet("old", 0, startParams(2))
	require.NoError(t, err)
	old.mu.Lock()
	old.lastActivity = time.Now().Add(-25 * time.Hour)
	old.mu.Unlock()

	_, _, err = tracker.StartOrGet("fresh", 0, startParams(2))
	require.NoError(t, err)

	pruned := tracker.PruneExpired(24 * time.Hour)
	assert.Equal(t, 1, pruned)

	_, err = tracker.Get("old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = tracker.Get("fresh")
	assert.NoError(t, err)
}
