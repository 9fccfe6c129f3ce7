package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamspace/internal/blobstore"
	"teamspace/internal/upload"
)

func newCleanupFixture(t *testing.T, retention time.Duration) (*CleanupService, *blobstore.Store, *upload.Tracker) {
	t.Helper()

	blobs, err := blobstore.Open(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })

	tracker := upload.NewTracker()
	return NewCleanupService(blobs, tracker, "tmp/uploads/", retention), blobs, tracker
}

func writeBlob(t *testing.T, blobs *blobstore.Store, key string) {
	t.Helper()
	_, err := blobs.Write(context.Background(), key, bytes.NewReader([]byte("chunk")), "application/octet-stream")
	require.NoError(t, err)
}

func TestSweepDeletesOnlyExpiredTempBlobs(t *testing.T) {
	sweeper, blobs, _ := newCleanupFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	writeBlob(t, blobs, "tmp/uploads/stale/00000")
	writeBlob(t, blobs, "tmp/uploads/stale/00001")
	time.Sleep(80 * time.Millisecond)
	writeBlob(t, blobs, "tmp/uploads/fresh/00000")

	result := sweeper.Sweep(ctx)
	assert.Equal(t, 2, result.Cleaned)
	assert.Equal(t, 0, result.Errors)

	exists, err := blobs.Exists(ctx, "tmp/uploads/stale/00000")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = blobs.Exists(ctx, "tmp/uploads/fresh/00000")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSweepSkipsChunksOfLiveSessions(t *testing.T) {
	sweeper, blobs, tracker := newCleanupFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	session, _, err := tracker.StartOrGet("ACTIVE", 0, upload.StartParams{
		UserID:      1,
		WorkspaceID: 1,
		FileName:    "a.bin",
		TotalChunks: 3,
	})
	require.NoError(t, err)
	_, err = session.RecordChunk(0)
	require.NoError(t, err)
	writeBlob(t, blobs, "tmp/uploads/ACTIVE/00000")

	time.Sleep(80 * time.Millisecond)

	// A resumed upload: the late chunk keeps the session alive while the
	// first chunk's blob has already crossed the retention cutoff.
	_, err = session.RecordChunk(1)
	require.NoError(t, err)
	writeBlob(t, blobs, "tmp/uploads/ACTIVE/00001")

	result := sweeper.Sweep(ctx)
	assert.Equal(t, 0, result.Cleaned)
	assert.Equal(t, 0, result.Errors)

	keys, err := blobs.List(ctx, "tmp/uploads/ACTIVE/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Equal(t, 1, tracker.Len())
}

func TestSweepCleansChunksOnceSessionExpires(t *testing.T) {
	sweeper, blobs, tracker := newCleanupFixture(t, 30*time.Millisecond)
	ctx := context.Background()

	_, _, err := tracker.StartOrGet("STALE", 0, upload.StartParams{
		UserID:      1,
		WorkspaceID: 1,
		FileName:    "a.bin",
		TotalChunks: 2,
	})
	require.NoError(t, err)
	writeBlob(t, blobs, "tmp/uploads/STALE/00000")

	time.Sleep(60 * time.Millisecond)

	// The same pass prunes the expired session and then sweeps its chunk.
	result := sweeper.Sweep(ctx)
	assert.Equal(t, 1, result.Cleaned)
	assert.Equal(t, 0, tracker.Len())

	exists, err := blobs.Exists(ctx, "tmp/uploads/STALE/00000")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSweepIgnoresKeysOutsideTempPrefix(t *testing.T) {
	sweeper, blobs, _ := newCleanupFixture(t, time.Millisecond)
	ctx := context.Background()

	writeBlob(t, blobs, "workspaces/1/files/keep.pdf")
	time.Sleep(10 * time.Millisecond)

	result := sweeper.Sweep(ctx)
	assert.Equal(t, 0, result.Cleaned)

	exists, err := blobs.Exists(ctx, "workspaces/1/files/keep.pdf")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSweepPrunesExpiredSessions(t *testing.T) {
	sweeper, _, tracker := newCleanupFixture(t, 20*time.Millisecond)

	_, _, err := tracker.StartOrGet("U1", 0, upload.StartParams{
		UserID:      1,
		WorkspaceID: 1,
		FileName:    "a.bin",
		TotalChunks: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 1, tracker.Len())

	time.Sleep(40 * time.Millisecond)
	sweeper.Sweep(context.Background())
	assert.Equal(t, 0, tracker.Len())
}

func TestSweepEmptyNamespace(t *testing.T) {
	sweeper, _, _ := newCleanupFixture(t, time.Hour)

	result := sweeper.Sweep(context.Background())
	assert.Equal(t, 0, result.Cleaned)
	assert.Equal(t, 0, result.Errors)
}
