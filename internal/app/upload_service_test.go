package app

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamspace/internal/blobstore"
	"teamspace/internal/model"
	"teamspace/internal/upload"
)

type fakeFileRecords struct {
	mu      sync.Mutex
	files   []*model.File
	failure error
}

func (f *fakeFileRecords) Create(file *model.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return f.failure
	}
	f.files = append(f.files, file)
	return nil
}

type fakeMembers struct {
	members map[uint]map[uint]bool
}

func (f *fakeMembers) IsMember(_ context.Context, workspaceID, userID uint) (bool, error) {
	return f.members[workspaceID][userID], nil
}

type fakeEvents struct {
	mu     sync.Mutex
	inputs []PublishEventInput
}

func (f *fakeEvents) Publish(_ context.Context, input PublishEventInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	return "event-id", nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.inputs))
	for _, in := range f.inputs {
		out = append(out, in.Type)
	}
	return out
}

type uploadFixture struct {
	service *UploadService
	blobs   *blobstore.Store
	files   *fakeFileRecords
	events  *fakeEvents
	tracker *upload.Tracker
}

func newUploadFixture(t *testing.T, maxFileSize int64) *uploadFixture {
	t.Helper()

	blobs, err := blobstore.Open(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })

	files := &fakeFileRecords{}
	events := &fakeEvents{}
	members := &fakeMembers{members: map[uint]map[uint]bool{
		1: {10: true, 11: true},
	}}
	tracker := upload.NewTracker()

	return &uploadFixture{
		service: NewUploadService(tracker, blobs, files, members, events, maxFileSize, "tmp/uploads/"),
		blobs:   blobs,
		files:   files,
		events:  events,
		tracker: tracker,
	}
}

func (f *uploadFixture) sendChunk(t *testing.T, userID uint, uploadID string, index, total int, data []byte) (*IngestChunkResult, error) {
	t.Helper()
	return f.service.IngestChunk(context.Background(), IngestChunkInput{
		UserID:      userID,
		WorkspaceID: 1,
		UploadID:    uploadID,
		FileName:    "report.pdf",
		MimeType:    "application/pdf",
		ChunkIndex:  index,
		TotalChunks: total,
		Data:        data,
	})
}

func TestUploadLifecycle(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	ctx := context.Background()
	chunk := bytes.Repeat([]byte("a"), 1<<20)

	result, err := f.sendChunk(t, 10, "U1", 0, 3, chunk)
	require.NoError(t, err)
	assert.Equal(t, "U1", result.UploadID)
	assert.Equal(t, 0, result.ChunkIndex)
	assert.Equal(t, 1, result.Received)
	assert.Equal(t, 3, result.Total)

	result, err = f.sendChunk(t, 10, "U1", 1, 3, chunk)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Received)

	// Completion before the last chunk must name exactly the missing index.
	_, err = f.service.Complete(ctx, 10, "U1")
	var incomplete *IncompleteUploadError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []int{2}, incomplete.Missing)
	assert.Equal(t, 2, incomplete.Received)
	assert.Equal(t, 3, incomplete.Total)

	result, err = f.sendChunk(t, 10, "U1", 2, 3, chunk)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Received)

	summary, err := f.service.Complete(ctx, 10, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(3<<20), summary.Size)
	assert.Equal(t, "report.pdf", summary.Name)
	assert.Equal(t, "application/pdf", summary.MimeType)

	require.Len(t, f.files.files, 1)
	record := f.files.files[0]
	assert.Equal(t, summary.ID, record.ID)
	assert.Equal(t, int64(3<<20), record.Size)

	// Assembled bytes land under the permanent key, temp chunks are gone.
	data, err := f.blobs.ReadAll(ctx, record.StorageKey)
	require.NoError(t, err)
	assert.Len(t, data, 3<<20)
	keys, err := f.blobs.List(ctx, "tmp/uploads/U1/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Session is gone after completion.
	_, err = f.service.Status(10, "U1")
	assert.ErrorIs(t, err, upload.ErrSessionNotFound)

	assert.Contains(t, f.events.types(), "upload_completed")
}

func TestUploadChunksOutOfOrderAssembleInIndexOrder(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	ctx := context.Background()

	_, err := f.sendChunk(t, 10, "U2", 0, 3, []byte("aaa"))
	require.NoError(t, err)
	_, err = f.sendChunk(t, 10, "U2", 2, 3, []byte("ccc"))
	require.NoError(t, err)
	_, err = f.sendChunk(t, 10, "U2", 1, 3, []byte("bbb"))
	require.NoError(t, err)

	summary, err := f.service.Complete(ctx, 10, "U2")
	require.NoError(t, err)

	data, err := f.blobs.ReadAll(ctx, f.files.files[0].StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "aaabbbccc", string(data))
	assert.Equal(t, int64(9), summary.Size)
}

func TestUploadFirstChunkMustBeZero(t *testing.T) {
	f := newUploadFixture(t, 10<<20)

	_, err := f.sendChunk(t, 10, "U3", 1, 3, []byte("data"))
	assert.ErrorIs(t, err, upload.ErrSessionNotFound)
	assert.Equal(t, 0, f.tracker.Len())
}

func TestUploadDuplicateChunkIsIdempotent(t *testing.T) {
	f := newUploadFixture(t, 10<<20)

	_, err := f.sendChunk(t, 10, "U4", 0, 2, []byte("data"))
	require.NoError(t, err)

	result, err := f.sendChunk(t, 10, "U4", 0, 2, []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Received)
}

func TestUploadRejectsNonMember(t *testing.T) {
	f := newUploadFixture(t, 10<<20)

	_, err := f.sendChunk(t, 99, "U5", 0, 2, []byte("data"))
	assert.ErrorIs(t, err, ErrNotWorkspaceMember)
}

func TestUploadRejectsForeignSession(t *testing.T) {
	f := newUploadFixture(t, 10<<20)

	_, err := f.sendChunk(t, 10, "U6", 0, 2, []byte("data"))
	require.NoError(t, err)

	_, err = f.sendChunk(t, 11, "U6", 1, 2, []byte("data"))
	assert.ErrorIs(t, err, ErrNotUploadOwner)

	_, err = f.service.Complete(context.Background(), 11, "U6")
	assert.ErrorIs(t, err, ErrNotUploadOwner)
}

func TestUploadRejectsOversizedDeclaration(t *testing.T) {
	f := newUploadFixture(t, 4)

	_, err := f.sendChunk(t, 10, "U7", 0, 10, []byte("ab"))
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, 0, f.tracker.Len())
}

func TestUploadStatusReportsMissingChunks(t *testing.T) {
	f := newUploadFixture(t, 10<<20)

	_, err := f.sendChunk(t, 10, "U8", 0, 4, []byte("data"))
	require.NoError(t, err)
	_, err = f.sendChunk(t, 10, "U8", 2, 4, []byte("data"))
	require.NoError(t, err)

	status, err := f.service.Status(10, "U8")
	require.NoError(t, err)
	assert.Equal(t, "U8", status.UploadID)
	assert.Equal(t, "report.pdf", status.Filename)
	assert.Equal(t, 4, status.TotalChunks)
	assert.Equal(t, 2, status.ReceivedChunks)
	assert.Equal(t, []int{1, 3}, status.MissingChunks)
}

func TestUploadCompleteKeepsChunksOnRecordFailure(t *testing.T) {
	f := newUploadFixture(t, 10<<20)
	ctx := context.Background()
	f.files.failure = errors.New("db down")

	_, err := f.sendChunk(t, 10, "U9", 0, 1, []byte("data"))
	require.NoError(t, err)

	_, err = f.service.Complete(ctx, 10, "U9")
	require.Error(t, err)

	// Session and temp chunk survive for a retry after the store recovers.
	keys, err := f.blobs.List(ctx, "tmp/uploads/U9/")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	f.files.failure = nil
	summary, err := f.service.Complete(ctx, 10, "U9")
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.Size)
}

func TestUploadProgressEvents(t *testing.T) {
	f := newUploadFixture(t, 10<<20)

	for i := 0; i < 10; i++ {
		_, err := f.sendChunk(t, 10, "U10", i, 10, []byte("x"))
		require.NoError(t, err)
	}

	// First chunk, each 20% crossing, and the 90% mark report progress.
	var progress int
	for _, typ := range f.events.types() {
		if typ == "upload_progress" {
			progress++
		}
	}
	assert.Equal(t, 7, progress)
}
