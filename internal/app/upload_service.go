package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamspace/internal/blobstore"
	"teamspace/internal/model"
	"teamspace/internal/upload"
)

var (
	ErrFileTooLarge   = errors.New("file exceeds maximum allowed size")
	ErrNotUploadOwner = errors.New("upload session belongs to another user")
)

// IncompleteUploadError is returned when completion is requested before every
// chunk arrived. It carries the exact missing indices so the client can retry
// just those chunks.
type IncompleteUploadError struct {
	Missing  []int
	Received int
	Total    int
}

func (e *IncompleteUploadError) Error() string {
	return fmt.Sprintf("upload incomplete: %d of %d chunks received", e.Received, e.Total)
}

// FileRecords is the slice of the relational store the upload core needs.
type FileRecords interface {
	Create(file *model.File) error
}

// MembershipChecker authorizes a user against a workspace.
type MembershipChecker interface {
	IsMember(ctx context.Context, workspaceID, userID uint) (bool, error)
}

// EventSink accepts events for audit and fan-out.
type EventSink interface {
	Publish(ctx context.Context, input PublishEventInput) (string, error)
}

// UploadService implements the chunked upload pipeline. Each chunk lands in
// its own temporary blob (tmp/uploads/{uploadId}/{index}); finalization
// streams them in index order into the permanent key. Keying chunks by index
// makes re-sends idempotent and out-of-order arrival harmless, instead of the
// append-and-rewrite scheme that corrupts on reordering.
type UploadService struct {
	tracker     *upload.Tracker
	blobs       *blobstore.Store
	files       FileRecords
	members     MembershipChecker
	events      EventSink
	maxFileSize int64
	tempPrefix  string
}

type IngestChunkInput struct {
	UserID      uint
	WorkspaceID uint
	UploadID    string
	FileName    string
	MimeType    string
	ChunkIndex  int
	TotalChunks int
	Data        []byte
}

type IngestChunkResult struct {
	UploadID   string `json:"uploadId"`
	ChunkIndex int    `json:"chunkIndex"`
	Received   int    `json:"received"`
	Total      int    `json:"total"`
}

type FileSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type UploadStatus struct {
	UploadID       string    `json:"uploadId"`
	Filename       string    `json:"filename"`
	TotalChunks    int       `json:"totalChunks"`
	ReceivedChunks int       `json:"receivedChunks"`
	MissingChunks  []int     `json:"missingChunks"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivity   time.Time `json:"lastActivity"`
}

func NewUploadService(
	tracker *upload.Tracker,
	blobs *blobstore.Store,
	files FileRecords,
	members MembershipChecker,
	events EventSink,
	maxFileSize int64,
	tempPrefix string,
) *UploadService {
	if !strings.HasSuffix(tempPrefix, "/") {
		tempPrefix += "/"
	}
	return &UploadService{
		tracker:     tracker,
		blobs:       blobs,
		files:       files,
		members:     members,
		events:      events,
		maxFileSize: maxFileSize,
		tempPrefix:  tempPrefix,
	}
}

func (s *UploadService) TempPrefix() string {
	return s.tempPrefix
}

func (s *UploadService) IngestChunk(ctx context.Context, input IngestChunkInput) (*IngestChunkResult, error) {
	if input.UserID == 0 || input.WorkspaceID == 0 ||
		strings.TrimSpace(input.UploadID) == "" || strings.TrimSpace(input.FileName) == "" ||
		input.ChunkIndex < 0 || input.TotalChunks <= 0 || input.ChunkIndex >= input.TotalChunks ||
		len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}

	isMember, err := s.members.IsMember(ctx, input.WorkspaceID, input.UserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}

	session, created, err := s.tracker.StartOrGet(input.UploadID, input.ChunkIndex, upload.StartParams{
		UserID:      input.UserID,
		WorkspaceID: input.WorkspaceID,
		FileName:    input.FileName,
		MimeType:    input.MimeType,
		TotalChunks: input.TotalChunks,
	})
	if err != nil {
		return nil, err
	}

	if created {
		// The first chunk's size stands in for the chunk size; reject
		// uploads whose declared total would blow the limit before any
		// bytes accumulate.
		if int64(input.TotalChunks)*int64(len(input.Data)) > s.maxFileSize {
			s.tracker.Remove(input.UploadID)
			return nil, ErrFileTooLarge
		}
	}

	if session.UserID != input.UserID {
		return nil, ErrNotUploadOwner
	}
	if input.TotalChunks != session.TotalChunks {
		return nil, ErrInvalidInput
	}

	key := s.chunkKey(input.UploadID, input.ChunkIndex)
	if _, err := s.blobs.Write(ctx, key, bytes.NewReader(input.Data), session.MimeType); err != nil {
		return nil, fmt.Errorf("store chunk failed: %w", err)
	}

	received, err := session.RecordChunk(input.ChunkIndex)
	if err != nil {
		return nil, err
	}

	if shouldReportProgress(received, session.TotalChunks) {
		s.publishEvent(ctx, "upload_progress", map[string]any{
			"upload_id":    session.ID,
			"file_name":    session.FileName,
			"percent":      received * 100 / session.TotalChunks,
			"uploader_id":  session.UserID,
			"workspace_id": session.WorkspaceID,
		}, session.WorkspaceID)
	}

	return &IngestChunkResult{
		UploadID:   session.ID,
		ChunkIndex: input.ChunkIndex,
		Received:   received,
		Total:      session.TotalChunks,
	}, nil
}

// Complete validates the session, assembles the permanent blob, and creates
// the durable file record. On any failure the session and temporary chunks
// are left in place so the client can retry the completion call.
func (s *UploadService) Complete(ctx context.Context, userID uint, uploadID string) (*FileSummary, error) {
	if userID == 0 || strings.TrimSpace(uploadID) == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.tracker.Get(uploadID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrNotUploadOwner
	}

	if missing := session.MissingIndices(); len(missing) > 0 {
		return nil, &IncompleteUploadError{
			Missing:  missing,
			Received: session.ReceivedCount(),
			Total:    session.TotalChunks,
		}
	}

	fileID := uuid.NewString()
	permanentKey := fmt.Sprintf("workspaces/%d/files/%s%s",
		session.WorkspaceID, fileID, filepath.Ext(session.FileName))

	size, err := s.assemble(ctx, session, permanentKey)
	if err != nil {
		return nil, err
	}

	record := &model.File{
		ID:           fileID,
		WorkspaceID:  session.WorkspaceID,
		UploaderID:   session.UserID,
		Name:         session.FileName,
		OriginalName: session.FileName,
		MimeType:     session.MimeType,
		Size:         size,
		StorageKey:   permanentKey,
	}
	if err := s.files.Create(record); err != nil {
		if delErr := s.blobs.Delete(ctx, permanentKey); delErr != nil {
			log.Printf("delete orphaned permanent blob %s failed: %v", permanentKey, delErr)
		}
		return nil, err
	}

	// The record is durable, so temp cleanup and event delivery failures no
	// longer fail the call.
	s.deleteTempChunks(ctx, session)

	s.publishEvent(ctx, "upload_completed", map[string]any{
		"upload_id":    session.ID,
		"file_id":      fileID,
		"file_name":    session.FileName,
		"size":         size,
		"uploader_id":  session.UserID,
		"workspace_id": session.WorkspaceID,
	}, session.WorkspaceID)

	s.tracker.Remove(uploadID)

	return &FileSummary{
		ID:         fileID,
		Name:       record.Name,
		Size:       size,
		MimeType:   record.MimeType,
		UploadedAt: record.CreatedAt,
	}, nil
}

func (s *UploadService) Status(userID uint, uploadID string) (*UploadStatus, error) {
	if userID == 0 || strings.TrimSpace(uploadID) == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.tracker.Get(uploadID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrNotUploadOwner
	}

	snap := session.Snapshot()
	return &UploadStatus{
		UploadID:       snap.ID,
		Filename:       snap.FileName,
		TotalChunks:    snap.TotalChunks,
		ReceivedChunks: snap.Received,
		MissingChunks:  snap.Missing,
		CreatedAt:      snap.CreatedAt,
		LastActivity:   snap.LastActivity,
	}, nil
}

// assemble streams every chunk in index order into the permanent key. The
// temporary chunks are only read, never deleted here.
func (s *UploadService) assemble(ctx context.Context, session *upload.Session, permanentKey string) (int64, error) {
	w, err := s.blobs.NewWriter(ctx, permanentKey, session.MimeType)
	if err != nil {
		return 0, err
	}

	abort := func(cause error) (int64, error) {
		w.Close()
		if delErr := s.blobs.Delete(ctx, permanentKey); delErr != nil && !errors.Is(delErr, blobstore.ErrNotExist) {
			log.Printf("delete partial blob %s failed: %v", permanentKey, delErr)
		}
		return 0, cause
	}

	var size int64
	for i := 0; i < session.TotalChunks; i++ {
		r, err := s.blobs.Read(ctx, s.chunkKey(session.ID, i))
		if err != nil {
			return abort(fmt.Errorf("read chunk %d failed: %w", i, err))
		}
		n, err := io.Copy(w, r)
		r.Close()
		if err != nil {
			return abort(fmt.Errorf("assemble chunk %d failed: %w", i, err))
		}
		size += n
	}

	if err := w.Close(); err != nil {
		if delErr := s.blobs.Delete(ctx, permanentKey); delErr != nil && !errors.Is(delErr, blobstore.ErrNotExist) {
			log.Printf("delete partial blob %s failed: %v", permanentKey, delErr)
		}
		return 0, fmt.Errorf("commit assembled file failed: %w", err)
	}
	return size, nil
}

func (s *UploadService) deleteTempChunks(ctx context.Context, session *upload.Session) {
	for i := 0; i < session.TotalChunks; i++ {
		key := s.chunkKey(session.ID, i)
		if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrNotExist) {
			log.Printf("delete temp chunk %s failed: %v", key, err)
		}
	}
}

func (s *UploadService) publishEvent(ctx context.Context, eventType string, data map[string]any, workspaceID uint) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Publish(ctx, PublishEventInput{
		Type:        eventType,
		Data:        data,
		WorkspaceID: &workspaceID,
	}); err != nil {
		log.Printf("publish %s event failed: %v", eventType, err)
	}
}

func (s *UploadService) chunkKey(uploadID string, index int) string {
	return fmt.Sprintf("%s%s/%05d", s.tempPrefix, uploadID, index)
}

// shouldReportProgress gates upload_progress events: the very first chunk,
// every 20% crossing, and the 90% mark.
func shouldReportProgress(received, total int) bool {
	if received == 1 {
		return true
	}
	percent := received * 100 / total
	previous := (received - 1) * 100 / total
	if percent/20 > previous/20 {
		return true
	}
	return percent >= 90 && previous < 90
}
