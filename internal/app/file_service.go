package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"teamspace/internal/blobstore"
	"teamspace/internal/model"
	"teamspace/internal/repository"
)

var ErrFileNotFound = errors.New("file not found")

// FileService covers the non-chunked file surface: the simple single-request
// upload path plus list/download/delete.
type FileService struct {
	fileRepo    *repository.FileRepository
	blobs       *blobstore.Store
	members     MembershipChecker
	events      EventSink
	maxFileSize int64
}

type SimpleUploadInput struct {
	UserID      uint
	WorkspaceID uint
	FolderID    *uint
	FileName    string
	MimeType    string
	Size        int64
	Body        io.Reader
}

func NewFileService(
	fileRepo *repository.FileRepository,
	blobs *blobstore.Store,
	members MembershipChecker,
	events EventSink,
	maxFileSize int64,
) *FileService {
	return &FileService{
		fileRepo:    fileRepo,
		blobs:       blobs,
		members:     members,
		events:      events,
		maxFileSize: maxFileSize,
	}
}

func (s *FileService) Upload(ctx context.Context, input SimpleUploadInput) (*model.File, error) {
	if input.UserID == 0 || input.WorkspaceID == 0 || strings.TrimSpace(input.FileName) == "" || input.Body == nil {
		return nil, ErrInvalidInput
	}
	if input.Size > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	isMember, err := s.members.IsMember(ctx, input.WorkspaceID, input.UserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}

	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	fileID := uuid.NewString()
	key := fmt.Sprintf("workspaces/%d/files/%s%s", input.WorkspaceID, fileID, filepath.Ext(input.FileName))

	size, err := s.blobs.Write(ctx, key, io.LimitReader(input.Body, s.maxFileSize+1), mimeType)
	if err != nil {
		return nil, err
	}
	if size > s.maxFileSize {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			log.Printf("delete oversized blob %s failed: %v", key, delErr)
		}
		return nil, ErrFileTooLarge
	}

	record := &model.File{
		ID:           fileID,
		WorkspaceID:  input.WorkspaceID,
		UploaderID:   input.UserID,
		FolderID:     input.FolderID,
		Name:         input.FileName,
		OriginalName: input.FileName,
		MimeType:     mimeType,
		Size:         size,
		StorageKey:   key,
	}
	if err := s.fileRepo.Create(record); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			log.Printf("delete orphaned blob %s failed: %v", key, delErr)
		}
		return nil, err
	}

	if s.events != nil {
		workspaceID := input.WorkspaceID
		if _, err := s.events.Publish(ctx, PublishEventInput{
			Type: "file_uploaded",
			Data: map[string]any{
				"file_id":      fileID,
				"file_name":    record.Name,
				"size":         size,
				"uploader_id":  input.UserID,
				"workspace_id": workspaceID,
			},
			WorkspaceID: &workspaceID,
		}); err != nil {
			log.Printf("publish file_uploaded event failed: %v", err)
		}
	}
	return record, nil
}

func (s *FileService) List(ctx context.Context, userID, workspaceID uint) ([]model.File, error) {
	if userID == 0 || workspaceID == 0 {
		return nil, ErrInvalidInput
	}

	isMember, err := s.members.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}
	return s.fileRepo.ListByWorkspaceID(workspaceID)
}

// Download returns the file record and a reader over its bytes. The caller
// closes the reader.
func (s *FileService) Download(ctx context.Context, userID uint, fileID string) (*model.File, io.ReadCloser, error) {
	record, err := s.authorize(ctx, userID, fileID)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.blobs.Read(ctx, record.StorageKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotExist) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, err
	}
	return record, reader, nil
}

func (s *FileService) Delete(ctx context.Context, userID uint, fileID string) error {
	record, err := s.authorize(ctx, userID, fileID)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, record.StorageKey); err != nil && !errors.Is(err, blobstore.ErrNotExist) {
		return err
	}
	return s.fileRepo.Delete(record.ID)
}

func (s *FileService) authorize(ctx context.Context, userID uint, fileID string) (*model.File, error) {
	if userID == 0 || strings.TrimSpace(fileID) == "" {
		return nil, ErrInvalidInput
	}

	record, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrFileNotFound
	}

	isMember, err := s.members.IsMember(ctx, record.WorkspaceID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}
	return record, nil
}
