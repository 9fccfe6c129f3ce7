package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"teamspace/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(file *model.File) error {
	if err := r.db.Create(file).Error; err != nil {
		return fmt.Errorf("create file record failed: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(fileID string) (*model.File, error) {
	var file model.File
	if err := r.db.Where("id = ?", fileID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file record failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) ListByWorkspaceID(workspaceID uint) ([]model.File, error) {
	var files []model.File
	if err := r.db.Where("workspace_id = ?", workspaceID).Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list file records failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) Delete(fileID string) error {
	if err := r.db.Where("id = ?", fileID).Delete(&model.File{}).Error; err != nil {
		return fmt.Errorf("delete file record failed: %w", err)
	}
	return nil
}
