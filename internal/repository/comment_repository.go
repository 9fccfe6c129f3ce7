package repository

import (
	"fmt"

	"gorm.io/gorm"

	"teamspace/internal/model"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(comment *model.Comment) error {
	if err := r.db.Create(comment).Error; err != nil {
		return fmt.Errorf("create comment failed: %w", err)
	}
	return nil
}

func (r *CommentRepository) ListByTaskID(taskID uint, limit int) ([]model.Comment, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var comments []model.Comment
	if err := r.db.Where("task_id = ?", taskID).Order("created_at ASC").Limit(limit).Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments failed: %w", err)
	}
	return comments, nil
}

func (r *CommentRepository) DeleteByTaskID(taskID uint) error {
	if err := r.db.Where("task_id = ?", taskID).Delete(&model.Comment{}).Error; err != nil {
		return fmt.Errorf("delete comments failed: %w", err)
	}
	return nil
}
