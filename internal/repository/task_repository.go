package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"teamspace/internal/model"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(task *model.Task) error {
	if err := r.db.Create(task).Error; err != nil {
		return fmt.Errorf("create task failed: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task failed: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) ListByWorkspaceID(workspaceID uint, status string) ([]model.Task, error) {
	query := r.db.Where("workspace_id = ?", workspaceID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var tasks []model.Task
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks failed: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) Update(task *model.Task) error {
	if err := r.db.Save(task).Error; err != nil {
		return fmt.Errorf("update task failed: %w", err)
	}
	return nil
}

func (r *TaskRepository) Delete(taskID uint) error {
	if err := r.db.Delete(&model.Task{}, taskID).Error; err != nil {
		return fmt.Errorf("delete task failed: %w", err)
	}
	return nil
}
