package repository

import (
	"fmt"

	"gorm.io/gorm"

	"teamspace/internal/model"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(record *model.EventRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("create event record failed: %w", err)
	}
	return nil
}

func (r *EventRepository) ListByWorkspaceID(workspaceID uint, limit int) ([]model.EventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var records []model.EventRecord
	err := r.db.Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list event records failed: %w", err)
	}
	return records, nil
}
