package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"teamspace/internal/model"
)

type WorkspaceRepository struct {
	db *gorm.DB
}

func NewWorkspaceRepository(db *gorm.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Create inserts the workspace and its owner membership in one transaction.
func (r *WorkspaceRepository) Create(workspace *model.Workspace) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			return err
		}
		member := &model.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      workspace.OwnerID,
			Role:        model.RoleOwner,
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return fmt.Errorf("create workspace failed: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) GetByID(workspaceID uint) (*model.Workspace, error) {
	var workspace model.Workspace
	if err := r.db.First(&workspace, workspaceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get workspace failed: %w", err)
	}
	return &workspace, nil
}

func (r *WorkspaceRepository) ListByUserID(userID uint) ([]model.Workspace, error) {
	var workspaces []model.Workspace
	err := r.db.
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ?", userID).
		Order("workspaces.updated_at DESC").
		Find(&workspaces).Error
	if err != nil {
		return nil, fmt.Errorf("list workspaces failed: %w", err)
	}
	return workspaces, nil
}

func (r *WorkspaceRepository) AddMember(member *model.WorkspaceMember) error {
	if err := r.db.Create(member).Error; err != nil {
		return fmt.Errorf("add workspace member failed: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) IsMember(workspaceID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check workspace membership failed: %w", err)
	}
	return count > 0, nil
}

func (r *WorkspaceRepository) ListMembers(workspaceID uint) ([]model.WorkspaceMember, error) {
	var members []model.WorkspaceMember
	if err := r.db.Where("workspace_id = ?", workspaceID).Order("created_at ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list workspace members failed: %w", err)
	}
	return members, nil
}

func (r *WorkspaceRepository) ListMemberIDs(workspaceID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.WorkspaceMember{}).
		Where("workspace_id = ?", workspaceID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list workspace member ids failed: %w", err)
	}
	return ids, nil
}
