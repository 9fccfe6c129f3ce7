package model

import "time"

type Workspace struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type WorkspaceMember struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"not null;uniqueIndex:idx_workspace_user" json:"workspace_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_workspace_user" json:"user_id"`
	Role        string    `gorm:"size:16;not null;default:member" json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}
