package model

import "time"

// EventRecord is the audit row written for every published event, whether or
// not any live stream received it.
type EventRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EventID      string    `gorm:"size:36;not null;uniqueIndex" json:"event_id"`
	Type         string    `gorm:"size:64;not null;index" json:"type"`
	Payload      string    `gorm:"type:text" json:"payload"`
	TargetUserID *uint     `gorm:"index" json:"target_user_id,omitempty"`
	WorkspaceID  *uint     `gorm:"index" json:"workspace_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
