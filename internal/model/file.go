package model

import "time"

// File is the durable record of an uploaded file. The bytes live in the blob
// store under StorageKey; this row is created only by upload finalization (or
// the simple non-chunked upload path) and never mutated afterwards.
type File struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID  uint      `gorm:"not null;index" json:"workspace_id"`
	UploaderID   uint      `gorm:"not null;index" json:"uploader_id"`
	FolderID     *uint     `gorm:"index" json:"folder_id,omitempty"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	MimeType     string    `gorm:"size:128;not null" json:"mime_type"`
	Size         int64     `gorm:"not null" json:"size"`
	StorageKey   string    `gorm:"size:512;not null" json:"storage_key"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
