package domain

import "time"

type Source string

const (
	SourceCalendar Source = "calendar"
	SourceEmail    Source = "email"
	SourceDrive    Source = "drive"
)

type ClassificationStatus string

const (
	ClassificationPending ClassificationStatus = "pending"
	ClassificationDone    ClassificationStatus = "classified"
	ClassificationUpdated ClassificationStatus = "updated"
	ClassificationDeleted ClassificationStatus = "deleted"
)

// Document is a workspace item fed by one of the sync sources. It is created
// unassigned (ProjectID nil) and classified later by the external
// collaborator. (user_id, source, source_ref) is the idempotence key.
type Document struct {
	ID        string               `json:"id" gorm:"primaryKey"`
	UserID    string               `json:"user_id" gorm:"index:idx_user_source_ref,unique;not null"`
	ProjectID *string              `json:"project_id,omitempty" gorm:"index"`
	Source    Source               `json:"source" gorm:"index:idx_user_source_ref,unique;not null"`
	SourceRef string               `json:"source_ref" gorm:"index:idx_user_source_ref,unique;not null"`
	Title     string               `json:"title"`
	Content   string               `json:"content"`
	Status    ClassificationStatus `json:"classification_status" gorm:"column:classification_status;default:pending"`
	// LastSyncedAt holds the remote modification time last reconciled by the
	// drive poller. Classification writes move UpdatedAt but never this
	// column, so a status update cannot mask a remote change.
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
