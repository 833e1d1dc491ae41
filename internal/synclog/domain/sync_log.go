package domain

import "time"

type Trigger string

const (
	TriggerWebhook Trigger = "webhook"
	TriggerPoll    Trigger = "poll"
	TriggerManual  Trigger = "manual"
)

// SyncLog is an append-only audit row for one reconciliation run. The
// adaptive scheduler reads recent rows to pick the next cadence; rows are
// never mutated after insert.
type SyncLog struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index:idx_user_source_time"`
	Source     string    `json:"source" gorm:"index:idx_user_source_time"` // calendar|email|drive|bot
	Trigger    Trigger   `json:"trigger"`
	Processed  int       `json:"processed"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at" gorm:"index:idx_user_source_time"`
}

// ActivityLog records user interactions and emitted domain events. Like
// SyncLog it is append-only.
type ActivityLog struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index:idx_user_time"`
	Kind      string    `json:"kind"` // e.g. app_opened, calendar_viewed, bot_status_changed, document_created
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_time"`
}
