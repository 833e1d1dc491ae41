package domain

import "time"

// Watch is a durable record of a provider-side push subscription. The partial
// unique index enforces at most one active watch per (user_id, resource_key);
// deactivated rows stay behind for audit. The cursor survives channel renewals
// so no events are lost.
type Watch struct {
	ID                 string     `json:"id" gorm:"primaryKey"`
	UserID             string     `json:"user_id" gorm:"index:idx_active_user_resource,unique,where:is_active,priority:1;not null"`
	ResourceKey        string     `json:"resource_key" gorm:"index:idx_active_user_resource,unique,where:is_active,priority:2;not null"` // e.g. "calendar:primary", "drive:<fileID>"
	ChannelID          string     `json:"channel_id" gorm:"uniqueIndex;not null"`
	ResourceID         string     `json:"resource_id"`
	CursorToken        *string    `json:"cursor_token,omitempty"`
	Expiration         time.Time  `json:"expiration"`
	LastNotificationAt *time.Time `json:"last_notification_at,omitempty"`
	IsActive           bool       `json:"is_active" gorm:"index;default:true"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Source returns the prefix of the resource key ("calendar", "drive", "gmail").
func (w *Watch) Source() string {
	for i := 0; i < len(w.ResourceKey); i++ {
		if w.ResourceKey[i] == ':' {
			return w.ResourceKey[:i]
		}
	}
	return w.ResourceKey
}
