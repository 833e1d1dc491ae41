package domain

import "time"

// Service identifies the external system a credential belongs to.
type Service string

const (
	ServiceCalendar Service = "google_calendar"
	ServiceGmail    Service = "google_gmail"
	ServiceDrive    Service = "google_drive"
)

// Credential holds the OAuth tokens for one (user, service) pair. Only the
// credential usecase reads or rotates the tokens; everything else goes
// through GetValidCredential.
type Credential struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"index:idx_user_service,unique;not null"`
	Service      Service   `json:"service" gorm:"index:idx_user_service,unique;not null"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
