package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// BotStatus is the closed set of local bot states. Provider vocabulary is
// mapped onto this enum at the orchestrator boundary; raw provider strings
// never reach storage.
type BotStatus string

const (
	BotStatusPending      BotStatus = "pending"
	BotStatusScheduled    BotStatus = "bot_scheduled"
	BotStatusJoined       BotStatus = "bot_joined"
	BotStatusTranscribing BotStatus = "transcribing"
	BotStatusCompleted    BotStatus = "completed"
	BotStatusFailed       BotStatus = "failed"
)

// rank orders the forward progression. failed and completed are terminal.
var rank = map[BotStatus]int{
	BotStatusPending:      0,
	BotStatusScheduled:    1,
	BotStatusJoined:       2,
	BotStatusTranscribing: 3,
	BotStatusCompleted:    4,
	BotStatusFailed:       5,
}

// Advances reports whether moving from prev to next is a forward transition.
// Polls that would regress the state are dropped.
func (next BotStatus) Advances(prev BotStatus) bool {
	if prev == BotStatusCompleted || prev == BotStatusFailed {
		return false
	}
	return rank[next] > rank[prev]
}

// Terminal reports whether no further transitions are expected.
func (s BotStatus) Terminal() bool {
	return s == BotStatusCompleted || s == BotStatusFailed
}

type AttendanceStatus string

const (
	AttendanceAccepted  AttendanceStatus = "accepted"
	AttendanceTentative AttendanceStatus = "tentative"
	AttendanceDeclined  AttendanceStatus = "declined"
)

// TranscriptMeta summarizes a retrieved transcript.
type TranscriptMeta struct {
	WordCount       int      `json:"word_count"`
	CharCount       int      `json:"char_count"`
	DurationSeconds float64  `json:"duration_seconds"`
	Speakers        []string `json:"speakers"`
}

func (m TranscriptMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *TranscriptMeta) Scan(value interface{}) error {
	if value == nil {
		*m = TranscriptMeta{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	if len(bytes) == 0 {
		*m = TranscriptMeta{}
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// Meeting is the local record reconciled against the remote calendar.
// ExternalEventID is the reconciliation key; BotStatus/BotRef/Transcript are
// owned by the bot orchestrator and must survive calendar metadata updates.
type Meeting struct {
	ID                    string           `json:"id" gorm:"primaryKey"`
	UserID                string           `json:"user_id" gorm:"index:idx_user_event,unique;not null"`
	ExternalEventID       string           `json:"external_event_id" gorm:"index:idx_user_event,unique;not null"`
	Title                 string           `json:"title"`
	Description           string           `json:"description"`
	StartTime             time.Time        `json:"start_time" gorm:"index"`
	EndTime               time.Time        `json:"end_time"`
	JoinURL               string           `json:"join_url"`
	AttendanceStatus      AttendanceStatus `json:"attendance_status" gorm:"default:accepted"`
	BotRef                *string          `json:"bot_ref,omitempty" gorm:"index"`
	BotStatus             BotStatus        `json:"bot_status" gorm:"default:pending"`
	Transcript            *string          `json:"transcript,omitempty"`
	TranscriptMeta        TranscriptMeta   `json:"transcript_meta" gorm:"type:text"`
	TranscriptRetrievedAt *time.Time       `json:"transcript_retrieved_at,omitempty"`
	ProjectID             *string          `json:"project_id,omitempty" gorm:"index"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// HasImportantData reports whether a remote cancellation may hard-delete the
// meeting. Bot activity, a project assignment, or a transcript all block
// deletion.
func (m *Meeting) HasImportantData() bool {
	if m.ProjectID != nil {
		return true
	}
	if m.Transcript != nil {
		return true
	}
	return m.BotRef != nil || m.BotStatus != BotStatusPending
}

// Bot is the locally stored half of an externally hosted meeting bot.
// ProviderRef is the provider-assigned identifier used for all polling calls.
type Bot struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	UserID        string    `json:"user_id" gorm:"index;not null"`
	MeetingID     string    `json:"meeting_id" gorm:"uniqueIndex;not null"`
	ProviderRef   string    `json:"provider_ref" gorm:"index;not null"`
	Name          string    `json:"name"`
	Configuration BotConfig `json:"configuration" gorm:"type:text"`
	IsActive      bool      `json:"is_active" gorm:"default:true"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BotConfig is the deployment configuration sent to the provider.
type BotConfig struct {
	BotName         string `json:"bot_name,omitempty"`
	GreetingMessage string `json:"greeting_message,omitempty"`
	RecordingMode   string `json:"recording_mode,omitempty"`
}

func (c BotConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *BotConfig) Scan(value interface{}) error {
	if value == nil {
		*c = BotConfig{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	if len(bytes) == 0 {
		*c = BotConfig{}
		return nil
	}
	return json.Unmarshal(bytes, c)
}
