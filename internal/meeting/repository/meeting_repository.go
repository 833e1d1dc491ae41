package repository

import (
	"errors"
	"time"

	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MeetingRepository defines storage access for meetings. Calendar metadata
// updates and bot-state transitions use separate, guarded write paths so the
// two never clobber each other.
type MeetingRepository interface {
	Create(meeting *meetingdomain.Meeting) error
	FindByID(id string) (*meetingdomain.Meeting, error)
	FindByUserAndEventID(userID, externalEventID string) (*meetingdomain.Meeting, error)
	FindDuplicates(userID, title string, startTime time.Time, excludeID string) ([]*meetingdomain.Meeting, error)
	ListByUser(userID string, limit, offset int) ([]*meetingdomain.Meeting, int64, error)
	ListUpcomingWithBots(cutoff time.Time) ([]*meetingdomain.Meeting, error)
	ListCompletedWithoutTranscript() ([]*meetingdomain.Meeting, error)
	UpdateCalendarFields(id string, fields map[string]interface{}) error
	AdvanceBotStatus(id string, prev, next meetingdomain.BotStatus) (bool, error)
	SetBotRef(id, botRef string, status meetingdomain.BotStatus) error
	CompleteWithTranscript(id string, prev meetingdomain.BotStatus, transcript string, meta meetingdomain.TranscriptMeta, retrievedAt time.Time) (bool, error)
	MarkCancelled(id string, failBot bool) error
	Delete(id string) error
}

type meetingRepository struct {
	db *gorm.DB
}

func NewMeetingRepository(db *gorm.DB) MeetingRepository {
	return &meetingRepository{db: db}
}

func (r *meetingRepository) Create(meeting *meetingdomain.Meeting) error {
	now := time.Now()
	if meeting.ID == "" {
		meeting.ID = uuid.New().String()
	}
	if meeting.BotStatus == "" {
		meeting.BotStatus = meetingdomain.BotStatusPending
	}
	if meeting.AttendanceStatus == "" {
		meeting.AttendanceStatus = meetingdomain.AttendanceAccepted
	}
	meeting.CreatedAt = now
	meeting.UpdatedAt = now
	return r.db.Create(meeting).Error
}

func (r *meetingRepository) FindByID(id string) (*meetingdomain.Meeting, error) {
	var meeting meetingdomain.Meeting
	err := r.db.Where("id = ?", id).First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

func (r *meetingRepository) FindByUserAndEventID(userID, externalEventID string) (*meetingdomain.Meeting, error) {
	var meeting meetingdomain.Meeting
	err := r.db.Where("user_id = ? AND external_event_id = ?", userID, externalEventID).First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

// FindDuplicates returns other meetings of the same user that share title and
// start time, used by the cancellation pass to suppress duplicate rows before
// applying the delete-vs-cancel rule.
func (r *meetingRepository) FindDuplicates(userID, title string, startTime time.Time, excludeID string) ([]*meetingdomain.Meeting, error) {
	var meetings []*meetingdomain.Meeting
	err := r.db.Where("user_id = ? AND title = ? AND start_time = ? AND id <> ?", userID, title, startTime, excludeID).
		Find(&meetings).Error
	return meetings, err
}

func (r *meetingRepository) ListByUser(userID string, limit, offset int) ([]*meetingdomain.Meeting, int64, error) {
	var meetings []*meetingdomain.Meeting
	var total int64

	query := r.db.Model(&meetingdomain.Meeting{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("start_time DESC").Limit(limit).Offset(offset).Find(&meetings).Error
	return meetings, total, err
}

// ListUpcomingWithBots returns meetings with a non-terminal bot that still
// needs polling.
func (r *meetingRepository) ListUpcomingWithBots(cutoff time.Time) ([]*meetingdomain.Meeting, error) {
	var meetings []*meetingdomain.Meeting
	err := r.db.Where("bot_ref IS NOT NULL AND bot_status NOT IN ? AND end_time > ?",
		[]meetingdomain.BotStatus{meetingdomain.BotStatusCompleted, meetingdomain.BotStatusFailed}, cutoff).
		Find(&meetings).Error
	return meetings, err
}

// ListCompletedWithoutTranscript returns the transcript-retrieval retry set.
func (r *meetingRepository) ListCompletedWithoutTranscript() ([]*meetingdomain.Meeting, error) {
	var meetings []*meetingdomain.Meeting
	err := r.db.Where("bot_status = ? AND transcript IS NULL", meetingdomain.BotStatusCompleted).
		Find(&meetings).Error
	return meetings, err
}

// UpdateCalendarFields applies a calendar-sourced metadata update. Callers
// pass only calendar-owned columns; bot_status, bot_ref and transcript
// columns are never part of the map.
func (r *meetingRepository) UpdateCalendarFields(id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.Model(&meetingdomain.Meeting{}).Where("id = ?", id).Updates(fields).Error
}

// AdvanceBotStatus persists a forward transition only when the stored status
// still equals prev. Returns false when another invocation won the race or
// the transition would regress.
func (r *meetingRepository) AdvanceBotStatus(id string, prev, next meetingdomain.BotStatus) (bool, error) {
	if !next.Advances(prev) {
		return false, nil
	}
	res := r.db.Model(&meetingdomain.Meeting{}).
		Where("id = ? AND bot_status = ?", id, prev).
		Updates(map[string]interface{}{
			"bot_status": next,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *meetingRepository) SetBotRef(id, botRef string, status meetingdomain.BotStatus) error {
	return r.db.Model(&meetingdomain.Meeting{}).Where("id = ?", id).Updates(map[string]interface{}{
		"bot_ref":    botRef,
		"bot_status": status,
		"updated_at": time.Now(),
	}).Error
}

// CompleteWithTranscript writes status, transcript, metadata and the
// retrieval timestamp in one atomic update, conditioned on the previous
// status and an empty transcript so a second poll after completion is a no-op.
func (r *meetingRepository) CompleteWithTranscript(id string, prev meetingdomain.BotStatus, transcript string, meta meetingdomain.TranscriptMeta, retrievedAt time.Time) (bool, error) {
	res := r.db.Model(&meetingdomain.Meeting{}).
		Where("id = ? AND bot_status = ? AND transcript IS NULL", id, prev).
		Updates(map[string]interface{}{
			"bot_status":              meetingdomain.BotStatusCompleted,
			"transcript":              transcript,
			"transcript_meta":         meta,
			"transcript_retrieved_at": retrievedAt,
			"updated_at":              time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkCancelled flags a remote-cancelled meeting as declined. A mid-flight
// bot is forced to failed in the same write so it is never silently orphaned.
func (r *meetingRepository) MarkCancelled(id string, failBot bool) error {
	updates := map[string]interface{}{
		"attendance_status": meetingdomain.AttendanceDeclined,
		"updated_at":        time.Now(),
	}
	if failBot {
		updates["bot_status"] = meetingdomain.BotStatusFailed
	}
	return r.db.Model(&meetingdomain.Meeting{}).Where("id = ?", id).Updates(updates).Error
}

func (r *meetingRepository) Delete(id string) error {
	return r.db.Delete(&meetingdomain.Meeting{}, "id = ?", id).Error
}
