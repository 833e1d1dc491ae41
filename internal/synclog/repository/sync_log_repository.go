package repository

import (
	"errors"
	"time"

	logdomain "github.com/allan-cais/besunny-ai-sub007/internal/synclog/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncLogRepository appends reconciliation audit rows and serves the
// adaptive scheduler's recent-signal queries. Rows are never updated.
type SyncLogRepository interface {
	Append(entry *logdomain.SyncLog) error
	LastByUserAndSource(userID, source string) (*logdomain.SyncLog, error)
	RecentByUserAndSource(userID, source string, since time.Time) ([]*logdomain.SyncLog, error)
}

// ActivityLogRepository appends interaction/domain-event rows.
type ActivityLogRepository interface {
	Append(entry *logdomain.ActivityLog) error
	LastByUserAndKinds(userID string, kinds []string) (*logdomain.ActivityLog, error)
}

type syncLogRepository struct {
	db *gorm.DB
}

func NewSyncLogRepository(db *gorm.DB) SyncLogRepository {
	return &syncLogRepository{db: db}
}

func (r *syncLogRepository) Append(entry *logdomain.SyncLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()
	return r.db.Create(entry).Error
}

func (r *syncLogRepository) LastByUserAndSource(userID, source string) (*logdomain.SyncLog, error) {
	var entry logdomain.SyncLog
	err := r.db.Where("user_id = ? AND source = ?", userID, source).
		Order("created_at DESC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *syncLogRepository) RecentByUserAndSource(userID, source string, since time.Time) ([]*logdomain.SyncLog, error) {
	var entries []*logdomain.SyncLog
	err := r.db.Where("user_id = ? AND source = ? AND created_at >= ?", userID, source, since).
		Order("created_at DESC").Find(&entries).Error
	return entries, err
}

type activityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Append(entry *logdomain.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()
	return r.db.Create(entry).Error
}

func (r *activityLogRepository) LastByUserAndKinds(userID string, kinds []string) (*logdomain.ActivityLog, error) {
	var entry logdomain.ActivityLog
	err := r.db.Where("user_id = ? AND kind IN ?", userID, kinds).
		Order("created_at DESC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}
