package repository

import (
	"errors"
	"time"

	watchdomain "github.com/allan-cais/besunny-ai-sub007/internal/watch/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WatchRepository defines storage access for notification subscriptions.
type WatchRepository interface {
	Create(watch *watchdomain.Watch) error
	FindActiveByUserAndResource(userID, resourceKey string) (*watchdomain.Watch, error)
	FindByChannelID(channelID string) (*watchdomain.Watch, error)
	FindExpiringBefore(deadline time.Time) ([]*watchdomain.Watch, error)
	ListActiveByUserAndPrefix(userID, resourcePrefix string) ([]*watchdomain.Watch, error)
	ReplaceChannel(id, channelID, resourceID string, expiration time.Time) error
	UpdateCursor(id string, cursor *string) error
	Touch(id string, at time.Time) error
	Deactivate(id string) error
	DeactivateByUserAndPrefix(userID, resourcePrefix string) error
}

type watchRepository struct {
	db *gorm.DB
}

func NewWatchRepository(db *gorm.DB) WatchRepository {
	return &watchRepository{db: db}
}

// Create inserts the watch. A concurrent invocation may have registered an
// active watch for the same (user, resource) between the caller's lookup and
// this insert; the partial unique index rejects the second row, and the stored
// watch is returned through the argument so callers adopt the winner.
func (r *watchRepository) Create(watch *watchdomain.Watch) error {
	now := time.Now()
	if watch.ID == "" {
		watch.ID = uuid.New().String()
	}
	watch.CreatedAt = now
	watch.UpdatedAt = now
	if err := r.db.Create(watch).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, findErr := r.FindActiveByUserAndResource(watch.UserID, watch.ResourceKey); findErr == nil && existing != nil {
				*watch = *existing
				return nil
			}
		}
		return err
	}
	return nil
}

func (r *watchRepository) FindActiveByUserAndResource(userID, resourceKey string) (*watchdomain.Watch, error) {
	var watch watchdomain.Watch
	err := r.db.Where("user_id = ? AND resource_key = ? AND is_active = ?", userID, resourceKey, true).First(&watch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &watch, nil
}

func (r *watchRepository) FindByChannelID(channelID string) (*watchdomain.Watch, error) {
	var watch watchdomain.Watch
	err := r.db.Where("channel_id = ?", channelID).First(&watch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &watch, nil
}

func (r *watchRepository) FindExpiringBefore(deadline time.Time) ([]*watchdomain.Watch, error) {
	var watches []*watchdomain.Watch
	err := r.db.Where("is_active = ? AND expiration < ?", true, deadline).Find(&watches).Error
	return watches, err
}

func (r *watchRepository) ListActiveByUserAndPrefix(userID, resourcePrefix string) ([]*watchdomain.Watch, error) {
	var watches []*watchdomain.Watch
	err := r.db.Where("user_id = ? AND is_active = ? AND resource_key LIKE ?", userID, true, resourcePrefix+":%").Find(&watches).Error
	return watches, err
}

// ReplaceChannel atomically swaps the provider channel identifiers on
// renewal. The cursor column is deliberately untouched so no events are lost
// across the swap.
func (r *watchRepository) ReplaceChannel(id, channelID, resourceID string, expiration time.Time) error {
	return r.db.Model(&watchdomain.Watch{}).Where("id = ?", id).Updates(map[string]interface{}{
		"channel_id":  channelID,
		"resource_id": resourceID,
		"expiration":  expiration,
		"is_active":   true,
		"updated_at":  time.Now(),
	}).Error
}

func (r *watchRepository) UpdateCursor(id string, cursor *string) error {
	return r.db.Model(&watchdomain.Watch{}).Where("id = ?", id).Updates(map[string]interface{}{
		"cursor_token": cursor,
		"updated_at":   time.Now(),
	}).Error
}

func (r *watchRepository) Touch(id string, at time.Time) error {
	return r.db.Model(&watchdomain.Watch{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_notification_at": at,
		"updated_at":           time.Now(),
	}).Error
}

func (r *watchRepository) Deactivate(id string) error {
	return r.db.Model(&watchdomain.Watch{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_active":  false,
		"updated_at": time.Now(),
	}).Error
}

func (r *watchRepository) DeactivateByUserAndPrefix(userID, resourcePrefix string) error {
	return r.db.Model(&watchdomain.Watch{}).
		Where("user_id = ? AND resource_key LIKE ?", userID, resourcePrefix+":%").
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		}).Error
}
