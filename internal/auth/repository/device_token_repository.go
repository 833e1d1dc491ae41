package repository

import (
	"time"

	authdomain "github.com/allan-cais/besunny-ai-sub007/internal/auth/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository stores FCM registration tokens per user.
type DeviceTokenRepository interface {
	SaveToken(userID, token string) error
	GetTokensByUserID(userID string) ([]*authdomain.DeviceToken, error)
	DeleteToken(token string) error
}

type deviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

func (r *deviceTokenRepository) SaveToken(userID, token string) error {
	record := &authdomain.DeviceToken{
		Token:     token,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	// Same token re-registered by another session just moves ownership.
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "created_at"}),
	}).Create(record).Error
}

func (r *deviceTokenRepository) GetTokensByUserID(userID string) ([]*authdomain.DeviceToken, error) {
	var tokens []*authdomain.DeviceToken
	err := r.db.Where("user_id = ?", userID).Find(&tokens).Error
	return tokens, err
}

func (r *deviceTokenRepository) DeleteToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.DeviceToken{}).Error
}
