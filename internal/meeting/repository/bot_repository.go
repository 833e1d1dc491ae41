package repository

import (
	"errors"
	"time"

	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BotRepository defines storage access for deployed meeting bots.
type BotRepository interface {
	Create(bot *meetingdomain.Bot) error
	FindByMeetingID(meetingID string) (*meetingdomain.Bot, error)
	Deactivate(id string) error
}

type botRepository struct {
	db *gorm.DB
}

func NewBotRepository(db *gorm.DB) BotRepository {
	return &botRepository{db: db}
}

func (r *botRepository) Create(bot *meetingdomain.Bot) error {
	now := time.Now()
	if bot.ID == "" {
		bot.ID = uuid.New().String()
	}
	bot.CreatedAt = now
	bot.UpdatedAt = now
	return r.db.Create(bot).Error
}

func (r *botRepository) FindByMeetingID(meetingID string) (*meetingdomain.Bot, error) {
	var bot meetingdomain.Bot
	err := r.db.Where("meeting_id = ?", meetingID).First(&bot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bot, nil
}

func (r *botRepository) Deactivate(id string) error {
	return r.db.Model(&meetingdomain.Bot{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_active":  false,
		"updated_at": time.Now(),
	}).Error
}
