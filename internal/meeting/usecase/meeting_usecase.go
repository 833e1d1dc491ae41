package usecase

import (
	"fmt"

	meetingdomain "github.com/allan-cais/besunny-ai-sub007/internal/meeting/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/meeting/repository"
)

// MeetingUsecase serves the read API.
type MeetingUsecase interface {
	ListByUser(userID string, limit, offset int) ([]*meetingdomain.Meeting, int64, error)
	GetByID(userID, meetingID string) (*meetingdomain.Meeting, error)
}

type meetingUsecase struct {
	meetingRepo repository.MeetingRepository
}

func NewMeetingUsecase(meetingRepo repository.MeetingRepository) MeetingUsecase {
	return &meetingUsecase{meetingRepo: meetingRepo}
}

func (u *meetingUsecase) ListByUser(userID string, limit, offset int) ([]*meetingdomain.Meeting, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return u.meetingRepo.ListByUser(userID, limit, offset)
}

func (u *meetingUsecase) GetByID(userID, meetingID string) (*meetingdomain.Meeting, error) {
	meeting, err := u.meetingRepo.FindByID(meetingID)
	if err != nil {
		return nil, err
	}
	if meeting == nil || meeting.UserID != userID {
		return nil, fmt.Errorf("meeting %s not found", meetingID)
	}
	return meeting, nil
}
