package usecase

import (
	"context"
	"time"

	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	credusecase "github.com/allan-cais/besunny-ai-sub007/internal/credential/usecase"
)

// calendarSubscriber opens push channels for primary calendars on behalf of
// the watch registry.
type calendarSubscriber struct {
	credUC         credusecase.CredentialUsecase
	api            CalendarAPI
	webhookAddress string
}

func NewSubscriber(credUC credusecase.CredentialUsecase, api CalendarAPI, webhookAddress string) *calendarSubscriber {
	return &calendarSubscriber{
		credUC:         credUC,
		api:            api,
		webhookAddress: webhookAddress,
	}
}

// Subscribe opens a channel for the user's primary calendar. The sync cursor
// is established by the first reconciliation run, not here.
func (s *calendarSubscriber) Subscribe(ctx context.Context, userID, resourceKey, channelID string) (string, time.Time, *string, error) {
	cred, err := s.credUC.GetValidCredential(ctx, userID, creddomain.ServiceCalendar)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	onRefresh := s.credUC.TokenUpdateCallback(userID, creddomain.ServiceCalendar)

	resourceID, expiration, err := s.api.Watch(ctx, cred.AccessToken, cred.RefreshToken, channelID, s.webhookAddress, onRefresh)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return resourceID, expiration, nil, nil
}
