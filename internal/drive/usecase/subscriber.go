package usecase

import (
	"context"
	"strings"
	"time"

	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	credusecase "github.com/allan-cais/besunny-ai-sub007/internal/credential/usecase"
)

// driveSubscriber opens per-file push channels for the watch registry.
type driveSubscriber struct {
	credUC         credusecase.CredentialUsecase
	api            DriveAPI
	webhookAddress string
}

func NewSubscriber(credUC credusecase.CredentialUsecase, api DriveAPI, webhookAddress string) *driveSubscriber {
	return &driveSubscriber{
		credUC:         credUC,
		api:            api,
		webhookAddress: webhookAddress,
	}
}

func (s *driveSubscriber) Subscribe(ctx context.Context, userID, resourceKey, channelID string) (string, time.Time, *string, error) {
	cred, err := s.credUC.GetValidCredential(ctx, userID, creddomain.ServiceDrive)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	onRefresh := s.credUC.TokenUpdateCallback(userID, creddomain.ServiceDrive)

	fileID := strings.TrimPrefix(resourceKey, ResourcePrefix+":")
	resourceID, expiration, err := s.api.Watch(ctx, cred.AccessToken, cred.RefreshToken, fileID, channelID, s.webhookAddress, onRefresh)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return resourceID, expiration, nil, nil
}
