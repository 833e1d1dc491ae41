package usecase

import (
	"context"
	"time"

	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	credusecase "github.com/allan-cais/besunny-ai-sub007/internal/credential/usecase"
)

// gmailSubscriber registers mailbox push notifications for the watch
// registry. Gmail delivers through Pub/Sub rather than per-channel webhooks,
// so the channel id only keys the local row; the returned cursor is the
// mailbox's history baseline.
type gmailSubscriber struct {
	credUC    credusecase.CredentialUsecase
	gmail     GmailAPI
	topicName string
}

func NewSubscriber(credUC credusecase.CredentialUsecase, gmail GmailAPI, topicName string) *gmailSubscriber {
	return &gmailSubscriber{
		credUC:    credUC,
		gmail:     gmail,
		topicName: topicName,
	}
}

func (s *gmailSubscriber) Subscribe(ctx context.Context, userID, resourceKey, channelID string) (string, time.Time, *string, error) {
	cred, err := s.credUC.GetValidCredential(ctx, userID, creddomain.ServiceGmail)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	onRefresh := s.credUC.TokenUpdateCallback(userID, creddomain.ServiceGmail)

	cursor, expiration, err := s.gmail.Watch(ctx, cred.AccessToken, cred.RefreshToken, s.topicName, onRefresh)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return "", expiration, &cursor, nil
}
