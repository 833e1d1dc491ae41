package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/credential/repository"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	watchrepo "github.com/allan-cais/besunny-ai-sub007/internal/watch/repository"
	"github.com/allan-cais/besunny-ai-sub007/pkg/googleauth"

	"golang.org/x/oauth2"
)

// refreshLookahead is how close to expiry a token is refreshed before use.
const refreshLookahead = 5 * time.Minute

// TokenRefresher exchanges a refresh token for a fresh access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// CredentialUsecase is the single point where token freshness is guaranteed.
// Components never read stored tokens directly.
type CredentialUsecase interface {
	GetValidCredential(ctx context.Context, userID string, service creddomain.Service) (*creddomain.Credential, error)
	StoreCredential(userID string, service creddomain.Service, token *oauth2.Token, scope string) error
	Disconnect(ctx context.Context, userID string, service creddomain.Service) error
	// TokenUpdateCallback persists tokens rotated inside a long-lived API
	// client (the notifying token source).
	TokenUpdateCallback(userID string, service creddomain.Service) googleauth.TokenUpdateFunc
}

type credentialUsecase struct {
	credRepo  repository.CredentialRepository
	watchRepo watchrepo.WatchRepository
	refresher TokenRefresher
}

func NewCredentialUsecase(credRepo repository.CredentialRepository, watchRepo watchrepo.WatchRepository, refresher TokenRefresher) CredentialUsecase {
	return &credentialUsecase{
		credRepo:  credRepo,
		watchRepo: watchRepo,
		refresher: refresher,
	}
}

func (u *credentialUsecase) GetValidCredential(ctx context.Context, userID string, service creddomain.Service) (*creddomain.Credential, error) {
	cred, err := u.credRepo.FindByUserAndService(userID, service)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: no %s credential for user %s", syncerrors.ErrCredentialExpired, service, userID)
	}

	if time.Until(cred.ExpiresAt) > refreshLookahead {
		return cred, nil
	}

	token, err := u.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		// The credential is kept even when the grant is revoked; the user
		// re-connects, and callers decide whether dependent watches go stale.
		classified := syncerrors.FromTokenRefresh(err)
		log.Printf("[Credentials] Refresh failed for user %s service %s: %v", userID, service, classified)
		return nil, classified
	}

	if err := u.credRepo.UpdateTokens(cred.ID, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		return nil, err
	}

	cred.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}
	cred.ExpiresAt = token.Expiry
	return cred, nil
}

func (u *credentialUsecase) StoreCredential(userID string, service creddomain.Service, token *oauth2.Token, scope string) error {
	existing, err := u.credRepo.FindByUserAndService(userID, service)
	if err != nil {
		return err
	}
	if existing != nil {
		return u.credRepo.UpdateTokens(existing.ID, token.AccessToken, token.RefreshToken, token.Expiry)
	}

	cred := &creddomain.Credential{
		UserID:       userID,
		Service:      service,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Scope:        scope,
	}
	return u.credRepo.Save(cred)
}

// Disconnect removes the credential and deactivates the watches that depend
// on it.
func (u *credentialUsecase) Disconnect(ctx context.Context, userID string, service creddomain.Service) error {
	if err := u.credRepo.Delete(userID, service); err != nil {
		return err
	}
	prefix := watchPrefix(service)
	if prefix != "" {
		if err := u.watchRepo.DeactivateByUserAndPrefix(userID, prefix); err != nil {
			log.Printf("[Credentials] Failed to deactivate %s watches for user %s: %v", prefix, userID, err)
			return err
		}
	}
	return nil
}

func (u *credentialUsecase) TokenUpdateCallback(userID string, service creddomain.Service) googleauth.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		cred, err := u.credRepo.FindByUserAndService(userID, service)
		if err != nil {
			return err
		}
		if cred == nil {
			return nil
		}
		return u.credRepo.UpdateTokens(cred.ID, token.AccessToken, token.RefreshToken, token.Expiry)
	}
}

func watchPrefix(service creddomain.Service) string {
	switch service {
	case creddomain.ServiceCalendar:
		return "calendar"
	case creddomain.ServiceGmail:
		return "gmail"
	case creddomain.ServiceDrive:
		return "drive"
	}
	return ""
}
