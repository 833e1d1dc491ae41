package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"
	"github.com/allan-cais/besunny-ai-sub007/internal/syncerrors"
	watchdomain "github.com/allan-cais/besunny-ai-sub007/internal/watch/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeCredRepo struct {
	creds map[string]*creddomain.Credential
}

func newFakeCredRepo() *fakeCredRepo {
	return &fakeCredRepo{creds: make(map[string]*creddomain.Credential)}
}

func credKey(userID string, service creddomain.Service) string {
	return userID + "/" + string(service)
}

func (r *fakeCredRepo) FindByUserAndService(userID string, service creddomain.Service) (*creddomain.Credential, error) {
	cred, ok := r.creds[credKey(userID, service)]
	if !ok {
		return nil, nil
	}
	copied := *cred
	return &copied, nil
}

func (r *fakeCredRepo) Save(cred *creddomain.Credential) error {
	if cred.ID == "" {
		cred.ID = "cred-" + credKey(cred.UserID, cred.Service)
	}
	copied := *cred
	r.creds[credKey(cred.UserID, cred.Service)] = &copied
	return nil
}

func (r *fakeCredRepo) UpdateTokens(id, accessToken, refreshToken string, expiresAt time.Time) error {
	for _, cred := range r.creds {
		if cred.ID != id {
			continue
		}
		cred.AccessToken = accessToken
		if refreshToken != "" {
			cred.RefreshToken = refreshToken
		}
		cred.ExpiresAt = expiresAt
	}
	return nil
}

func (r *fakeCredRepo) Delete(userID string, service creddomain.Service) error {
	delete(r.creds, credKey(userID, service))
	return nil
}

type fakeRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type fakeWatchRepo struct {
	watches     map[string]*watchdomain.Watch
	deactivated []string
}

func newFakeWatchRepo() *fakeWatchRepo {
	return &fakeWatchRepo{watches: make(map[string]*watchdomain.Watch)}
}

func (r *fakeWatchRepo) Create(w *watchdomain.Watch) error {
	if w.ID == "" {
		w.ID = "watch-" + w.ResourceKey
	}
	r.watches[w.ID] = w
	return nil
}

func (r *fakeWatchRepo) FindActiveByUserAndResource(userID, resourceKey string) (*watchdomain.Watch, error) {
	for _, w := range r.watches {
		if w.UserID == userID && w.ResourceKey == resourceKey && w.IsActive {
			return w, nil
		}
	}
	return nil, nil
}

func (r *fakeWatchRepo) FindByChannelID(channelID string) (*watchdomain.Watch, error) {
	for _, w := range r.watches {
		if w.ChannelID == channelID {
			return w, nil
		}
	}
	return nil, nil
}

func (r *fakeWatchRepo) FindExpiringBefore(deadline time.Time) ([]*watchdomain.Watch, error) {
	var out []*watchdomain.Watch
	for _, w := range r.watches {
		if w.IsActive && w.Expiration.Before(deadline) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *fakeWatchRepo) ListActiveByUserAndPrefix(userID, prefix string) ([]*watchdomain.Watch, error) {
	var out []*watchdomain.Watch
	for _, w := range r.watches {
		if w.UserID == userID && w.IsActive && w.Source() == prefix {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *fakeWatchRepo) ReplaceChannel(id, channelID, resourceID string, expiration time.Time) error {
	if w, ok := r.watches[id]; ok {
		w.ChannelID = channelID
		w.ResourceID = resourceID
		w.Expiration = expiration
		w.IsActive = true
	}
	return nil
}

func (r *fakeWatchRepo) UpdateCursor(id string, cursor *string) error {
	if w, ok := r.watches[id]; ok {
		w.CursorToken = cursor
	}
	return nil
}

func (r *fakeWatchRepo) Touch(id string, at time.Time) error {
	if w, ok := r.watches[id]; ok {
		w.LastNotificationAt = &at
	}
	return nil
}

func (r *fakeWatchRepo) Deactivate(id string) error {
	if w, ok := r.watches[id]; ok {
		w.IsActive = false
	}
	return nil
}

func (r *fakeWatchRepo) DeactivateByUserAndPrefix(userID, prefix string) error {
	r.deactivated = append(r.deactivated, userID+"/"+prefix)
	for _, w := range r.watches {
		if w.UserID == userID && w.Source() == prefix {
			w.IsActive = false
		}
	}
	return nil
}

func TestGetValidCredentialFresh(t *testing.T) {
	credRepo := newFakeCredRepo()
	refresher := &fakeRefresher{}
	uc := NewCredentialUsecase(credRepo, newFakeWatchRepo(), refresher)

	require.NoError(t, credRepo.Save(&creddomain.Credential{
		UserID:      "u1",
		Service:     creddomain.ServiceCalendar,
		AccessToken: "at-1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	cred, err := uc.GetValidCredential(context.Background(), "u1", creddomain.ServiceCalendar)
	require.NoError(t, err)
	assert.Equal(t, "at-1", cred.AccessToken)
	assert.Zero(t, refresher.calls, "fresh token must not trigger a refresh")
}

func TestGetValidCredentialRefreshesNearExpiry(t *testing.T) {
	credRepo := newFakeCredRepo()
	refresher := &fakeRefresher{token: &oauth2.Token{
		AccessToken:  "at-new",
		RefreshToken: "rt-new",
		Expiry:       time.Now().Add(time.Hour),
	}}
	uc := NewCredentialUsecase(credRepo, newFakeWatchRepo(), refresher)

	require.NoError(t, credRepo.Save(&creddomain.Credential{
		UserID:       "u1",
		Service:      creddomain.ServiceGmail,
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(time.Minute),
	}))

	cred, err := uc.GetValidCredential(context.Background(), "u1", creddomain.ServiceGmail)
	require.NoError(t, err)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "at-new", cred.AccessToken)
	assert.Equal(t, "rt-new", cred.RefreshToken)

	stored, err := credRepo.FindByUserAndService("u1", creddomain.ServiceGmail)
	require.NoError(t, err)
	assert.Equal(t, "at-new", stored.AccessToken, "rotated token must be persisted")
}

func TestGetValidCredentialKeepsStoredRefreshToken(t *testing.T) {
	credRepo := newFakeCredRepo()
	// Google often omits the refresh token on rotation.
	refresher := &fakeRefresher{token: &oauth2.Token{
		AccessToken: "at-new",
		Expiry:      time.Now().Add(time.Hour),
	}}
	uc := NewCredentialUsecase(credRepo, newFakeWatchRepo(), refresher)

	require.NoError(t, credRepo.Save(&creddomain.Credential{
		UserID:       "u1",
		Service:      creddomain.ServiceDrive,
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	cred, err := uc.GetValidCredential(context.Background(), "u1", creddomain.ServiceDrive)
	require.NoError(t, err)
	assert.Equal(t, "rt-old", cred.RefreshToken)

	stored, _ := credRepo.FindByUserAndService("u1", creddomain.ServiceDrive)
	assert.Equal(t, "rt-old", stored.RefreshToken)
}

func TestGetValidCredentialRevokedGrant(t *testing.T) {
	credRepo := newFakeCredRepo()
	refresher := &fakeRefresher{err: &oauth2.RetrieveError{
		Response: &http.Response{StatusCode: http.StatusBadRequest},
	}}
	uc := NewCredentialUsecase(credRepo, newFakeWatchRepo(), refresher)

	require.NoError(t, credRepo.Save(&creddomain.Credential{
		UserID:    "u1",
		Service:   creddomain.ServiceCalendar,
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	_, err := uc.GetValidCredential(context.Background(), "u1", creddomain.ServiceCalendar)
	assert.True(t, errors.Is(err, syncerrors.ErrCredentialExpired))

	stored, _ := credRepo.FindByUserAndService("u1", creddomain.ServiceCalendar)
	assert.NotNil(t, stored, "credential must survive a revoked grant")
}

func TestGetValidCredentialMissing(t *testing.T) {
	uc := NewCredentialUsecase(newFakeCredRepo(), newFakeWatchRepo(), &fakeRefresher{})

	_, err := uc.GetValidCredential(context.Background(), "u1", creddomain.ServiceCalendar)
	assert.True(t, errors.Is(err, syncerrors.ErrCredentialExpired))
}

func TestDisconnectDeactivatesWatches(t *testing.T) {
	credRepo := newFakeCredRepo()
	watchRepo := newFakeWatchRepo()
	uc := NewCredentialUsecase(credRepo, watchRepo, &fakeRefresher{})

	require.NoError(t, credRepo.Save(&creddomain.Credential{
		UserID:  "u1",
		Service: creddomain.ServiceCalendar,
	}))
	require.NoError(t, watchRepo.Create(&watchdomain.Watch{
		UserID:      "u1",
		ResourceKey: "calendar:primary",
		ChannelID:   "ch-1",
		IsActive:    true,
	}))

	require.NoError(t, uc.Disconnect(context.Background(), "u1", creddomain.ServiceCalendar))

	stored, _ := credRepo.FindByUserAndService("u1", creddomain.ServiceCalendar)
	assert.Nil(t, stored)
	w, _ := watchRepo.FindActiveByUserAndResource("u1", "calendar:primary")
	assert.Nil(t, w, "dependent watches must be deactivated")
}
