package repository

import (
	"errors"
	"time"

	creddomain "github.com/allan-cais/besunny-ai-sub007/internal/credential/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CredentialRepository defines storage access for OAuth credentials.
type CredentialRepository interface {
	FindByUserAndService(userID string, service creddomain.Service) (*creddomain.Credential, error)
	Save(cred *creddomain.Credential) error
	UpdateTokens(id, accessToken, refreshToken string, expiresAt time.Time) error
	Delete(userID string, service creddomain.Service) error
}

type credentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) FindByUserAndService(userID string, service creddomain.Service) (*creddomain.Credential, error) {
	var cred creddomain.Credential
	err := r.db.Where("user_id = ? AND service = ?", userID, service).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) Save(cred *creddomain.Credential) error {
	now := time.Now()
	if cred.ID == "" {
		cred.ID = uuid.New().String()
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	return r.db.Save(cred).Error
}

// UpdateTokens rotates the tokens in a single write. A refresh response
// without a new refresh token keeps the stored one.
func (r *credentialRepository) UpdateTokens(id, accessToken, refreshToken string, expiresAt time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   expiresAt,
		"updated_at":   time.Now(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.Model(&creddomain.Credential{}).Where("id = ?", id).Updates(updates).Error
}

func (r *credentialRepository) Delete(userID string, service creddomain.Service) error {
	return r.db.Where("user_id = ? AND service = ?", userID, service).Delete(&creddomain.Credential{}).Error
}
