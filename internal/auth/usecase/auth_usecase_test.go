package usecase

import (
	"testing"

	authdomain "github.com/allan-cais/besunny-ai-sub007/internal/auth/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	users []*authdomain.User
}

func (r *fakeUserRepo) Create(user *authdomain.User) error {
	r.users = append(r.users, user)
	return nil
}

func (r *fakeUserRepo) FindByID(id string) (*authdomain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByUsername(username string) (*authdomain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ListAll() ([]*authdomain.User, error) { return r.users, nil }

func (r *fakeUserRepo) Update(user *authdomain.User) error { return nil }

func TestTokenRoundTrip(t *testing.T) {
	repo := &fakeUserRepo{users: []*authdomain.User{
		{ID: "u1", Email: "ada@example.com", Username: "ada"},
	}}
	uc := NewAuthUsecase(repo, "test-secret")

	token, err := uc.GenerateToken("u1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	user, err := uc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	repo := &fakeUserRepo{users: []*authdomain.User{{ID: "u1"}}}

	token, err := NewAuthUsecase(repo, "secret-a").GenerateToken("u1")
	require.NoError(t, err)

	_, err = NewAuthUsecase(repo, "secret-b").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenUnknownUser(t *testing.T) {
	uc := NewAuthUsecase(&fakeUserRepo{}, "test-secret")

	token, err := uc.GenerateToken("ghost")
	require.NoError(t, err)

	_, err = uc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	uc := NewAuthUsecase(&fakeUserRepo{}, "test-secret")

	_, err := uc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
