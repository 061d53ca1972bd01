package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edusys-ar/escuela-api/internal/models"
	appErrors "github.com/edusys-ar/escuela-api/pkg/errors"
)

type mockAuthRepo struct {
	users    map[string]models.User
	profiles map[int64]models.UserProfile
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m.users[username]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindProfileByUserID(ctx context.Context, userID int64) (*models.UserProfile, error) {
	if p, ok := m.profiles[userID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthRepo) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockAuthRepo{
		users: map[string]models.User{
			"admin": {ID: 1, Username: "admin", PasswordHash: string(hash)},
			"ana":   {ID: 3, Username: "ana", PasswordHash: string(hash)},
		},
		profiles: map[int64]models.UserProfile{
			1: {ID: 8, UserID: 1, Role: models.RoleAdmin},
			3: {ID: 9, UserID: 3, Role: models.RoleStudent},
		},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "escuela-api",
	})
	return svc, repo
}

func TestAuthLoginIssuesTypedClaims(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.NotEmpty(t, resp.Token)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthLoginStudentRole(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
}

func TestAuthLoginDefaultsRoleWithoutProfile(t *testing.T) {
	svc, repo := newAuthFixture(t)
	delete(repo.profiles, 3)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsTampered(t *testing.T) {
	svc, _ := newAuthFixture(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.Token + "x")
	require.Error(t, err)

	other := NewAuthService(&mockAuthRepo{}, validator.New(), zap.NewNop(), AuthConfig{Secret: "different", Expiration: time.Hour})
	_, err = other.ValidateToken(resp.Token)
	require.Error(t, err)
}
