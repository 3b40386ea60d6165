package services

import (
	"testing"

	"github.com/econify/econify/internal/config"
	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/internal/utils"
	"github.com/econify/econify/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := newTestDB(t)
	return NewAuthService(db, &config.JWTConfig{ExpireHour: 1, RefreshExpireHour: 24}, NewLDAPService(&config.LDAPConfig{}))
}

func registerStudent(t *testing.T, svc *AuthService, email string) *models.User {
	t.Helper()
	u, err := svc.Register(&RegisterRequest{Name: "Student", Email: email, Password: "secret1", Role: models.RoleStudent, Major: "Economics", Year: 2})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	svc := newAuthService(t)

	u := registerStudent(t, svc, "  Alice@Uni.Test ")
	assert.Equal(t, "alice@uni.test", u.Email)
	assert.NotEqual(t, "secret1", u.Password)
	assert.True(t, u.IsActive)

	_, err := svc.Register(&RegisterRequest{Name: "Dup", Email: "alice@uni.test", Password: "secret1", Role: models.RoleStudent})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(&RegisterRequest{Name: "Admin", Email: "admin@uni.test", Password: "secret1", Role: "admin"})
	assert.Equal(t, response.KindValidation, response.KindOf(err))
}

func TestLogin(t *testing.T) {
	svc := newAuthService(t)
	u := registerStudent(t, svc, "bob@uni.test")

	res, err := svc.Login(&LoginRequest{Email: "BOB@uni.test", Password: "secret1"}, "127.0.0.1", "go-test")
	require.NoError(t, err)
	assert.NotEmpty(t, res.RefreshToken)
	require.NotNil(t, res.User.LastLogin)

	claims, err := utils.ParseToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, err = svc.Login(&LoginRequest{Email: "bob@uni.test", Password: "wrong"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(&LoginRequest{Email: "nobody@uni.test", Password: "secret1"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(&LoginRequest{Email: "bob@uni.test", Password: "secret1", AuthType: "ldap"}, "", "")
	assert.Equal(t, response.KindValidation, response.KindOf(err), "ldap is disabled")
}

func TestLogin_DisabledUser(t *testing.T) {
	svc := newAuthService(t)
	u := registerStudent(t, svc, "carol@uni.test")
	require.NoError(t, svc.db.Model(u).Update("is_active", false).Error)

	_, err := svc.Login(&LoginRequest{Email: "carol@uni.test", Password: "secret1"}, "", "")
	assert.Equal(t, response.KindUnauthorized, response.KindOf(err))
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc := newAuthService(t)
	registerStudent(t, svc, "dave@uni.test")

	login, err := svc.Login(&LoginRequest{Email: "dave@uni.test", Password: "secret1"}, "", "")
	require.NoError(t, err)

	rotated, err := svc.Refresh(login.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	_, err = svc.Refresh(login.RefreshToken, "", "")
	assert.Equal(t, response.KindUnauthorized, response.KindOf(err), "old token must be single use")

	_, err = svc.Refresh("not-a-token", "", "")
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	require.NoError(t, svc.RevokeRefreshToken(rotated.RefreshToken))
	_, err = svc.Refresh(rotated.RefreshToken, "", "")
	assert.Equal(t, response.KindUnauthorized, response.KindOf(err))
}

func TestChangePassword(t *testing.T) {
	svc := newAuthService(t)
	u := registerStudent(t, svc, "erin@uni.test")
	login, err := svc.Login(&LoginRequest{Email: "erin@uni.test", Password: "secret1"}, "", "")
	require.NoError(t, err)

	err = svc.ChangePassword(u.ID, &ChangePasswordRequest{OldPassword: "nope", NewPassword: "secret2"})
	assert.Equal(t, response.KindValidation, response.KindOf(err))

	require.NoError(t, svc.ChangePassword(u.ID, &ChangePasswordRequest{OldPassword: "secret1", NewPassword: "secret2"}))

	_, err = svc.Login(&LoginRequest{Email: "erin@uni.test", Password: "secret1"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(&LoginRequest{Email: "erin@uni.test", Password: "secret2"}, "", "")
	assert.NoError(t, err)

	_, err = svc.Refresh(login.RefreshToken, "", "")
	assert.Error(t, err, "refresh tokens are revoked by a password change")
}

func TestEnsureBootstrapProfessor(t *testing.T) {
	svc := newAuthService(t)
	cfg := &config.BootstrapConfig{ProfessorEmail: "head@uni.test", ProfessorPassword: "changeme"}

	require.NoError(t, svc.EnsureBootstrapProfessor(cfg))
	require.NoError(t, svc.EnsureBootstrapProfessor(cfg))

	var count int64
	svc.db.Model(&models.User{}).Where("role = ?", models.RoleProfessor).Count(&count)
	assert.EqualValues(t, 1, count)

	require.NoError(t, svc.EnsureBootstrapProfessor(&config.BootstrapConfig{}))
}
