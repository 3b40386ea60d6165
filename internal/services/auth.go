package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/econify/econify/internal/config"
	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/internal/utils"
	"github.com/econify/econify/pkg/logger"
	"github.com/econify/econify/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = response.NewUnauthorized("invalid email or password")
	ErrEmailTaken         = response.NewConflict("email is already registered")
	ErrInvalidRefresh     = response.NewUnauthorized("invalid refresh token")
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapService *LDAPService) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: ldapService,
		jwtConfig:   jwtCfg,
	}
}

type RegisterRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	Role       string `json:"role" binding:"required,userrole"`
	Department string `json:"department"`
	Major      string `json:"major"`
	Year       int    `json:"year" binding:"omitempty,min=1,max=10"`
	Office     string `json:"office"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"authType"` // local, ldap
}

type LoginResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	User            *models.User
}

type RefreshResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a local account.
func (s *AuthService) Register(req *RegisterRequest) (*models.User, error) {
	if !models.ValidRole(req.Role) {
		return nil, response.NewBadRequest("role must be student or professor")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:       strings.TrimSpace(req.Name),
		Email:      normalizeEmail(req.Email),
		Password:   hashed,
		Role:       req.Role,
		AuthType:   models.AuthTypeLocal,
		Department: req.Department,
		Major:      req.Major,
		Year:       req.Year,
		Office:     req.Office,
		IsActive:   true,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// Login authenticates a user and issues an access and a refresh token.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user *models.User
	var err error

	switch req.AuthType {
	case "", models.AuthTypeLocal:
		user, err = s.localAuth(req.Email, req.Password)
	case models.AuthTypeLDAP:
		user, err = s.ldapAuth(req.Email, req.Password)
	default:
		return nil, response.NewBadRequest("invalid auth type")
	}
	if err != nil {
		return nil, err
	}

	token, accessExpireAt, err := s.issueAccessToken(user.ID)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	refreshRecord := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   now.Add(time.Duration(s.jwtConfig.RefreshExpireHour) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := s.db.Create(&refreshRecord).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record last login")
	}
	user.LastLogin = &now

	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshRecord.ExpiresAt,
		User:            user,
	}, nil
}

func (s *AuthService) issueAccessToken(userID uint) (string, time.Time, error) {
	hours := s.jwtConfig.ExpireHour
	if hours <= 0 {
		hours = 1
	}
	token, err := utils.GenerateToken(userID, hours)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().Add(time.Duration(hours) * time.Hour), nil
}

// Refresh rotates a refresh token: the presented one is revoked and replaced
// in the same transaction.
func (s *AuthService) Refresh(refreshToken string, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, response.NewBadRequest("refresh token required")
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if stored.RevokedAt != nil {
		return nil, response.NewUnauthorized("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, response.NewUnauthorized("refresh token expired")
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}

	accessToken, accessExpireAt, err := s.issueAccessToken(user.ID)
	if err != nil {
		return nil, err
	}
	newRefreshToken, newRefreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newRefresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   newRefreshHash,
		ExpiresAt:   now.Add(time.Duration(s.jwtConfig.RefreshExpireHour) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		// the revoked_at guard makes a concurrent second use of the same token lose
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": newRefresh.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewUnauthorized("refresh token revoked")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &RefreshResult{
		AccessToken:     accessToken,
		AccessExpireAt:  accessExpireAt,
		RefreshToken:    newRefreshToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
	}, nil
}

func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) localAuth(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND auth_type = ?", normalizeEmail(email), models.AuthTypeLocal).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}
	return &user, nil
}

// ldapAuth verifies against the directory and provisions the user on first login.
func (s *AuthService) ldapAuth(email, password string) (*models.User, error) {
	if s.ldapService == nil || !s.ldapService.IsEnabled() {
		return nil, response.NewBadRequest("LDAP login is not enabled")
	}
	ldapUser, err := s.ldapService.Authenticate(email, password)
	if err != nil {
		logger.Info().Err(err).Str("email", email).Msg("LDAP authentication failed")
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err = s.db.Where("email = ?", normalizeEmail(ldapUser.Email)).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Name:     ldapUser.Name,
			Email:    normalizeEmail(ldapUser.Email),
			Role:     ldapUser.Role,
			AuthType: models.AuthTypeLDAP,
			IsActive: true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case user.AuthType != models.AuthTypeLDAP:
		return nil, response.NewConflict("a local account already uses this email")
	}

	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}
	if ldapUser.Name != "" && ldapUser.Name != user.Name {
		s.db.Model(&user).Update("name", ldapUser.Name)
	}
	return &user, nil
}

func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound, "user")
	}
	return &user, nil
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user.AuthType != models.AuthTypeLocal {
		return response.NewBadRequest("directory accounts cannot change their password here")
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return response.NewBadRequest("incorrect old password")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password", hashed).Error; err != nil {
			return err
		}
		// a password change signs the user out everywhere else
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", user.ID).
			Update("revoked_at", time.Now()).Error
	})
}

// EnsureBootstrapProfessor creates the configured professor account when no
// professor exists yet.
func (s *AuthService) EnsureBootstrapProfessor(cfg *config.BootstrapConfig) error {
	if cfg.ProfessorEmail == "" || cfg.ProfessorPassword == "" {
		return nil
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", models.RoleProfessor).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	name := cfg.ProfessorName
	if name == "" {
		name = "Professor"
	}
	_, err := s.Register(&RegisterRequest{
		Name:     name,
		Email:    cfg.ProfessorEmail,
		Password: cfg.ProfessorPassword,
		Role:     models.RoleProfessor,
	})
	if err == nil {
		logger.Info().Str("email", cfg.ProfessorEmail).Msg("bootstrap professor created")
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
