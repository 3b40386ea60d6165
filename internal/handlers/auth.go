package handlers

import (
	"time"

	"github.com/econify/econify/internal/middleware"
	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/internal/services"
	"github.com/econify/econify/pkg/response"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
	ldapEnabled bool
}

func NewAuthHandler(authService *services.AuthService, ldapEnabled bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		ldapEnabled: ldapEnabled,
	}
}

type loginResponse struct {
	Message         string       `json:"message"`
	Token           string       `json:"token"`
	RefreshToken    string       `json:"refreshToken"`
	ExpireAt        time.Time    `json:"expireAt"`
	RefreshExpireAt time.Time    `json:"refreshExpireAt"`
	User            *models.User `json:"user,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Register creates a student or professor account
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.Register(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loginResponse{
		Message:         "login successful",
		Token:           res.AccessToken,
		RefreshToken:    res.RefreshToken,
		ExpireAt:        res.AccessExpireAt,
		RefreshExpireAt: res.RefreshExpireAt,
		User:            res.User,
	})
}

// Refresh exchanges a refresh token for a new token pair
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loginResponse{
		Message:         "token refreshed",
		Token:           res.AccessToken,
		RefreshToken:    res.RefreshToken,
		ExpireAt:        res.AccessExpireAt,
		RefreshExpireAt: res.RefreshExpireAt,
	})
}

// Logout revokes the presented refresh token. The access token simply expires.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.RevokeRefreshToken(req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "logged out successfully")
}

// GetCurrentUser returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// GetAuthConfig tells the login page which sign-in methods exist
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{"ldapEnabled": h.ldapEnabled})
}

// ChangePassword changes the caller's local password
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.authService.ChangePassword(middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "password changed successfully")
}
