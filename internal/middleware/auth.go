package middleware

import (
	"errors"
	"strings"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/internal/utils"
	"github.com/econify/econify/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
	ContextUser     = "user"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthRequired verifies the bearer token and loads the user it names. The
// role is read from the user row, never from the token.
func AuthRequired(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		tokenString, ok := BearerToken(c)
		if !ok {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.Unauthorized(c, "user no longer exists")
			} else {
				response.Error(c, err)
			}
			c.Abort()
			return
		}
		if !user.IsActive {
			response.Unauthorized(c, "user is disabled")
			c.Abort()
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUsername, user.Name)
		c.Set(ContextRole, user.Role)
		c.Set(ContextUser, &user)

		c.Next()
	}
}

func requireRole(role, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != role {
			response.Forbidden(c, msg)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ProfessorRequired must run after AuthRequired.
func ProfessorRequired() gin.HandlerFunc {
	return requireRole(models.RoleProfessor, "professor access required")
}

// StudentRequired must run after AuthRequired.
func StudentRequired() gin.HandlerFunc {
	return requireRole(models.RoleStudent, "student access required")
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		return id.(uint)
	}
	return 0
}

// GetUsername gets the current user's display name from context
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(ContextUsername); exists {
		return username.(string)
	}
	return ""
}

// GetRole gets the current user role from context
func GetRole(c *gin.Context) string {
	if role, exists := c.Get(ContextRole); exists {
		return role.(string)
	}
	return ""
}

// GetUser returns the user loaded by AuthRequired, or nil.
func GetUser(c *gin.Context) *models.User {
	if u, exists := c.Get(ContextUser); exists {
		return u.(*models.User)
	}
	return nil
}
