package handlers

import (
	"github.com/econify/econify/internal/middleware"
	"github.com/econify/econify/internal/services"
	"github.com/econify/econify/pkg/response"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	var req services.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.userService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// SetActive enables or disables a student account
// PUT /api/users/:id/active
func (h *UserHandler) SetActive(c *gin.Context) {
	id, ok := paramID(c, "id", "user")
	if !ok {
		return
	}

	var req services.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.SetActive(middleware.GetUserID(c), id, *req.IsActive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}
