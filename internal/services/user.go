package services

import (
	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/response"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type UserListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	Role     string `form:"role" binding:"omitempty,userrole"`
	Name     string `form:"name"`
	Active   *bool  `form:"active"`
}

type UserListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Items    []models.User `json:"items"`
}

func (s *UserService) List(req *UserListRequest) (*UserListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.User{})
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.Active != nil {
		query = query.Where("is_active = ?", *req.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	users := []models.User{}
	if err := query.Order("name, id").Offset((req.Page - 1) * req.PageSize).Limit(req.PageSize).Find(&users).Error; err != nil {
		return nil, err
	}
	return &UserListResponse{Total: total, Page: req.Page, PageSize: req.PageSize, Items: users}, nil
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetActive enables or disables a student account. Disabled students can no
// longer sign in and are left out of future juries.
func (s *UserService) SetActive(actorID, userID uint, active bool) (*models.User, error) {
	if actorID == userID {
		return nil, response.NewBadRequest("cannot modify your own account")
	}
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, notFound(err, ErrUserNotFound, "user")
	}
	if !user.IsStudent() {
		return nil, response.NewForbidden("only student accounts can be enabled or disabled")
	}
	if err := s.db.Model(&user).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	user.IsActive = active
	return &user, nil
}
