package services

import (
	"context"
	"fmt"
	"time"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/logger"
	"github.com/econify/econify/pkg/response"
	"gorm.io/gorm"
)

// Notifier hands a notification off for delivery. Implementations must not
// fail the caller's operation.
type Notifier interface {
	Notify(task *NotificationTask)
}

type NotificationService struct {
	db    *gorm.DB
	hub   *SSEHub
	queue TaskQueue
}

func NewNotificationService(db *gorm.DB, hub *SSEHub, queue TaskQueue) *NotificationService {
	return &NotificationService{db: db, hub: hub, queue: queue}
}

// Notify enqueues task. Enqueue errors are logged only.
func (s *NotificationService) Notify(task *NotificationTask) {
	if task == nil || len(task.UserIDs) == 0 {
		return
	}
	if s.queue == nil {
		if err := s.Deliver(context.Background(), task); err != nil {
			logger.Error().Err(err).Str("type", task.Type).Msg("notification delivery failed")
		}
		return
	}
	if err := s.queue.Enqueue(task); err != nil {
		logger.Error().Err(err).Str("type", task.Type).Int("recipients", len(task.UserIDs)).Msg("failed to enqueue notification")
	}
}

// Deliver persists one notification per recipient and pushes it to their
// open SSE connections. It is the queue's task processor.
func (s *NotificationService) Deliver(ctx context.Context, task *NotificationTask) error {
	now := time.Now().UTC()
	rows := make([]models.Notification, 0, len(task.UserIDs))
	for _, uid := range task.UserIDs {
		rows = append(rows, models.Notification{
			UserID:        uid,
			Type:          task.Type,
			Title:         task.Title,
			Message:       task.Message,
			DeliverableID: task.DeliverableID,
			CreatedAt:     now,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("persist notifications: %w", err)
	}

	if s.hub != nil {
		for _, n := range rows {
			s.hub.Publish(n)
		}
	}
	logger.Debug().Str("type", task.Type).Int("recipients", len(rows)).Msg("notifications delivered")
	return nil
}

type NotificationListRequest struct {
	UnreadOnly bool `form:"unread"`
	Limit      int  `form:"limit" binding:"omitempty,min=1,max=200"`
}

func (s *NotificationService) List(userID uint, req *NotificationListRequest) ([]models.Notification, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	query := s.db.Where("user_id = ?", userID)
	if req.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	out := []models.Notification{}
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// MarkRead marks one of the caller's notifications read. Marking twice is a no-op.
func (s *NotificationService) MarkRead(userID, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return nil, notFound(err, response.NewNotFound("notification not found"), "notification")
	}
	if n.ReadAt == nil {
		now := time.Now().UTC()
		if err := s.db.Model(&n).Update("read_at", now).Error; err != nil {
			return nil, err
		}
		n.ReadAt = &now
	}
	return &n, nil
}
