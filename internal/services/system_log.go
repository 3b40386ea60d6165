package services

import (
	"encoding/json"
	"time"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

type SystemLogService struct {
	db   *gorm.DB
	cron *cron.Cron
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

// Record writes one audit entry. Failures are logged and otherwise ignored so
// auditing never fails the request being audited.
func (s *SystemLogService) Record(level, module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		Extra:     extraStr,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("failed to write audit log")
	}
}

type SystemLogListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	Level    string `form:"level"`
	Module   string `form:"module"`
	UserID   uint   `form:"userId"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.SystemLog{})
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.UserID != 0 {
		query = query.Where("user_id = ?", req.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var logs []models.SystemLog
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

// CleanupOldLogs deletes logs older than retentionDays and returns how many went.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// StartCleanupScheduler purges expired audit entries once at startup and then daily.
func (s *SystemLogService) StartCleanupScheduler(retentionDays int) {
	if retentionDays <= 0 {
		logger.Info().Msg("[SystemLog] cleanup disabled (retention_days <= 0)")
		return
	}

	s.runCleanup(retentionDays)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@daily", func() { s.runCleanup(retentionDays) }); err != nil {
		logger.Error().Err(err).Msg("[SystemLog] failed to schedule cleanup")
		return
	}
	s.cron.Start()
}

func (s *SystemLogService) StopCleanupScheduler() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *SystemLogService) runCleanup(retentionDays int) {
	deleted, err := s.CleanupOldLogs(retentionDays)
	if err != nil {
		logger.Error().Err(err).Msg("[SystemLog] failed to cleanup old logs")
		return
	}
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Int("retention_days", retentionDays).Msg("[SystemLog] cleaned up old logs")
	}
}
