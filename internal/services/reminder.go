package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const reminderLockName = "grading_reminder"

// ReminderService nudges jurors who have not graded an unreleased deliverable.
type ReminderService struct {
	db       *gorm.DB
	notifier Notifier
	loc      *time.Location
	cron     *cron.Cron
	instance string
}

func NewReminderService(db *gorm.DB, notifier Notifier, loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	host, _ := os.Hostname()
	return &ReminderService{
		db:       db,
		notifier: notifier,
		loc:      loc,
		instance: fmt.Sprintf("%s-%d", host, os.Getpid()),
	}
}

// StartScheduler runs reminders on schedule, read in the grading timezone.
// An empty schedule disables reminders.
func (s *ReminderService) StartScheduler(schedule string) error {
	if schedule == "" {
		logger.Info().Msg("[Reminder] disabled")
		return nil
	}

	s.cron = cron.New(cron.WithLocation(s.loc))
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(time.Now()); err != nil {
			logger.Error().Err(err).Msg("[Reminder] run failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	logger.Info().Str("cron", schedule).Str("timezone", s.loc.String()).Msg("[Reminder] scheduled")
	return nil
}

func (s *ReminderService) StopScheduler() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// acquireLock claims today's run. Another replica holding the same
// (name, day) key makes this return false.
func (s *ReminderService) acquireLock(now time.Time) (bool, error) {
	day := now.In(s.loc).Format(dateOnlyLayout)
	lock := models.SchedulerLock{
		LockName:  reminderLockName,
		LockKey:   day,
		LockedBy:  s.instance,
		LockedAt:  now.UTC(),
		ExpiresAt: now.UTC().Add(24 * time.Hour),
	}
	err := s.db.Create(&lock).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// old locks are only history
	if err := s.db.Where("lock_name = ? AND expires_at < ?", reminderLockName, now.UTC().Add(-7*24*time.Hour)).
		Delete(&models.SchedulerLock{}).Error; err != nil {
		logger.Warn().Err(err).Msg("[Reminder] failed to clean up old locks")
	}
	return true, nil
}

type pendingJuror struct {
	UserID           uint
	DeliverableID    uint
	DeliverableTitle string
}

// RunOnce sends one reminder per deliverable to the jurors still owing it a
// grade and returns how many distinct jurors were reminded. It does nothing if today's run already happened.
func (s *ReminderService) RunOnce(now time.Time) (int, error) {
	ok, err := s.acquireLock(now)
	if err != nil {
		return 0, fmt.Errorf("acquire reminder lock: %w", err)
	}
	if !ok {
		logger.Debug().Msg("[Reminder] already ran today")
		return 0, nil
	}

	var pending []pendingJuror
	err = s.db.Table("deliverable_juries").
		Select("deliverable_juries.user_id AS user_id, deliverables.id AS deliverable_id, deliverables.title AS deliverable_title").
		Joins("JOIN deliverables ON deliverables.id = deliverable_juries.deliverable_id").
		Joins("LEFT JOIN grades ON grades.deliverable_id = deliverable_juries.deliverable_id AND grades.user_id = deliverable_juries.user_id").
		Where("deliverables.released = ? AND grades.id IS NULL", false).
		Order("deliverables.id, deliverable_juries.user_id").
		Scan(&pending).Error
	if err != nil {
		return 0, err
	}

	byDeliverable := map[uint][]uint{}
	titles := map[uint]string{}
	jurors := map[uint]struct{}{}
	var order []uint
	for _, p := range pending {
		jurors[p.UserID] = struct{}{}
		if _, seen := byDeliverable[p.DeliverableID]; !seen {
			order = append(order, p.DeliverableID)
			titles[p.DeliverableID] = p.DeliverableTitle
		}
		byDeliverable[p.DeliverableID] = append(byDeliverable[p.DeliverableID], p.UserID)
	}

	if s.notifier != nil {
		for _, id := range order {
			deliverableID := id
			s.notifier.Notify(&NotificationTask{
				UserIDs:       byDeliverable[id],
				Type:          models.NotificationGradingReminder,
				Title:         "Grade pending",
				Message:       fmt.Sprintf("You have not yet graded %q.", titles[id]),
				DeliverableID: &deliverableID,
			})
		}
	}

	logger.Info().Int("jurors", len(jurors)).Int("deliverables", len(order)).Msg("[Reminder] reminders sent")
	return len(jurors), nil
}
