package services

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/logger"
	"github.com/econify/econify/pkg/response"
	"gorm.io/gorm"
)

var ErrJuryAlreadyAssigned = response.NewConflict("a jury has already been assigned to this deliverable")

type JuryService struct {
	db              *gorm.DB
	notifier        Notifier
	defaultJurySize int
	// intn returns a uniform int in [0, n). Replaceable in tests.
	intn func(n int) int
}

func NewJuryService(db *gorm.DB, notifier Notifier, defaultJurySize int) *JuryService {
	return &JuryService{
		db:              db,
		notifier:        notifier,
		defaultJurySize: defaultJurySize,
		intn:            rand.IntN,
	}
}

type AssignJuryRequest struct {
	DeliverableID uint `json:"deliverableId" binding:"required"`
	JurySize      int  `json:"jurySize" binding:"omitempty,min=1"`
}

type AssignJuryResult struct {
	Message string        `json:"message"`
	Jurors  []UserSummary `json:"jurors"`
}

// sampleWithoutReplacement picks n distinct entries of pool with a partial
// Fisher-Yates shuffle. pool is reordered in place.
func sampleWithoutReplacement(pool []models.User, n int, intn func(int) int) []models.User {
	for i := 0; i < n; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// AssignJury draws JurySize students uniformly at random from every active
// student outside the deliverable's team and records them as its jury.
// A deliverable gets one jury: a second call fails with a conflict and
// writes nothing. professorID zero skips the ownership check.
func (s *JuryService) AssignJury(professorID uint, req *AssignJuryRequest) (*AssignJuryResult, error) {
	size := req.JurySize
	if size == 0 {
		size = s.defaultJurySize
	}
	if size <= 0 {
		return nil, response.NewBadRequest("jurySize must be a positive integer")
	}

	var jurors []models.User
	var deliverable *models.Deliverable
	err := s.db.Transaction(func(tx *gorm.DB) error {
		d, err := loadDeliverable(tx, req.DeliverableID)
		if err != nil {
			return err
		}
		if err := requireOwner(d.Team.Project, professorID); err != nil {
			return err
		}
		deliverable = d

		// claim the deliverable first so a concurrent assignment loses here
		res := tx.Model(&models.Deliverable{}).
			Where("id = ? AND is_assigned = ?", d.ID, false).
			Update("is_assigned", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrJuryAlreadyAssigned
		}

		var candidates []models.User
		if err := tx.Where("role = ? AND is_active = ?", models.RoleStudent, true).
			Where("id NOT IN (?)", tx.Model(&models.TeamMember{}).Select("user_id").Where("team_id = ?", d.TeamID)).
			Order("id").
			Find(&candidates).Error; err != nil {
			return err
		}
		if len(candidates) < size {
			return response.NewBadRequest(fmt.Sprintf(
				"not enough students to form a jury: need %d, only %d eligible", size, len(candidates)))
		}

		jurors = sampleWithoutReplacement(candidates, size, s.intn)

		now := time.Now().UTC()
		rows := make([]models.DeliverableJury, 0, size)
		for _, j := range jurors {
			rows = append(rows, models.DeliverableJury{DeliverableID: d.ID, UserID: j.ID, AssignedAt: now})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	result := &AssignJuryResult{Message: "jury assigned successfully", Jurors: make([]UserSummary, 0, len(jurors))}
	ids := make([]uint, 0, len(jurors))
	for i := range jurors {
		result.Jurors = append(result.Jurors, UserSummary{ID: jurors[i].ID, Name: jurors[i].Name})
		ids = append(ids, jurors[i].ID)
	}

	logger.Info().Uint("deliverable_id", deliverable.ID).Int("jury_size", len(ids)).Msg("jury assigned")

	if s.notifier != nil {
		s.notifier.Notify(&NotificationTask{
			UserIDs:       ids,
			Type:          models.NotificationJuryAssigned,
			Title:         "You have a deliverable to grade",
			Message:       fmt.Sprintf("You were selected as a juror for %q.", deliverable.Title),
			DeliverableID: &deliverable.ID,
		})
	}
	return result, nil
}

// Jurors lists the jury of a deliverable; owning professor only.
func (s *JuryService) Jurors(professorID, deliverableID uint) ([]UserSummary, error) {
	d, err := loadDeliverable(s.db, deliverableID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(d.Team.Project, professorID); err != nil {
		return nil, err
	}

	var users []models.User
	if err := s.db.Joins("JOIN deliverable_juries ON deliverable_juries.user_id = users.id").
		Where("deliverable_juries.deliverable_id = ?", deliverableID).
		Order("users.name").
		Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, summarize(&users[i]))
	}
	return out, nil
}
