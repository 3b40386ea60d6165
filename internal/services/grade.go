package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/econify/econify/internal/config"
	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/logger"
	"github.com/econify/econify/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrNotJuror          = response.NewForbidden("you are not an assigned juror for this deliverable")
	ErrGradesNotReleased = response.NewForbidden("grades have not been released yet")
	ErrNoGrades          = response.NewNotFound("no grades submitted yet")
)

type GradeService struct {
	db       *gorm.DB
	minGrade float64
	maxGrade float64
	notifier Notifier
}

func NewGradeService(db *gorm.DB, cfg *config.GradingConfig, notifier Notifier) *GradeService {
	return &GradeService{
		db:       db,
		minGrade: cfg.MinGrade,
		maxGrade: cfg.MaxGrade,
		notifier: notifier,
	}
}

type SubmitGradeRequest struct {
	DeliverableID uint     `json:"deliverableId" binding:"required"`
	Grade         *float64 `json:"grade" binding:"required"`
	Feedback      string   `json:"feedback" binding:"max=5000"`
}

// roundGrade keeps two decimal places.
func roundGrade(g float64) float64 {
	return math.Round(g*100) / 100
}

// ValidGrade reports whether g lies in the configured closed range.
func (s *GradeService) ValidGrade(g float64) bool {
	return !math.IsNaN(g) && g >= s.minGrade && g <= s.maxGrade
}

// SubmitGrade records or replaces the caller's grade for a deliverable they
// judge. It reports whether a new row was created.
func (s *GradeService) SubmitGrade(userID uint, req *SubmitGradeRequest) (created bool, err error) {
	if req.Grade == nil {
		return false, response.NewBadRequest("grade is required")
	}

	var d models.Deliverable
	if err := s.db.Select("id").First(&d, req.DeliverableID).Error; err != nil {
		return false, notFound(err, ErrDeliverableNotFound, "deliverable")
	}

	var juries int64
	if err := s.db.Model(&models.DeliverableJury{}).
		Where("deliverable_id = ? AND user_id = ?", req.DeliverableID, userID).
		Count(&juries).Error; err != nil {
		return false, err
	}
	if juries == 0 {
		return false, ErrNotJuror
	}

	if !s.ValidGrade(*req.Grade) {
		return false, response.NewBadRequest(fmt.Sprintf("grade must be between %g and %g", s.minGrade, s.maxGrade))
	}
	value := roundGrade(*req.Grade)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Grade
		res := tx.Where("deliverable_id = ? AND user_id = ?", req.DeliverableID, userID).Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Model(&existing).Updates(map[string]interface{}{
				"grade":    value,
				"feedback": req.Feedback,
			}).Error
		}
		created = true
		return tx.Create(&models.Grade{
			DeliverableID: req.DeliverableID,
			UserID:        userID,
			Grade:         value,
			Feedback:      req.Feedback,
		}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent first submission won the insert; apply ours as the update
		return false, s.db.Model(&models.Grade{}).
			Where("deliverable_id = ? AND user_id = ?", req.DeliverableID, userID).
			Updates(map[string]interface{}{"grade": value, "feedback": req.Feedback}).Error
	}
	return created, err
}

type ReleaseResult struct {
	Message     string              `json:"message"`
	Deliverable *models.Deliverable `json:"deliverable"`
}

// ToggleRelease flips the deliverable's released flag. Calling it twice
// restores the original state.
func (s *GradeService) ToggleRelease(professorID, deliverableID uint) (*ReleaseResult, error) {
	d, err := loadDeliverable(s.db, deliverableID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(d.Team.Project, professorID); err != nil {
		return nil, err
	}

	var updated models.Deliverable
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Deliverable{}).
			Where("id = ?", d.ID).
			Update("released", gorm.Expr("NOT released")).Error; err != nil {
			return err
		}
		return tx.First(&updated, d.ID).Error
	})
	if err != nil {
		return nil, err
	}

	msg := "grades released"
	notification := &NotificationTask{
		Type:          models.NotificationGradesReleased,
		Title:         "Grades released",
		Message:       fmt.Sprintf("Grades for %q are now available.", updated.Title),
		DeliverableID: &updated.ID,
	}
	if !updated.Released {
		msg = "grades hidden"
		notification.Type = models.NotificationGradesHidden
		notification.Title = "Grades hidden"
		notification.Message = fmt.Sprintf("Grades for %q have been withdrawn.", updated.Title)
	}

	logger.Info().Uint("deliverable_id", updated.ID).Bool("released", updated.Released).Msg("grade release toggled")

	if s.notifier != nil {
		if ids, err := teamMemberIDs(s.db, updated.TeamID); err != nil {
			logger.Warn().Err(err).Uint("team_id", updated.TeamID).Msg("failed to resolve release recipients")
		} else {
			notification.UserIDs = ids
			s.notifier.Notify(notification)
		}
	}

	return &ReleaseResult{Message: msg, Deliverable: &updated}, nil
}

type Aggregate struct {
	AverageGrade string `json:"averageGrade"`
	TotalGrades  int64  `json:"totalGrades"`
}

func (s *GradeService) aggregate(deliverableID uint) (*Aggregate, error) {
	var row struct {
		Total   int64
		Average *float64
	}
	if err := s.db.Model(&models.Grade{}).
		Select("COUNT(*) AS total, AVG(grade) AS average").
		Where("deliverable_id = ?", deliverableID).
		Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.Total == 0 || row.Average == nil {
		return nil, ErrNoGrades
	}
	return &Aggregate{
		AverageGrade: formatAverage(*row.Average),
		TotalGrades:  row.Total,
	}, nil
}

// formatAverage renders avg with two decimals, rounding halves away from zero.
func formatAverage(avg float64) string {
	return strconv.FormatFloat(math.Round(avg*100)/100, 'f', 2, 64)
}

// GetAggregate returns the mean grade. It refuses for every caller until the
// grades are released.
func (s *GradeService) GetAggregate(deliverableID uint) (*Aggregate, error) {
	var d models.Deliverable
	if err := s.db.Select("id", "released").First(&d, deliverableID).Error; err != nil {
		return nil, notFound(err, ErrDeliverableNotFound, "deliverable")
	}
	if !d.Released {
		return nil, ErrGradesNotReleased
	}
	return s.aggregate(deliverableID)
}

type ProfessorGrade struct {
	ID          uint        `json:"id"`
	Grade       float64     `json:"grade"`
	Feedback    string      `json:"feedback"`
	Juror       UserSummary `json:"juror"`
	SubmittedAt time.Time   `json:"submittedAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type ProfessorGradesView struct {
	DeliverableID uint             `json:"deliverableId"`
	Released      bool             `json:"released"`
	JurySize      int64            `json:"jurySize"`
	Aggregate     *Aggregate       `json:"aggregate"`
	Grades        []ProfessorGrade `json:"grades"`
}

// ProfessorGrades is the owning professor's view. It ignores the release
// flag so grades can be reviewed before release.
func (s *GradeService) ProfessorGrades(professorID, deliverableID uint) (*ProfessorGradesView, error) {
	d, err := loadDeliverable(s.db, deliverableID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(d.Team.Project, professorID); err != nil {
		return nil, err
	}

	var grades []models.Grade
	if err := s.db.Preload("User").
		Where("deliverable_id = ?", deliverableID).
		Order("created_at, id").
		Find(&grades).Error; err != nil {
		return nil, err
	}

	view := &ProfessorGradesView{DeliverableID: d.ID, Released: d.Released, Grades: make([]ProfessorGrade, 0, len(grades))}
	if err := s.db.Model(&models.DeliverableJury{}).Where("deliverable_id = ?", d.ID).Count(&view.JurySize).Error; err != nil {
		return nil, err
	}
	for _, g := range grades {
		pg := ProfessorGrade{ID: g.ID, Grade: g.Grade, Feedback: g.Feedback, SubmittedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt}
		if g.User != nil {
			pg.Juror = summarize(g.User)
		}
		view.Grades = append(view.Grades, pg)
	}

	agg, err := s.aggregate(d.ID)
	switch {
	case err == nil:
		view.Aggregate = agg
	case !errors.Is(err, ErrNoGrades):
		return nil, err
	}
	return view, nil
}

type StudentGrade struct {
	Juror    string  `json:"juror"`
	Grade    float64 `json:"grade"`
	Feedback string  `json:"feedback"`
}

type StudentGradesView struct {
	DeliverableID uint           `json:"deliverableId"`
	AverageGrade  string         `json:"averageGrade"`
	TotalGrades   int64          `json:"totalGrades"`
	Grades        []StudentGrade `json:"grades"`
}

// StudentGrades shows the owning team its released grades with jurors
// replaced by "Juror 1", "Juror 2", ... in submission order.
func (s *GradeService) StudentGrades(userID, deliverableID uint) (*StudentGradesView, error) {
	d, err := loadDeliverable(s.db, deliverableID)
	if err != nil {
		return nil, err
	}
	member, err := isTeamMember(s.db, d.TeamID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotTeamMember
	}
	if !d.Released {
		return nil, ErrGradesNotReleased
	}

	var grades []models.Grade
	if err := s.db.Where("deliverable_id = ?", deliverableID).Order("created_at, id").Find(&grades).Error; err != nil {
		return nil, err
	}

	view := &StudentGradesView{DeliverableID: d.ID, AverageGrade: "", Grades: make([]StudentGrade, 0, len(grades))}
	for i, g := range grades {
		view.Grades = append(view.Grades, StudentGrade{
			Juror:    fmt.Sprintf("Juror %d", i+1),
			Grade:    g.Grade,
			Feedback: g.Feedback,
		})
	}
	if agg, err := s.aggregate(d.ID); err == nil {
		view.AverageGrade = agg.AverageGrade
		view.TotalGrades = agg.TotalGrades
	} else if !errors.Is(err, ErrNoGrades) {
		return nil, err
	}
	return view, nil
}
