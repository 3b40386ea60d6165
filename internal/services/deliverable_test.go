package services

import (
	"testing"
	"time"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDueDate(t *testing.T) {
	athens, err := time.LoadLocation("Europe/Athens")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
		loc   *time.Location
		want  time.Time
		ok    bool
	}{
		{"rfc3339", "2026-03-01T10:00:00Z", time.UTC, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"rfc3339 offset", "2026-03-01T12:00:00+02:00", time.UTC, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"date only utc", "2026-03-01", time.UTC, time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC), true},
		{"date only athens", "2026-03-01", athens, time.Date(2026, 3, 1, 21, 59, 59, 0, time.UTC), true},
		{"garbage", "next tuesday", time.UTC, time.Time{}, false},
		{"empty", "", time.UTC, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDueDate(tt.value, tt.loc)
			if !tt.ok {
				assert.Equal(t, response.KindValidation, response.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestDeliverable_DeadlineGate(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	svc := NewDeliverableService(db, time.UTC)
	due := cr.deliverable.DueDate

	svc.now = func() time.Time { return due.Add(-time.Minute) }
	title := "Revised analysis"
	updated, err := svc.Update(cr.deliverable.ID, cr.a.ID, &UpdateDeliverableRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	svc.now = func() time.Time { return due }
	_, err = svc.Update(cr.deliverable.ID, cr.a.ID, &UpdateDeliverableRequest{Title: &title})
	require.NoError(t, err, "editing exactly at the due instant is allowed")

	svc.now = func() time.Time { return due.Add(time.Second) }
	late := "Too late"
	_, err = svc.Update(cr.deliverable.ID, cr.a.ID, &UpdateDeliverableRequest{Title: &late})
	assert.ErrorIs(t, err, ErrDeadlinePassed)
	assert.ErrorIs(t, svc.Delete(cr.deliverable.ID, cr.a.ID), ErrDeadlinePassed)

	var stored models.Deliverable
	require.NoError(t, db.First(&stored, cr.deliverable.ID).Error)
	assert.Equal(t, title, stored.Title)
}

func TestDeliverable_MembershipRequired(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	svc := NewDeliverableService(db, time.UTC)

	_, err := svc.Create(cr.c.ID, &CreateDeliverableRequest{Title: "x", DueDate: "2030-01-01", TeamID: cr.t1.ID})
	assert.ErrorIs(t, err, ErrNotTeamMember)

	assert.ErrorIs(t, svc.Delete(cr.deliverable.ID, cr.c.ID), ErrNotTeamMember)

	_, err = svc.Create(cr.a.ID, &CreateDeliverableRequest{Title: "x", DueDate: "2030-01-01", TeamID: 999})
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestDeliverable_LastDeliverableMoves(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	svc := NewDeliverableService(db, time.UTC)

	first, err := svc.Create(cr.a.ID, &CreateDeliverableRequest{Title: "Draft", DueDate: "2030-01-01", TeamID: cr.t1.ID, IsLastDeliverable: true})
	require.NoError(t, err)
	second, err := svc.Create(cr.b.ID, &CreateDeliverableRequest{Title: "Final", DueDate: "2030-02-01", TeamID: cr.t1.ID, IsLastDeliverable: true})
	require.NoError(t, err)

	list, err := svc.ListByTeam(cr.t1.ID)
	require.NoError(t, err)
	require.NotNil(t, list.LastDeliverableID)
	assert.Equal(t, second.ID, *list.LastDeliverableID)

	var flagged int64
	require.NoError(t, db.Model(&models.Deliverable{}).Where("team_id = ? AND last_deliverable = ?", cr.t1.ID, true).Count(&flagged).Error)
	assert.EqualValues(t, 1, flagged)

	yes := true
	_, err = svc.Update(first.ID, cr.a.ID, &UpdateDeliverableRequest{IsLastDeliverable: &yes})
	require.NoError(t, err)

	list, err = svc.ListByTeam(cr.t1.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, *list.LastDeliverableID)

	// due-date order: the classroom deliverable (2 days out) comes first
	require.Len(t, list.Deliverables, 3)
	assert.Equal(t, cr.deliverable.ID, list.Deliverables[0].ID)
}

func TestDeliverable_DeleteRemovesJuryAndGrades(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c)
	require.NoError(t, db.Create(&models.Grade{DeliverableID: cr.deliverable.ID, UserID: cr.c.ID, Grade: 7}).Error)
	svc := NewDeliverableService(db, time.UTC)

	require.NoError(t, svc.Delete(cr.deliverable.ID, cr.a.ID))

	var juries, grades int64
	db.Model(&models.DeliverableJury{}).Count(&juries)
	db.Model(&models.Grade{}).Count(&grades)
	assert.Zero(t, juries)
	assert.Zero(t, grades)
}

func TestDeliverable_AssignedAndJuryAssigned(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	svc := NewDeliverableService(db, time.UTC)

	assigned, err := svc.JuryAssigned(cr.deliverable.ID)
	require.NoError(t, err)
	assert.False(t, assigned)

	assignJurors(t, db, cr.deliverable, cr.c)
	require.NoError(t, db.Create(&models.Grade{DeliverableID: cr.deliverable.ID, UserID: cr.c.ID, Grade: 6.5, Feedback: "fine"}).Error)

	assigned, err = svc.JuryAssigned(cr.deliverable.ID)
	require.NoError(t, err)
	assert.True(t, assigned)

	mine, err := svc.Assigned(cr.c.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].MyGrade)
	assert.Equal(t, 6.5, *mine[0].MyGrade)
	assert.Equal(t, "fine", mine[0].MyFeedback)

	none, err := svc.Assigned(cr.e.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	members, err := svc.Members(cr.deliverable.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestDeliverable_ListForProfessor(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	svc := NewDeliverableService(db, time.UTC)

	groups, err := svc.ListForProfessor(cr.professor.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "T1", groups[0].TeamName)
	assert.Len(t, groups[0].Deliverables, 1)
	assert.Empty(t, groups[1].Deliverables)
	assert.Equal(t, "Microeconomics", groups[0].ProjectTitle)
}
