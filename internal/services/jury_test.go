package services

import (
	"net/http"
	"testing"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignJury_DrawsOnlyOutsideTheTeam(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	notifier := &recordingNotifier{}
	svc := NewJuryService(db, notifier, 3)

	res, err := svc.AssignJury(cr.professor.ID, &AssignJuryRequest{DeliverableID: cr.deliverable.ID, JurySize: 2})
	require.NoError(t, err)
	require.Len(t, res.Jurors, 2)

	eligible := map[uint]bool{cr.c.ID: true, cr.d.ID: true, cr.e.ID: true}
	seen := map[uint]bool{}
	for _, j := range res.Jurors {
		assert.True(t, eligible[j.ID], "juror %d is on the deliverable's team", j.ID)
		assert.False(t, seen[j.ID], "juror %d drawn twice", j.ID)
		seen[j.ID] = true
	}

	var rows []models.DeliverableJury
	require.NoError(t, db.Where("deliverable_id = ?", cr.deliverable.ID).Find(&rows).Error)
	assert.Len(t, rows, 2)

	var d models.Deliverable
	require.NoError(t, db.First(&d, cr.deliverable.ID).Error)
	assert.True(t, d.IsAssigned)

	sent := notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, models.NotificationJuryAssigned, sent[0].Type)
	assert.ElementsMatch(t, []uint{res.Jurors[0].ID, res.Jurors[1].ID}, sent[0].UserIDs)
}

func TestAssignJury_ExcludesProfessorsAndInactiveStudents(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	createUser(t, db, "otherprof", models.RoleProfessor)
	require.NoError(t, db.Model(cr.e).Update("is_active", false).Error)

	svc := NewJuryService(db, nil, 3)
	for i := 0; i < 5; i++ {
		d := createDeliverable(t, db, cr.t1, "round", cr.deliverable.DueDate)
		res, err := svc.AssignJury(cr.professor.ID, &AssignJuryRequest{DeliverableID: d.ID, JurySize: 2})
		require.NoError(t, err)
		ids := []uint{res.Jurors[0].ID, res.Jurors[1].ID}
		assert.ElementsMatch(t, []uint{cr.c.ID, cr.d.ID}, ids)
	}
}

func TestAssignJury_NotEnoughCandidatesWritesNothing(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	svc := NewJuryService(db, &recordingNotifier{}, 3)

	_, err := svc.AssignJury(cr.professor.ID, &AssignJuryRequest{DeliverableID: cr.deliverable.ID, JurySize: 4})
	require.Error(t, err)
	assert.Equal(t, response.KindValidation, response.KindOf(err))

	var count int64
	require.NoError(t, db.Model(&models.DeliverableJury{}).Count(&count).Error)
	assert.Zero(t, count)

	var d models.Deliverable
	require.NoError(t, db.First(&d, cr.deliverable.ID).Error)
	assert.False(t, d.IsAssigned, "failed assignment must roll back the claim")
}

func TestAssignJury_SecondCallConflicts(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	svc := NewJuryService(db, nil, 3)

	_, err := svc.AssignJury(cr.professor.ID, &AssignJuryRequest{DeliverableID: cr.deliverable.ID, JurySize: 2})
	require.NoError(t, err)

	_, err = svc.AssignJury(cr.professor.ID, &AssignJuryRequest{DeliverableID: cr.deliverable.ID, JurySize: 2})
	require.ErrorIs(t, err, ErrJuryAlreadyAssigned)

	var count int64
	require.NoError(t, db.Model(&models.DeliverableJury{}).Where("deliverable_id = ?", cr.deliverable.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestAssignJury_Permissions(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	other := createUser(t, db, "stranger", models.RoleProfessor)
	svc := NewJuryService(db, nil, 3)

	_, err := svc.AssignJury(other.ID, &AssignJuryRequest{DeliverableID: cr.deliverable.ID, JurySize: 1})
	require.ErrorIs(t, err, ErrNotProjectOwner)

	_, err = svc.AssignJury(cr.professor.ID, &AssignJuryRequest{DeliverableID: 9999, JurySize: 1})
	var appErr *response.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	// operator path
	_, err = svc.AssignJury(0, &AssignJuryRequest{DeliverableID: cr.deliverable.ID})
	require.NoError(t, err)
}

func TestAssignJury_UsesDefaultSize(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	svc := NewJuryService(db, nil, 3)

	res, err := svc.AssignJury(cr.professor.ID, &AssignJuryRequest{DeliverableID: cr.deliverable.ID})
	require.NoError(t, err)
	assert.Len(t, res.Jurors, 3)
}

func TestSampleWithoutReplacement(t *testing.T) {
	pool := make([]models.User, 10)
	for i := range pool {
		pool[i].ID = uint(i + 1)
	}

	// always pick the last remaining element
	last := func(n int) int { return n - 1 }
	got := sampleWithoutReplacement(pool, 3, last)
	require.Len(t, got, 3)
	assert.Equal(t, uint(10), got[0].ID)

	seen := map[uint]bool{}
	for _, u := range got {
		assert.False(t, seen[u.ID])
		seen[u.ID] = true
	}
}

func TestJurors(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c, cr.e)
	svc := NewJuryService(db, nil, 3)

	jurors, err := svc.Jurors(cr.professor.ID, cr.deliverable.ID)
	require.NoError(t, err)
	require.Len(t, jurors, 2)
	assert.Equal(t, "carol", jurors[0].Name)
	assert.Equal(t, "erin", jurors[1].Name)
}
