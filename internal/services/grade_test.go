package services

import (
	"bytes"
	"testing"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/logger"
	"github.com/econify/econify/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradePtr(v float64) *float64 { return &v }

func TestSubmitGrade_Range(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c)
	svc := NewGradeService(db, testGradingConfig(), nil)

	tests := []struct {
		grade float64
		ok    bool
	}{
		{0.99, false},
		{1, true},
		{5.5, true},
		{10, true},
		{10.01, false},
		{-3, false},
	}
	for _, tt := range tests {
		_, err := svc.SubmitGrade(cr.c.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(tt.grade)})
		if tt.ok {
			assert.NoError(t, err, "grade %v", tt.grade)
		} else {
			assert.Equal(t, response.KindValidation, response.KindOf(err), "grade %v", tt.grade)
		}
	}
}

func TestSubmitGrade_UpsertKeepsOneRow(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c)
	svc := NewGradeService(db, testGradingConfig(), nil)

	created, err := svc.SubmitGrade(cr.c.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(6), Feedback: "ok"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.SubmitGrade(cr.c.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(8.456), Feedback: "better"})
	require.NoError(t, err)
	assert.False(t, created)

	var grades []models.Grade
	require.NoError(t, db.Where("deliverable_id = ? AND user_id = ?", cr.deliverable.ID, cr.c.ID).Find(&grades).Error)
	require.Len(t, grades, 1)
	assert.Equal(t, 8.46, grades[0].Grade)
	assert.Equal(t, "better", grades[0].Feedback)
}

func TestSubmitGrade_Rejections(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c)
	svc := NewGradeService(db, testGradingConfig(), nil)

	_, err := svc.SubmitGrade(cr.e.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(7)})
	assert.ErrorIs(t, err, ErrNotJuror)

	_, err = svc.SubmitGrade(cr.c.ID, &SubmitGradeRequest{DeliverableID: 4242, Grade: gradePtr(7)})
	assert.ErrorIs(t, err, ErrDeliverableNotFound)

	// membership is checked before range
	_, err = svc.SubmitGrade(cr.e.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(99)})
	assert.ErrorIs(t, err, ErrNotJuror)

	_, err = svc.SubmitGrade(cr.c.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID})
	assert.Equal(t, response.KindValidation, response.KindOf(err))

	var count int64
	require.NoError(t, db.Model(&models.Grade{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetAggregate(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c, cr.d, cr.e)
	notifier := &recordingNotifier{}
	svc := NewGradeService(db, testGradingConfig(), notifier)

	_, err := svc.GetAggregate(cr.deliverable.ID)
	assert.ErrorIs(t, err, ErrGradesNotReleased)

	for i, juror := range []*models.User{cr.c, cr.d, cr.e} {
		_, err := svc.SubmitGrade(juror.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(float64(6 + 2*i))})
		require.NoError(t, err)
	}

	_, err = svc.GetAggregate(cr.deliverable.ID)
	assert.ErrorIs(t, err, ErrGradesNotReleased, "unreleased grades stay hidden even when present")

	_, err = svc.ToggleRelease(cr.professor.ID, cr.deliverable.ID)
	require.NoError(t, err)

	agg, err := svc.GetAggregate(cr.deliverable.ID)
	require.NoError(t, err)
	assert.Equal(t, "8.00", agg.AverageGrade)
	assert.EqualValues(t, 3, agg.TotalGrades)
}

func TestGetAggregate_RoundsHalfUp(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c, cr.d)
	svc := NewGradeService(db, testGradingConfig(), nil)

	for juror, grade := range map[*models.User]float64{cr.c: 8.25, cr.d: 8.00} {
		_, err := svc.SubmitGrade(juror.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(grade)})
		require.NoError(t, err)
	}
	_, err := svc.ToggleRelease(cr.professor.ID, cr.deliverable.ID)
	require.NoError(t, err)

	agg, err := svc.GetAggregate(cr.deliverable.ID)
	require.NoError(t, err)
	assert.Equal(t, "8.13", agg.AverageGrade)
}

func TestFormatAverage(t *testing.T) {
	tests := []struct {
		avg  float64
		want string
	}{
		{8, "8.00"},
		{8.125, "8.13"},
		{6.375, "6.38"},
		{7.5, "7.50"},
		{9.994, "9.99"},
		{1, "1.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAverage(tt.avg), "formatAverage(%v)", tt.avg)
	}
}

func TestSubmitGrade_FirstGradeLogsNothing(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c)
	svc := NewGradeService(db, testGradingConfig(), nil)

	var buf bytes.Buffer
	logger.InitWriter("warn", &buf)
	t.Cleanup(func() { logger.Init("info") })

	created, err := svc.SubmitGrade(cr.c.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(7)})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, buf.String())
}

func TestGetAggregate_NoGrades(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	require.NoError(t, db.Model(cr.deliverable).Update("released", true).Error)
	svc := NewGradeService(db, testGradingConfig(), nil)

	_, err := svc.GetAggregate(cr.deliverable.ID)
	assert.ErrorIs(t, err, ErrNoGrades)

	_, err = svc.GetAggregate(777)
	assert.ErrorIs(t, err, ErrDeliverableNotFound)
}

func TestToggleRelease_IsInvolutive(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	notifier := &recordingNotifier{}
	svc := NewGradeService(db, testGradingConfig(), notifier)

	first, err := svc.ToggleRelease(cr.professor.ID, cr.deliverable.ID)
	require.NoError(t, err)
	assert.True(t, first.Deliverable.Released)
	assert.Equal(t, "grades released", first.Message)

	second, err := svc.ToggleRelease(cr.professor.ID, cr.deliverable.ID)
	require.NoError(t, err)
	assert.False(t, second.Deliverable.Released)
	assert.Equal(t, "grades hidden", second.Message)

	sent := notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, models.NotificationGradesReleased, sent[0].Type)
	assert.Equal(t, models.NotificationGradesHidden, sent[1].Type)
	assert.ElementsMatch(t, []uint{cr.a.ID, cr.b.ID}, sent[0].UserIDs)

	other := createUser(t, db, "otherprof", models.RoleProfessor)
	_, err = svc.ToggleRelease(other.ID, cr.deliverable.ID)
	assert.ErrorIs(t, err, ErrNotProjectOwner)
}

func TestProfessorGrades_BypassesReleaseGate(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c, cr.d)
	svc := NewGradeService(db, testGradingConfig(), nil)

	_, err := svc.SubmitGrade(cr.c.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(7), Feedback: "clear"})
	require.NoError(t, err)

	view, err := svc.ProfessorGrades(cr.professor.ID, cr.deliverable.ID)
	require.NoError(t, err)
	assert.False(t, view.Released)
	assert.EqualValues(t, 2, view.JurySize)
	require.Len(t, view.Grades, 1)
	assert.Equal(t, "carol", view.Grades[0].Juror.Name)
	require.NotNil(t, view.Aggregate)
	assert.Equal(t, "7.00", view.Aggregate.AverageGrade)

	other := createUser(t, db, "otherprof", models.RoleProfessor)
	_, err = svc.ProfessorGrades(other.ID, cr.deliverable.ID)
	assert.ErrorIs(t, err, ErrNotProjectOwner)
}

func TestStudentGrades_AnonymisesJurors(t *testing.T) {
	db := newTestDB(t)
	cr := newClassroom(t, db)
	assignJurors(t, db, cr.deliverable, cr.c, cr.d)
	svc := NewGradeService(db, testGradingConfig(), nil)

	_, err := svc.SubmitGrade(cr.d.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(9), Feedback: "great"})
	require.NoError(t, err)
	_, err = svc.SubmitGrade(cr.c.ID, &SubmitGradeRequest{DeliverableID: cr.deliverable.ID, Grade: gradePtr(5), Feedback: "thin"})
	require.NoError(t, err)

	_, err = svc.StudentGrades(cr.a.ID, cr.deliverable.ID)
	assert.ErrorIs(t, err, ErrGradesNotReleased)

	_, err = svc.ToggleRelease(cr.professor.ID, cr.deliverable.ID)
	require.NoError(t, err)

	view, err := svc.StudentGrades(cr.a.ID, cr.deliverable.ID)
	require.NoError(t, err)
	require.Len(t, view.Grades, 2)
	assert.Equal(t, "Juror 1", view.Grades[0].Juror)
	assert.Equal(t, "great", view.Grades[0].Feedback)
	assert.Equal(t, "Juror 2", view.Grades[1].Juror)
	assert.Equal(t, "7.00", view.AverageGrade)

	_, err = svc.StudentGrades(cr.c.ID, cr.deliverable.ID)
	assert.ErrorIs(t, err, ErrNotTeamMember)
}
