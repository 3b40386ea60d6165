package services

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/econify/econify/internal/config"
	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/internal/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	utils.SetJWTSecret("services-test-secret")
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.InitDB(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "econify_test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = models.Close(db) })
	return db
}

func testGradingConfig() *config.GradingConfig {
	return &config.GradingConfig{MinGrade: 1, MaxGrade: 10, MaxTeamSize: 5, DefaultJurySize: 3, Timezone: "UTC"}
}

// recordingNotifier keeps every task instead of delivering it.
type recordingNotifier struct {
	mu    sync.Mutex
	tasks []*NotificationTask
}

func (n *recordingNotifier) Notify(task *NotificationTask) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, task)
}

func (n *recordingNotifier) sent() []*NotificationTask {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*NotificationTask(nil), n.tasks...)
}

func createUser(t *testing.T, db *gorm.DB, name, role string) *models.User {
	t.Helper()
	u := &models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s@uni.test", name),
		Role:     role,
		AuthType: models.AuthTypeLocal,
		IsActive: true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createProject(t *testing.T, db *gorm.DB, professor *models.User) *models.Project {
	t.Helper()
	p := &models.Project{Title: "Microeconomics", ProfessorID: professor.ID}
	require.NoError(t, db.Create(p).Error)
	return p
}

func createTeam(t *testing.T, db *gorm.DB, project *models.Project, name string, members ...*models.User) *models.Team {
	t.Helper()
	team := &models.Team{Name: name, ProjectID: project.ID}
	require.NoError(t, db.Create(team).Error)
	for _, m := range members {
		require.NoError(t, db.Create(&models.TeamMember{TeamID: team.ID, ProjectID: project.ID, UserID: m.ID}).Error)
	}
	return team
}

func createDeliverable(t *testing.T, db *gorm.DB, team *models.Team, title string, due time.Time) *models.Deliverable {
	t.Helper()
	d := &models.Deliverable{Title: title, DueDate: due.UTC(), TeamID: team.ID}
	require.NoError(t, db.Create(d).Error)
	return d
}

func assignJurors(t *testing.T, db *gorm.DB, d *models.Deliverable, jurors ...*models.User) {
	t.Helper()
	for _, j := range jurors {
		require.NoError(t, db.Create(&models.DeliverableJury{DeliverableID: d.ID, UserID: j.ID, AssignedAt: time.Now().UTC()}).Error)
	}
	require.NoError(t, db.Model(d).Update("is_assigned", true).Error)
}

// classroom is a professor, one project and two teams:
// T1 = {A, B}, T2 = {C, D}, plus E who is in no team.
type classroom struct {
	professor     *models.User
	project       *models.Project
	t1, t2        *models.Team
	a, b, c, d, e *models.User
	deliverable   *models.Deliverable
}

func newClassroom(t *testing.T, db *gorm.DB) *classroom {
	t.Helper()
	cr := &classroom{professor: createUser(t, db, "prof", models.RoleProfessor)}
	cr.project = createProject(t, db, cr.professor)
	cr.a = createUser(t, db, "alice", models.RoleStudent)
	cr.b = createUser(t, db, "bob", models.RoleStudent)
	cr.c = createUser(t, db, "carol", models.RoleStudent)
	cr.d = createUser(t, db, "dave", models.RoleStudent)
	cr.e = createUser(t, db, "erin", models.RoleStudent)
	cr.t1 = createTeam(t, db, cr.project, "T1", cr.a, cr.b)
	cr.t2 = createTeam(t, db, cr.project, "T2", cr.c, cr.d)
	cr.deliverable = createDeliverable(t, db, cr.t1, "Market analysis", time.Now().Add(48*time.Hour))
	return cr
}
