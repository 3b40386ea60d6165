package services

import (
	"testing"
	"time"

	"github.com/econify/econify/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemLog_RecordAndList(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemLogService(db)
	uid := uint(3)

	svc.Record(LevelInfo, "Deliverable", "Grade", "POST /api/deliverables/grade", &uid, "10.0.0.1", "go-test", map[string]int{"status": 200})
	svc.Record(LevelWarning, "Team", "Join", "POST /api/teams/join", nil, "10.0.0.2", "go-test", nil)

	all, err := svc.List(&SystemLogListRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)

	filtered, err := svc.List(&SystemLogListRequest{Module: "Deliverable", UserID: uid})
	require.NoError(t, err)
	require.Len(t, filtered.Items, 1)
	assert.JSONEq(t, `{"status":200}`, filtered.Items[0].Extra)
}

func TestSystemLog_Cleanup(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemLogService(db)

	require.NoError(t, db.Create(&models.SystemLog{Level: LevelInfo, Module: "old", CreatedAt: time.Now().UTC().AddDate(0, 0, -40)}).Error)
	require.NoError(t, db.Create(&models.SystemLog{Level: LevelInfo, Module: "new", CreatedAt: time.Now().UTC()}).Error)

	deleted, err := svc.CleanupOldLogs(30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	deleted, err = svc.CleanupOldLogs(0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
