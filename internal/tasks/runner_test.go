package tasks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_portal_echo/internal/models"
)

func TestRunnerProcessDue(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.ScheduledTaskHistory{}))

	now := time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)
	flakyCalls := 0

	r := NewRegistry()
	DefineTasks(r)
	r.Register("flaky", func(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
		flakyCalls++
		if flakyCalls == 1 {
			return nil, errors.New("smtp timeout")
		}
		return map[string]interface{}{"ok": true}, nil
	})
	r.Register("broken", func(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
		return nil, errors.New("always fails")
	})

	rule := DefaultLedgerBackfillRule
	seed := []models.ScheduledTask{
		{TaskName: "log_info", Arguments: map[string]interface{}{"message": "nightly"}, Due: now.Add(-time.Hour), RecurringInterval: &rule, TaskType: models.ScheduledTaskTypeRecurring, MaxAttempt: 1, Status: models.ScheduledTaskStatusActive},
		{TaskName: "flaky", Arguments: map[string]interface{}{}, Due: now.Add(-time.Minute), TaskType: models.ScheduledTaskTypeOneTime, MaxAttempt: 3, Status: models.ScheduledTaskStatusActive},
		{TaskName: "broken", Arguments: map[string]interface{}{}, Due: now.Add(-time.Minute), TaskType: models.ScheduledTaskTypeOneTime, MaxAttempt: 2, Status: models.ScheduledTaskStatusActive},
		{TaskName: "missing", Arguments: map[string]interface{}{}, Due: now.Add(-time.Minute), TaskType: models.ScheduledTaskTypeOneTime, MaxAttempt: 1, Status: models.ScheduledTaskStatusActive},
		{TaskName: "log_info", Arguments: map[string]interface{}{"message": "later"}, Due: now.Add(time.Hour), TaskType: models.ScheduledTaskTypeOneTime, MaxAttempt: 1, Status: models.ScheduledTaskStatusActive},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	runner := NewRunner(r, &Deps{DB: db, Logger: discardLogger()})
	runner.now = func() time.Time { return now }

	ran, err := runner.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, ran)

	reload := func(id uint) models.ScheduledTask {
		var task models.ScheduledTask
		require.NoError(t, db.First(&task, id).Error)
		return task
	}

	recurring := reload(seed[0].ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, recurring.Status)
	assert.True(t, recurring.Due.Equal(time.Date(2026, 9, 2, 2, 0, 0, 0, time.UTC)), recurring.Due)

	assert.Equal(t, models.ScheduledTaskStatusDone, reload(seed[1].ID).Status)
	assert.Equal(t, 2, flakyCalls)
	assert.Equal(t, models.ScheduledTaskStatusFailure, reload(seed[2].ID).Status)
	assert.Equal(t, models.ScheduledTaskStatusFailure, reload(seed[3].ID).Status)
	assert.Equal(t, models.ScheduledTaskStatusActive, reload(seed[4].ID).Status)

	var history []models.ScheduledTaskHistory
	require.NoError(t, db.Where("scheduled_task_id = ?", seed[2].ID).Order("attempt_number").Find(&history).Error)
	require.Len(t, history, 2)
	assert.Equal(t, "failure", history[1].Status)
	assert.Equal(t, "always fails", history[1].Result["error"])

	var missing models.ScheduledTaskHistory
	require.NoError(t, db.Where("scheduled_task_id = ?", seed[3].ID).First(&missing).Error)
	assert.Equal(t, "handler_not_found", missing.Status)
}

func TestRunnerLogsHistoryWriteFailures(t *testing.T) {
	ctx := context.Background()
	// no history table, so every history insert fails
	db := newTestDB(t)

	now := time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)
	task := models.ScheduledTask{TaskName: "log_info", Arguments: map[string]interface{}{"message": "hi"}, Due: now.Add(-time.Minute), TaskType: models.ScheduledTaskTypeOneTime, MaxAttempt: 1, Status: models.ScheduledTaskStatusActive}
	missing := models.ScheduledTask{TaskName: "missing", Arguments: map[string]interface{}{}, Due: now.Add(-time.Minute), TaskType: models.ScheduledTaskTypeOneTime, MaxAttempt: 1, Status: models.ScheduledTaskStatusActive}
	require.NoError(t, db.Create(&task).Error)
	require.NoError(t, db.Create(&missing).Error)

	var logs bytes.Buffer
	r := NewRegistry()
	DefineTasks(r)
	runner := NewRunner(r, &Deps{DB: db, Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	runner.now = func() time.Time { return now }

	ran, err := runner.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ran)

	assert.Equal(t, 2, bytes.Count(logs.Bytes(), []byte("failed to record task history")))

	var reloaded models.ScheduledTask
	require.NoError(t, db.First(&reloaded, task.ID).Error)
	assert.Equal(t, models.ScheduledTaskStatusDone, reloaded.Status)
	require.NoError(t, db.First(&reloaded, missing.ID).Error)
	assert.Equal(t, models.ScheduledTaskStatusFailure, reloaded.Status)
}
