package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"school_portal_echo/internal/models"
)

// Runner executes due scheduled tasks and records their history
type Runner struct {
	registry *Registry
	deps     *Deps
	logger   *slog.Logger
	now      func() time.Time
}

func NewRunner(registry *Registry, deps *Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{registry: registry, deps: deps, logger: logger, now: time.Now}
}

// ProcessDue runs every active task whose due time has passed and returns how many ran
func (r *Runner) ProcessDue(ctx context.Context) (int, error) {
	var pending []models.ScheduledTask
	// status=active & due<=now
	err := r.deps.DB.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due ASC").
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("fetch pending tasks: %w", err)
	}

	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		r.execute(ctx, task, 1)
		ran++
	}
	return ran, nil
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask, attempt int) {
	db := r.deps.DB.WithContext(ctx)
	r.logger.InfoContext(ctx, "processing task", "task", task.TaskName, "task_id", task.ID, "attempt", attempt)

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		now := r.now()
		r.logger.WarnContext(ctx, "task handler not found", "task", task.TaskName, "task_id", task.ID)
		err := db.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		}).Error
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to update task", "task_id", task.ID, "err", err)
		}
		r.recordHistory(ctx, models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		return
	}

	startTime := r.now()
	result, err := handler(ctx, r.deps, task)
	runtime := int(time.Since(startTime).Milliseconds())

	status := "success"
	if err != nil {
		status = "failure"
		result = map[string]interface{}{"error": err.Error()}
		r.logger.WarnContext(ctx, "task failed", "task", task.TaskName, "task_id", task.ID, "attempt", attempt, "err", err)
	}

	r.recordHistory(ctx, models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           startTime,
		Runtime:         runtime,
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	})

	updates := map[string]interface{}{"last_run": &startTime}

	if err != nil {
		if attempt < task.MaxAttempt {
			r.execute(ctx, task, attempt+1)
			return
		}
		updates["status"] = models.ScheduledTaskStatusFailure
	} else {
		switch task.TaskType {
		case models.ScheduledTaskTypeRecurring:
			nextDue := task.NextDue(r.now())
			// a rule with no future occurrence ends the task
			if nextDue.After(task.Due) {
				updates["status"] = models.ScheduledTaskStatusActive
				updates["due"] = nextDue
			} else {
				updates["status"] = models.ScheduledTaskStatusDone
			}
		default:
			updates["status"] = models.ScheduledTaskStatusDone
		}
	}

	if err := db.Model(&task).Updates(updates).Error; err != nil {
		r.logger.ErrorContext(ctx, "failed to update task", "task_id", task.ID, "err", err)
	}
}

func (r *Runner) recordHistory(ctx context.Context, history models.ScheduledTaskHistory) {
	if err := r.deps.DB.WithContext(ctx).Create(&history).Error; err != nil {
		r.logger.ErrorContext(ctx, "failed to record task history",
			"task", history.TaskName, "task_id", history.ScheduledTaskID, "attempt", history.AttemptNumber, "err", err)
	}
}
