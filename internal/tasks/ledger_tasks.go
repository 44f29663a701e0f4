package tasks

import (
	"context"
	"fmt"
	"time"

	"school_portal_echo/internal/models"
	"school_portal_echo/internal/payments"
)

// DefaultLedgerBackfillRule runs the backfill every night at 02:00
const DefaultLedgerBackfillRule = "FREQ=DAILY;BYHOUR=2;BYMINUTE=0;BYSECOND=0"

// LedgerBackfillArgs defines the arguments for a ledger backfill task
type LedgerBackfillArgs struct {
	Limit int `json:"limit"`
}

// LedgerBackfillTaskDef recreates fee ledger entries for completed payments
// whose ledger write failed during verification.
type LedgerBackfillTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *LedgerBackfillTaskDef) TaskID() string {
	return "ledger_backfill"
}

// CreateTask builds a ScheduledTask record for this task. An empty rule makes it one-time.
func (t *LedgerBackfillTaskDef) CreateTask(args LedgerBackfillArgs, due time.Time, rule string) (*models.ScheduledTask, error) {
	if rule == "" {
		return BuildScheduledTask(t.TaskID(), args, due, nil, models.ScheduledTaskTypeOneTime, 1)
	}
	return BuildScheduledTask(t.TaskID(), args, due, &rule, models.ScheduledTaskTypeRecurring, 1)
}

// HandleExecution runs one backfill pass
func (t *LedgerBackfillTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	if deps == nil || deps.Store == nil {
		return nil, fmt.Errorf("payment store is not configured")
	}

	var args LedgerBackfillArgs
	if err := decodeArgs(task, &args); err != nil {
		return nil, err
	}

	result, err := payments.BackfillLedger(ctx, deps.Store, deps.PlatformSharePercent, args.Limit, deps.Logger)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"scanned": result.Scanned,
		"written": result.Written,
		"skipped": result.Skipped,
		"failure": result.Failed,
	}
	if len(result.Errors) > 0 {
		out["errors"] = result.Errors
	}
	return out, nil
}

// LedgerBackfillTask is the singleton instance of LedgerBackfillTaskDef
var LedgerBackfillTask = &LedgerBackfillTaskDef{}
