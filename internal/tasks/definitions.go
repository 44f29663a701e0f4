package tasks

// DefineTasks registers all available tasks on r
func DefineTasks(r *Registry) {
	// General tasks
	r.Register(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// Settlement tasks
	r.Register(LedgerBackfillTask.TaskID(), LedgerBackfillTask.HandleExecution)

	// Notification tasks
	r.Register(SendNotificationTask.TaskID(), SendNotificationTask.HandleExecution)
}
