package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"school_portal_echo/internal/models"
	"school_portal_echo/internal/services"
	"school_portal_echo/internal/tasks"
)

func main() {
	// defined flags
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (format: 2006-01-02 15:04 or RFC3339, default: now)")
	taskType := flag.String("tasktype", "", "Task type: onetime or recurring (default: onetime, recurring when -recurring is set)")
	recurring := flag.String("recurring", "", "RFC 5545 recurrence rule (optional)")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts (optional, default: 3)")

	flag.Parse()

	tasks.DefineTasks(tasks.GlobalRegistry)

	// Validation
	if *taskName == "" {
		fmt.Println("Usage: schedule_task -task_name <name> [-arguments <json_args>] [-due <YYYY-MM-DD HH:MM>] [options]")
		fmt.Printf("Known tasks: %s\n", strings.Join(tasks.GlobalRegistry.Names(), ", "))
		flag.PrintDefaults()
		os.Exit(1)
	}
	if _, ok := tasks.GetHandler(*taskName); !ok {
		log.Fatalf("Unknown task %q. Known tasks: %s", *taskName, strings.Join(tasks.GlobalRegistry.Names(), ", "))
	}

	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	// Init DB
	db, err := services.InitDB(dsn, true)
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}

	// Parse arguments JSON
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.Fatalf("Invalid JSON arguments: %v", err)
	}

	due, err := parseDue(*dueStr)
	if err != nil {
		log.Fatalf("Invalid due date format. Use '2006-01-02 15:04' (Local) or RFC3339: %v", err)
	}

	rule := *recurring
	if rule == "" && *taskName == tasks.LedgerBackfillTask.TaskID() && *taskType == string(models.ScheduledTaskTypeRecurring) {
		rule = tasks.DefaultLedgerBackfillRule
	}

	var recurringPtr *string
	kind := models.ScheduledTaskTypeOneTime
	if rule != "" {
		recurringPtr = &rule
		kind = models.ScheduledTaskTypeRecurring
	}
	if *taskType != "" {
		kind = models.ScheduledTaskType(*taskType)
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringPtr, kind, *maxAttempt)
	if err != nil {
		log.Fatalf("Failed to build task: %v", err)
	}

	if err := db.Create(task).Error; err != nil {
		log.Fatalf("Failed to create task: %v", err)
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
	if task.RecurringInterval != nil {
		fmt.Printf("Rule: %s\nNext run after due: %s\n", *task.RecurringInterval, task.NextDue(task.Due))
	}
}

func parseDue(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if due, err := time.Parse(time.RFC3339, s); err == nil {
		return due, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", s, time.Local)
}
