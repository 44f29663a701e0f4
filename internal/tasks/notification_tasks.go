package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"school_portal_echo/internal/models"
)

// NotificationRecipient is a staff member addressed by a notification
type NotificationRecipient struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

// SendNotificationArgs defines the arguments for a notification task
type SendNotificationArgs struct {
	NotificationID uint                    `json:"notification_id"`
	Recipients     []NotificationRecipient `json:"recipients"`
	Title          string                  `json:"title"`
	Body           string                  `json:"body"`
	AttemptCount   int                     `json:"attempt_count"`
}

// SendNotificationTaskDef delivers a notification outside the portal on each
// recipient's preferred channel.
type SendNotificationTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendNotificationTaskDef) TaskID() string {
	return "send_notification"
}

// CreateTask builds a ScheduledTask record for this task
func (t *SendNotificationTaskDef) CreateTask(args SendNotificationArgs) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, time.Now(), nil, models.ScheduledTaskTypeOneTime, 3)
}

// HandleExecution handles sending notifications based on user preference
func (t *SendNotificationTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	if deps == nil || deps.DB == nil {
		return nil, fmt.Errorf("database is not configured")
	}

	var parsedArgs SendNotificationArgs
	if err := decodeArgs(task, &parsedArgs); err != nil {
		return nil, err
	}

	total := len(parsedArgs.Recipients)
	successCount := 0
	skippedCount := 0
	failureCount := 0
	var failures []string
	var failedRecipients []NotificationRecipient

	for _, user := range parsedArgs.Recipients {
		var pref models.UserNotifPreference
		err := deps.DB.WithContext(ctx).Where("user_id = ?", user.UserID).First(&pref).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("Skipping notification for %s: no preference found", user.Name)
				skippedCount++
				continue
			}
			log.Printf("Error fetching preference for %s: %v", user.Name, err)
			failureCount++
			failures = append(failures, fmt.Sprintf("%s: db error", user.Name))
			failedRecipients = append(failedRecipients, user)
			continue
		}

		var sendErr error
		switch pref.Channel {
		case models.NotificationChannelEmail:
			sendErr = sendEmailNotif(deps.Mailer, user, parsedArgs)
		case models.NotificationChannelWhatsapp:
			sendErr = sendWhatsappNotif(ctx, deps.Messenger, user, parsedArgs, pref)
		case models.NotificationChannelNone:
			log.Printf("Notification disabled (none) for %s", user.Name)
			skippedCount++
			continue
		default:
			log.Printf("Unsupported notification channel %s for %s", pref.Channel, user.Name)
			skippedCount++
			continue
		}

		if sendErr != nil {
			log.Printf("Failed to send notification to %s via %s: %v", user.Name, pref.Channel, sendErr)
			failureCount++
			failures = append(failures, fmt.Sprintf("%s: %v", user.Name, sendErr))
			failedRecipients = append(failedRecipients, user)
		} else {
			successCount++
		}
	}

	result := map[string]interface{}{
		"notification_id": parsedArgs.NotificationID,
		"total":           total,
		"success":         successCount,
		"skipped":         skippedCount,
		"failure":         failureCount,
	}

	if failureCount > 0 {
		result["errors"] = failures

		attempt := parsedArgs.AttemptCount
		maxRetries := task.MaxAttempt

		if attempt < maxRetries {
			log.Printf("Partial failure: %d recipients failed. Rescheduling for attempt %d", len(failedRecipients), attempt+1)

			newArgs := parsedArgs
			newArgs.Recipients = failedRecipients
			newArgs.AttemptCount = attempt + 1

			// Re-schedule in 5 minutes
			nextRun := time.Now().Add(5 * time.Minute)

			newTask, err := BuildScheduledTask(t.TaskID(), newArgs, nextRun, nil, models.ScheduledTaskTypeOneTime, maxRetries)
			if err != nil {
				log.Printf("Failed to create retry task: %v", err)
			} else if err := deps.DB.WithContext(ctx).Create(newTask).Error; err != nil {
				log.Printf("Failed to save retry task: %v", err)
			} else {
				result["retry_task_id"] = newTask.ID
			}
		} else {
			log.Printf("Max attempts (%d) reached for %d failed recipients.", maxRetries, len(failedRecipients))
			return result, fmt.Errorf("max attempts reached, failed to deliver to %d recipients", len(failedRecipients))
		}
	}

	return result, nil
}

// SendNotificationTask is the singleton instance of SendNotificationTaskDef
var SendNotificationTask = &SendNotificationTaskDef{}

// sendWhatsappNotif handles sending WhatsApp notifications
func sendWhatsappNotif(ctx context.Context, messenger Messenger, user NotificationRecipient, args SendNotificationArgs, pref models.UserNotifPreference) error {
	if messenger == nil {
		return fmt.Errorf("whatsapp is not configured")
	}

	var chatId string
	if pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
		chatId = pref.WhatsappGroupID
		if chatId == "" {
			return fmt.Errorf("group ID is empty")
		}
		if !strings.HasSuffix(chatId, "@g.us") {
			chatId = chatId + "@g.us"
		}
	} else {
		chatId = user.Phone
		if chatId == "" {
			return fmt.Errorf("phone number is empty")
		}
	}

	msg := fmt.Sprintf("*%s*\n%s", args.Title, replacePlaceholders(args.Body, user))
	return messenger.SendMessage(ctx, chatId, msg)
}

// sendEmailNotif handles sending Email notifications
func sendEmailNotif(mailer Mailer, user NotificationRecipient, args SendNotificationArgs) error {
	if mailer == nil {
		return fmt.Errorf("email is not configured")
	}
	if user.Email == "" {
		return fmt.Errorf("email address is empty")
	}

	subject := "Notification"
	if args.Title != "" {
		subject = args.Title
	}

	body := fmt.Sprintf("Hello %s,\n\n%s\n", user.Name, replacePlaceholders(args.Body, user))
	return mailer.SendEmail([]string{user.Email}, subject, body)
}

func replacePlaceholders(template string, user NotificationRecipient) string {
	return strings.NewReplacer(
		"$name", user.Name,
		"$email", user.Email,
	).Replace(template)
}
