package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"school_portal_echo/internal/models"
	"school_portal_echo/internal/payments"
	"school_portal_echo/internal/services"
	"school_portal_echo/internal/tasks"
)

const recipientsTTL = 5 * time.Minute

// ChannelName is the Redis pub/sub channel for a role's live feed
func ChannelName(role models.UserRole) string {
	return "notifications:" + string(role)
}

// RecipientsCacheKey is where the out-of-portal recipients for roles are cached
func RecipientsCacheKey(roles []models.UserRole) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	sort.Strings(names)
	return "notifications:recipients:" + strings.Join(names, ",")
}

// Publisher stores notifications, pushes them to live subscribers and queues
// email/WhatsApp delivery for staff who asked for it.
type Publisher struct {
	db     *gorm.DB
	cache  *services.RedisCache
	logger *slog.Logger
}

// NewPublisher returns a Publisher. cache may be nil.
func NewPublisher(db *gorm.DB, cache *services.RedisCache, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{db: db, cache: cache, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event payments.NotificationEvent) error {
	roles := make([]string, len(event.TargetRoles))
	for i, r := range event.TargetRoles {
		roles[i] = string(r)
	}

	n := models.Notification{
		Title:       event.Title,
		Body:        event.Body,
		TargetRoles: roles,
		Metadata:    payments.CloneBag(event.Metadata),
	}
	if err := p.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	var errs []error
	if p.cache != nil {
		for _, role := range event.TargetRoles {
			if err := p.cache.Publish(ctx, ChannelName(role), n); err != nil {
				errs = append(errs, fmt.Errorf("publish %s: %w", ChannelName(role), err))
			}
		}
	}

	if err := p.enqueueDelivery(ctx, n, event.TargetRoles); err != nil {
		errs = append(errs, err)
	}

	p.logger.InfoContext(ctx, "notification published", "notification_id", n.ID, "roles", roles)
	return errors.Join(errs...)
}

func (p *Publisher) enqueueDelivery(ctx context.Context, n models.Notification, roles []models.UserRole) error {
	recipients, err := p.recipients(ctx, roles)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	task, err := tasks.SendNotificationTask.CreateTask(tasks.SendNotificationArgs{
		NotificationID: n.ID,
		Recipients:     recipients,
		Title:          n.Title,
		Body:           n.Body,
	})
	if err != nil {
		return err
	}
	if err := p.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("queue delivery: %w", err)
	}
	return nil
}

func (p *Publisher) recipients(ctx context.Context, roles []models.UserRole) ([]tasks.NotificationRecipient, error) {
	load := func() ([]tasks.NotificationRecipient, error) {
		return StaffRecipients(ctx, p.db, roles)
	}
	if p.cache == nil {
		return load()
	}
	return services.GetOrSet(p.cache, ctx, RecipientsCacheKey(roles), recipientsTTL, load)
}

// InvalidateRecipients drops the cached recipient list for roles
func (p *Publisher) InvalidateRecipients(ctx context.Context, roles []models.UserRole) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Delete(ctx, RecipientsCacheKey(roles))
}

// StaffRecipients returns users in roles whose preference is email or WhatsApp
func StaffRecipients(ctx context.Context, db *gorm.DB, roles []models.UserRole) ([]tasks.NotificationRecipient, error) {
	var users []models.User
	err := db.WithContext(ctx).
		Joins("JOIN user_notif_preferences ON user_notif_preferences.user_id = users.id AND user_notif_preferences.deleted_at IS NULL").
		Where("users.role IN ?", roles).
		Where("user_notif_preferences.channel IN ?", []models.NotificationChannel{models.NotificationChannelEmail, models.NotificationChannelWhatsapp}).
		Order("users.id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	recipients := make([]tasks.NotificationRecipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, tasks.NotificationRecipient{
			UserID: u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Phone:  u.Phone,
		})
	}
	return recipients, nil
}

// Feed lists the most recent notifications addressed to role
func Feed(ctx context.Context, db *gorm.DB, role models.UserRole, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	// target_roles is a JSON array; scan a bounded window and filter in Go
	var recent []models.Notification
	if err := db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit * 4).Find(&recent).Error; err != nil {
		return nil, err
	}

	out := make([]models.Notification, 0, limit)
	for _, n := range recent {
		if n.HasRole(role) {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
