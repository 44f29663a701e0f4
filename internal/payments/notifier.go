package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"school_portal_echo/internal/models"
)

// PaymentNotificationRoles receive a notification for every settled payment
var PaymentNotificationRoles = []models.UserRole{
	models.RoleAdmin,
	models.RoleSuperAdmin,
	models.RoleAccountant,
}

// NotificationEvent is a fan-out message for staff
type NotificationEvent struct {
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	TargetRoles []models.UserRole      `json:"targetRoles"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Publisher delivers notification events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event NotificationEvent) error
}

// PublisherFunc adapts a function to the Publisher interface
type PublisherFunc func(ctx context.Context, event NotificationEvent) error

func (f PublisherFunc) Publish(ctx context.Context, event NotificationEvent) error {
	return f(ctx, event)
}

// LogPublisher only logs events. Used when no delivery backend is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, event NotificationEvent) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "title", event.Title, "body", event.Body, "roles", event.TargetRoles)
	return nil
}

// NewPaymentNotification builds the staff notification for a settled payment
func NewPaymentNotification(payment *models.PaymentInitialization, c Canonical, amount decimal.Decimal, currencySymbol string) NotificationEvent {
	title := "Payment verified"
	if c.ParentName != "" {
		title = fmt.Sprintf("Payment received from %s", c.ParentName)
	}

	studentID := ""
	if payment.StudentID != nil {
		studentID = *payment.StudentID
	}

	return NotificationEvent{
		Title:       title,
		Body:        fmt.Sprintf("%s • %s%s (%s)", c.StudentName, currencySymbol, FormatAmount(amount), c.PaymentType),
		TargetRoles: append([]models.UserRole(nil), PaymentNotificationRoles...),
		Metadata: map[string]interface{}{
			"paymentId":   payment.ID,
			"studentId":   studentID,
			"parentName":  c.ParentName,
			"parentEmail": c.ParentEmail,
			"amount":      amount.InexactFloat64(),
			"paymentType": c.PaymentType,
			"reference":   payment.Reference,
		},
	}
}

// FormatAmount renders a major-unit amount with thousands separators and 2 decimals
func FormatAmount(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac := fixed[:len(fixed)-3], fixed[len(fixed)-2:]

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
