package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"school_portal_echo/internal/models"
	"school_portal_echo/internal/payments"
)

// Mailer sends plain-text email
type Mailer interface {
	SendEmail(to []string, subject, body string) error
}

// Messenger sends WhatsApp messages
type Messenger interface {
	SendMessage(ctx context.Context, chatId, text string) error
}

// Deps are the collaborators a task handler may use
type Deps struct {
	DB                   *gorm.DB
	Store                payments.Store
	Mailer               Mailer
	Messenger            Messenger
	PlatformSharePercent decimal.Decimal
	Logger               *slog.Logger
}

// TaskHandler is the function signature for a task handler
// It returns a result map that is stored in the task history
type TaskHandler func(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error)

// Registry stores the mapping of task names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]TaskHandler)}
}

// GlobalRegistry is the default global registry
var GlobalRegistry = NewRegistry()

// Register adds a handler for a task name
func (r *Registry) Register(name string, handler TaskHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Get retrieves a handler for a task name
func (r *Registry) Get(name string) (TaskHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}

// Names lists the registered task names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// GetHandler is a helper to get from the global registry
func GetHandler(name string) (TaskHandler, bool) {
	return GlobalRegistry.Get(name)
}
