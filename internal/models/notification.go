package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app message addressed to one or more staff roles
type Notification struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	Title       string            `gorm:"type:varchar(255)" json:"title"`
	Body        string            `gorm:"type:text" json:"body"`
	TargetRoles []string          `gorm:"serializer:json" json:"target_roles"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}

// HasRole reports whether the notification targets the given role
func (n Notification) HasRole(role UserRole) bool {
	for _, r := range n.TargetRoles {
		if r == string(role) {
			return true
		}
	}
	return false
}
