package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole represents the portal role of a user
type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleAdmin      UserRole = "admin"
	RoleAccountant UserRole = "accountant"
	RoleTeacher    UserRole = "teacher"
	RoleParent     UserRole = "parent"
)

// User represents a portal account. FirebaseUID links it to the session identity.
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FirebaseUID string   `gorm:"type:varchar(128);uniqueIndex" json:"firebase_uid"`
	Name        string   `gorm:"type:varchar(255)" json:"name"`
	Phone       string   `gorm:"type:varchar(50)" json:"phone"`
	Email       string   `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Role        UserRole `gorm:"type:varchar(20);index;default:'parent'" json:"role"`

	NotifPreference *UserNotifPreference `gorm:"foreignKey:UserID" json:"notif_preference,omitempty"`
}

// IsStaff reports whether the user may see settlement data
func (u User) IsStaff() bool {
	switch u.Role {
	case RoleSuperAdmin, RoleAdmin, RoleAccountant:
		return true
	}
	return false
}
