package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentStatus represents the settlement state of a payment initialization
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentInitialization is the payment intent/settlement record for a gateway reference.
// Records are created on the first verification attempt and updated in place afterwards.
type PaymentInitialization struct {
	ID                string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Reference         string            `gorm:"type:varchar(191);index;not null" json:"reference"`
	PaystackReference *string           `gorm:"type:varchar(191);index" json:"paystackReference,omitempty"`
	Amount            float64           `gorm:"type:decimal(15,2)" json:"amount"`
	StudentID         *string           `gorm:"type:varchar(64);index" json:"studentId"`
	PaymentType       string            `gorm:"type:varchar(100);default:'general'" json:"paymentType"`
	Email             string            `gorm:"type:varchar(255)" json:"email"`
	Status            PaymentStatus     `gorm:"type:varchar(20);index" json:"status"`
	Metadata          datatypes.JSONMap `json:"metadata"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}
