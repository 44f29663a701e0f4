package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentGateway string

const (
	PaymentGatewayPaystack PaymentGateway = "paystack"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// PaymentCallbackHistory keeps the raw gateway answer for every verification attempt
type PaymentCallbackHistory struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	PaymentGateway PaymentGateway    `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	Reference      string            `gorm:"type:varchar(191);index" json:"reference"`
	GatewayStatus  string            `gorm:"type:varchar(50)" json:"gateway_status"`
	Verified       bool              `json:"verified"`
	Metadata       datatypes.JSONMap `json:"metadata"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	DeletedAt      gorm.DeletedAt    `gorm:"index" json:"deleted_at,omitempty"`
}
