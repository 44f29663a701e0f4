package models

import (
	"time"

	"gorm.io/datatypes"
)

// Receipt is issued once per payment. ReceiptNumber never changes after creation.
type Receipt struct {
	ID            string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PaymentID     string            `gorm:"type:varchar(36);uniqueIndex;not null" json:"paymentId"`
	ReceiptNumber string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"receiptNumber"`
	StudentName   string            `gorm:"type:varchar(255)" json:"studentName"`
	Amount        float64           `gorm:"type:decimal(15,2)" json:"amount"`
	Reference     string            `gorm:"type:varchar(191);index" json:"reference"`
	IssuedBy      string            `gorm:"type:varchar(255)" json:"issuedBy"`
	DateIssued    time.Time         `json:"dateIssued"`
	Metadata      datatypes.JSONMap `json:"metadata"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
