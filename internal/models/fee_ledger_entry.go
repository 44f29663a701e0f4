package models

import "time"

// LedgerSource identifies which path produced a ledger entry
type LedgerSource string

const (
	LedgerSourcePaystack LedgerSource = "paystack"
	LedgerSourceManual   LedgerSource = "manual"
)

// FeeLedgerEntry is an append-only settlement row in the school's fee ledger.
// Amount is the school's net share, not the gross paid by the payer.
type FeeLedgerEntry struct {
	ID               string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StudentID        *string      `gorm:"type:varchar(64);index" json:"studentId"`
	StudentName      string       `gorm:"type:varchar(255)" json:"studentName"`
	ClassID          *string      `gorm:"type:varchar(64)" json:"classId,omitempty"`
	ClassName        *string      `gorm:"type:varchar(255)" json:"className,omitempty"`
	FeeType          string       `gorm:"type:varchar(100)" json:"feeType"`
	Amount           float64      `gorm:"type:decimal(15,2)" json:"amount"`
	PaymentDate      time.Time    `json:"paymentDate"`
	PaymentMethod    string       `gorm:"type:varchar(50)" json:"paymentMethod"`
	PaymentReference string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_fee_ledger_source_reference,priority:2" json:"paymentReference"`
	Source           LedgerSource `gorm:"type:varchar(20);not null;uniqueIndex:ux_fee_ledger_source_reference,priority:1" json:"source"`
	Term             string       `gorm:"type:varchar(50)" json:"term"`
	Session          string       `gorm:"type:varchar(50)" json:"session"`
	RecordedByID     string       `gorm:"type:varchar(128)" json:"recordedById"`
	RecordedByName   string       `gorm:"type:varchar(255)" json:"recordedByName"`
	CreatedAt        time.Time    `json:"createdAt"`
}
