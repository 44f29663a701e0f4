package models

import "time"

// DeveloperSplitAuditEntry records how a gross payment was divided between the
// platform and the school. Internal only.
type DeveloperSplitAuditEntry struct {
	ID                   uint      `gorm:"primarykey" json:"id"`
	Reference            string    `gorm:"type:varchar(191);index" json:"reference"`
	GrossAmountKobo      int64     `json:"grossAmountKobo"`
	DeveloperShareKobo   int64     `json:"developerShareKobo"`
	SchoolNetAmountKobo  int64     `json:"schoolNetAmountKobo"`
	PlatformSharePercent float64   `gorm:"type:decimal(7,4)" json:"platformSharePercent"`
	SplitCode            string    `gorm:"type:varchar(100)" json:"splitCode"`
	SubaccountCode       string    `gorm:"type:varchar(100)" json:"subaccountCode"`
	RecordedAt           time.Time `json:"recordedAt"`
}
