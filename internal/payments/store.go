package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"school_portal_echo/internal/models"
)

// PaymentInput is used to create a PaymentInitialization
type PaymentInput struct {
	Reference         string
	PaystackReference string
	Amount            float64
	StudentID         string
	PaymentType       string
	Email             string
	Status            models.PaymentStatus
	Metadata          map[string]interface{}
}

// PaymentUpdate carries the fields to change. Nil pointers are left alone and
// Metadata is shallow-merged into the stored bag, new keys winning.
type PaymentUpdate struct {
	PaystackReference *string
	Amount            *float64
	StudentID         *string
	PaymentType       *string
	Email             *string
	Status            *models.PaymentStatus
	Metadata          map[string]interface{}
}

// ReceiptFields are the mutable receipt fields
type ReceiptFields struct {
	StudentName string
	Amount      float64
	Reference   string
	IssuedBy    string
	Metadata    map[string]interface{}
}

// LedgerInput describes one settled payment for the fee ledger
type LedgerInput struct {
	StudentID        string
	StudentName      string
	ClassID          string
	ClassName        string
	FeeType          string
	Amount           float64
	PaymentDate      time.Time
	PaymentMethod    string
	PaymentReference string
	Term             string
	Session          string
	Source           models.LedgerSource
}

// Actor identifies who recorded a ledger entry
type Actor struct {
	ID   string
	Name string
	Role string
}

// SettlementActor is the identity used for ledger writes made by the verification pipeline
var SettlementActor = Actor{ID: "system:settlement", Name: "Automated settlement", Role: "system"}

// PaymentStore persists payment initializations. At most one record is
// authoritative per reference; lookups match reference or paystackReference.
type PaymentStore interface {
	// FindPaymentByReference returns nil, nil when nothing matches
	FindPaymentByReference(ctx context.Context, reference string) (*models.PaymentInitialization, error)
	FindPaymentByID(ctx context.Context, id string) (*models.PaymentInitialization, error)
	RecordPaymentInitialization(ctx context.Context, in PaymentInput) (*models.PaymentInitialization, error)
	// UpdatePaymentRecord returns nil, nil when id is unknown
	UpdatePaymentRecord(ctx context.Context, id string, upd PaymentUpdate) (*models.PaymentInitialization, error)
	ListCompletedPayments(ctx context.Context, offset, limit int) ([]models.PaymentInitialization, error)
}

// ReceiptStore keeps one receipt per payment
type ReceiptStore interface {
	CreateOrUpdateReceipt(ctx context.Context, paymentID string, fields ReceiptFields) (*models.Receipt, error)
	FindReceiptByPaymentID(ctx context.Context, paymentID string) (*models.Receipt, error)
}

// LedgerStore appends fee ledger entries. An entry with the same source and
// payment reference is returned instead of inserting a duplicate.
type LedgerStore interface {
	CreateFeePaymentRecord(ctx context.Context, in LedgerInput, actor Actor) (*models.FeeLedgerEntry, error)
}

// AuditStore records internal observability rows
type AuditStore interface {
	RecordDeveloperSplit(ctx context.Context, entry *models.DeveloperSplitAuditEntry) error
	RecordGatewayEvent(ctx context.Context, event *models.PaymentCallbackHistory) error
}

// Store is the full persistence dependency of the pipeline
type Store interface {
	PaymentStore
	ReceiptStore
	LedgerStore
	AuditStore
}

// NewReceiptNumber generates a receipt number like RCT-20261019-1A2B3C4D
func NewReceiptNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("RCT-%s-%s", now.Format("20060102"), strings.ToUpper(id[:8]))
}

func normalizeReference(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}

func mergeMetadata(dst map[string]interface{}, src map[string]interface{}) map[string]interface{} {
	out := CloneBag(dst)
	for k, v := range src {
		out[k] = v
	}
	return out
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func applyPaymentUpdate(p *models.PaymentInitialization, upd PaymentUpdate) {
	if upd.PaystackReference != nil {
		p.PaystackReference = stringPtr(*upd.PaystackReference)
	}
	if upd.Amount != nil {
		p.Amount = *upd.Amount
	}
	if upd.StudentID != nil {
		p.StudentID = stringPtr(*upd.StudentID)
	}
	if upd.PaymentType != nil {
		p.PaymentType = *upd.PaymentType
	}
	if upd.Email != nil {
		p.Email = *upd.Email
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.Metadata != nil {
		p.Metadata = mergeMetadata(p.Metadata, upd.Metadata)
	}
}

func newPaymentRecord(in PaymentInput, now time.Time) models.PaymentInitialization {
	status := in.Status
	if status == "" {
		status = models.PaymentStatusPending
	}
	paymentType := in.PaymentType
	if paymentType == "" {
		paymentType = DefaultPaymentType
	}
	return models.PaymentInitialization{
		ID:                uuid.NewString(),
		Reference:         strings.TrimSpace(in.Reference),
		PaystackReference: stringPtr(strings.TrimSpace(in.PaystackReference)),
		Amount:            in.Amount,
		StudentID:         stringPtr(in.StudentID),
		PaymentType:       paymentType,
		Email:             in.Email,
		Status:            status,
		Metadata:          CloneBag(in.Metadata),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func newLedgerEntry(in LedgerInput, actor Actor, now time.Time) models.FeeLedgerEntry {
	source := in.Source
	if source == "" {
		source = models.LedgerSourcePaystack
	}
	return models.FeeLedgerEntry{
		ID:               uuid.NewString(),
		StudentID:        stringPtr(in.StudentID),
		StudentName:      in.StudentName,
		ClassID:          stringPtr(in.ClassID),
		ClassName:        stringPtr(in.ClassName),
		FeeType:          in.FeeType,
		Amount:           in.Amount,
		PaymentDate:      in.PaymentDate,
		PaymentMethod:    in.PaymentMethod,
		PaymentReference: strings.TrimSpace(in.PaymentReference),
		Source:           source,
		Term:             in.Term,
		Session:          in.Session,
		RecordedByID:     actor.ID,
		RecordedByName:   actor.Name,
		CreatedAt:        now,
	}
}
