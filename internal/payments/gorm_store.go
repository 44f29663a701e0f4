package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"school_portal_echo/internal/models"
)

// GormStore implements Store on a relational database
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) FindPaymentByReference(ctx context.Context, reference string) (*models.PaymentInitialization, error) {
	ref := normalizeReference(reference)
	if ref == "" {
		return nil, nil
	}

	var p models.PaymentInitialization
	err := s.db.WithContext(ctx).
		Where("LOWER(reference) = ? OR LOWER(paystack_reference) = ?", ref, ref).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN LOWER(reference) = ? THEN 0 ELSE 1 END, created_at ASC",
			Vars:               []interface{}{ref},
			WithoutParentheses: true,
		}}).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find payment by reference: %w", err)
	}
	return &p, nil
}

func (s *GormStore) FindPaymentByID(ctx context.Context, id string) (*models.PaymentInitialization, error) {
	var p models.PaymentInitialization
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find payment by id: %w", err)
	}
	return &p, nil
}

func (s *GormStore) RecordPaymentInitialization(ctx context.Context, in PaymentInput) (*models.PaymentInitialization, error) {
	p := newPaymentRecord(in, s.now())
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("record payment initialization: %w", err)
	}
	return &p, nil
}

func (s *GormStore) UpdatePaymentRecord(ctx context.Context, id string, upd PaymentUpdate) (*models.PaymentInitialization, error) {
	var updated *models.PaymentInitialization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.PaymentInitialization
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		applyPaymentUpdate(&p, upd)
		p.UpdatedAt = s.now()
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		updated = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update payment record: %w", err)
	}
	return updated, nil
}

func (s *GormStore) ListCompletedPayments(ctx context.Context, offset, limit int) ([]models.PaymentInitialization, error) {
	var payments []models.PaymentInitialization
	err := s.db.WithContext(ctx).
		Where("status = ?", models.PaymentStatusCompleted).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("list completed payments: %w", err)
	}
	return payments, nil
}

func (s *GormStore) CreateOrUpdateReceipt(ctx context.Context, paymentID string, fields ReceiptFields) (*models.Receipt, error) {
	now := s.now()
	r := models.Receipt{
		ID:            uuid.NewString(),
		PaymentID:     paymentID,
		ReceiptNumber: NewReceiptNumber(now),
		StudentName:   fields.StudentName,
		Amount:        fields.Amount,
		Reference:     fields.Reference,
		IssuedBy:      fields.IssuedBy,
		DateIssued:    now,
		Metadata:      CloneBag(fields.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	db := s.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}},
		DoNothing: true,
	}).Create(&r)
	if res.Error != nil {
		return nil, fmt.Errorf("create receipt: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return &r, nil
	}

	// receipt already issued: keep id and number, refresh the rest
	var existing models.Receipt
	if err := db.First(&existing, "payment_id = ?", paymentID).Error; err != nil {
		return nil, fmt.Errorf("load receipt: %w", err)
	}
	existing.StudentName = fields.StudentName
	existing.Amount = fields.Amount
	existing.Reference = fields.Reference
	existing.Metadata = mergeMetadata(existing.Metadata, fields.Metadata)
	existing.UpdatedAt = now
	if err := db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update receipt: %w", err)
	}
	return &existing, nil
}

func (s *GormStore) FindReceiptByPaymentID(ctx context.Context, paymentID string) (*models.Receipt, error) {
	var r models.Receipt
	if err := s.db.WithContext(ctx).First(&r, "payment_id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find receipt: %w", err)
	}
	return &r, nil
}

func (s *GormStore) CreateFeePaymentRecord(ctx context.Context, in LedgerInput, actor Actor) (*models.FeeLedgerEntry, error) {
	e := newLedgerEntry(in, actor, s.now())
	if e.PaymentReference == "" {
		return nil, errors.New("ledger entry requires a payment reference")
	}

	db := s.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "payment_reference"}},
		DoNothing: true,
	}).Create(&e)
	if res.Error != nil {
		return nil, fmt.Errorf("create fee ledger entry: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return &e, nil
	}

	var existing models.FeeLedgerEntry
	if err := db.First(&existing, "source = ? AND payment_reference = ?", e.Source, e.PaymentReference).Error; err != nil {
		return nil, fmt.Errorf("load fee ledger entry: %w", err)
	}
	return &existing, nil
}

func (s *GormStore) RecordDeveloperSplit(ctx context.Context, entry *models.DeveloperSplitAuditEntry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = s.now()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *GormStore) RecordGatewayEvent(ctx context.Context, event *models.PaymentCallbackHistory) error {
	return s.db.WithContext(ctx).Create(event).Error
}
