package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"school_portal_echo/internal/models"
)

const (
	ManualChannel         = "manual"
	KeyEntrySource        = "entrySource"
	manualReferencePrefix = "MANUAL-"
)

// ManualPaymentInput is an accountant-recorded payment (cash, transfer, POS)
type ManualPaymentInput struct {
	Reference   string                 `json:"reference" validate:"omitempty,max=191"`
	Amount      float64                `json:"amount" validate:"required,gt=0"`
	Email       string                 `json:"email" validate:"omitempty,email"`
	PaymentDate *time.Time             `json:"paymentDate"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// ManualResult is the outcome of a manual entry
type ManualResult struct {
	Payment       *models.PaymentInitialization `json:"payment"`
	Receipt       *models.Receipt               `json:"receipt"`
	LedgerEntryID string                        `json:"ledgerEntryId"`
	Duplicate     bool                          `json:"duplicate"`
}

// ManualRecorder settles payments entered by staff. No platform split is
// applied and the ledger entry is attributed to the human actor.
type ManualRecorder struct {
	store          Store
	publisher      Publisher
	validate       *validator.Validate
	currencySymbol string
	logger         *slog.Logger
	now            func() time.Time
}

func NewManualRecorder(store Store, publisher Publisher, currencySymbol string, logger *slog.Logger) *ManualRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	if currencySymbol == "" {
		currencySymbol = "₦"
	}
	return &ManualRecorder{
		store:          store,
		publisher:      publisher,
		validate:       validator.New(),
		currencySymbol: currencySymbol,
		logger:         logger,
		now:            time.Now,
	}
}

// Record validates and settles one manual payment. Recording the same
// reference twice returns the first settlement with Duplicate set.
func (m *ManualRecorder) Record(ctx context.Context, in ManualPaymentInput, actor Actor) (*ManualResult, error) {
	if err := m.validate.Struct(in); err != nil {
		return nil, &ValidationError{Message: validationMessage(err)}
	}

	bag := flattenCustomFields(CloneBag(in.Metadata))
	c := Normalize(bag)
	if !c.HasStudent() {
		return nil, &ValidationError{Message: "Student is required"}
	}
	if firstString(bag, channelKeys...) == "" {
		c.Channel = ManualChannel
	}
	email := SanitizeEmail(in.Email)
	if email == "" {
		email = c.ParentEmail
	}

	ref := SanitizeString(in.Reference)
	if ref == "" {
		ref = manualReferencePrefix + strings.ToUpper(uuid.NewString())
	}

	existing, err := m.store.FindPaymentByReference(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", ref, err)
	}
	if existing != nil && existing.Status == models.PaymentStatusCompleted && LedgerPaymentID(existing.Metadata) != "" {
		receipt, err := m.store.FindReceiptByPaymentID(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("find receipt %s: %w", existing.ID, err)
		}
		return &ManualResult{Payment: existing, Receipt: receipt, LedgerEntryID: LedgerPaymentID(existing.Metadata), Duplicate: true}, nil
	}

	now := m.now()
	paidAt := now
	if in.PaymentDate != nil && !in.PaymentDate.IsZero() {
		paidAt = *in.PaymentDate
	}
	amount := decimal.NewFromFloat(in.Amount).Round(2)

	c.Apply(bag)
	StampPaid(bag, amount.InexactFloat64())
	bag[KeyVerifiedAt] = now.UTC().Format(time.RFC3339)
	bag[KeyEntrySource] = ManualChannel
	bag["recordedBy"] = actor.Name

	var payment *models.PaymentInitialization
	var ledgerID string
	var receipt *models.Receipt

	steps := []Step{
		{Name: "upsert payment", Policy: StepFatal, Run: func(ctx context.Context) error {
			payment, err = m.upsertPayment(ctx, existing, ref, amount, email, c, bag)
			return err
		}},
		{Name: "write ledger entry", Policy: StepFatal, Run: func(ctx context.Context) error {
			entry, err := m.store.CreateFeePaymentRecord(ctx, LedgerInput{
				StudentID:        c.StudentID,
				StudentName:      c.StudentName,
				ClassID:          c.ClassID,
				ClassName:        c.ClassName,
				FeeType:          HumanizeFeeType(c.PaymentType),
				Amount:           amount.InexactFloat64(),
				PaymentDate:      paidAt,
				PaymentMethod:    c.Channel,
				PaymentReference: ref,
				Term:             c.Term,
				Session:          c.Session,
				Source:           models.LedgerSourceManual,
			}, actor)
			if err != nil {
				return err
			}
			ledgerID = entry.ID
			return nil
		}},
		{Name: "stamp ledger guard", Policy: StepBestEffort, Run: func(ctx context.Context) error {
			guard := map[string]interface{}{}
			StampLedgerPaymentID(guard, ledgerID)
			updated, err := m.store.UpdatePaymentRecord(ctx, payment.ID, PaymentUpdate{Metadata: guard})
			if err != nil {
				return err
			}
			if updated != nil {
				payment = updated
			}
			return nil
		}},
		{Name: "record manual event", Policy: StepBestEffort, Run: func(ctx context.Context) error {
			return m.store.RecordGatewayEvent(ctx, &models.PaymentCallbackHistory{
				PaymentGateway: models.PaymentGatewayManual,
				Reference:      ref,
				GatewayStatus:  GatewayStatusSuccess,
				Verified:       true,
				Metadata: map[string]interface{}{
					"actorId":   actor.ID,
					"actorName": actor.Name,
					"actorRole": actor.Role,
					"amount":    amount.InexactFloat64(),
				},
			})
		}},
		{Name: "upsert receipt", Policy: StepFatal, Run: func(ctx context.Context) error {
			receipt, err = m.store.CreateOrUpdateReceipt(ctx, payment.ID, ReceiptFields{
				StudentName: c.StudentName,
				Amount:      amount.InexactFloat64(),
				Reference:   ref,
				IssuedBy:    actor.Name,
				Metadata: map[string]interface{}{
					KeyPaymentTypeCamel: c.PaymentType,
					KeyTerm:             c.Term,
					KeySession:          c.Session,
					KeyVerifiedAt:       bag[KeyVerifiedAt],
					"channel":           c.Channel,
				},
			})
			return err
		}},
		{Name: "publish notification", Policy: StepBestEffort, Run: func(ctx context.Context) error {
			if m.publisher == nil {
				return nil
			}
			return m.publisher.Publish(ctx, NewPaymentNotification(payment, c, amount, m.currencySymbol))
		}},
	}
	if err := RunSteps(ctx, m.logger, ref, steps); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "manual payment recorded", "reference", ref, "payment_id", payment.ID, "actor", actor.ID, "ledger_payment_id", ledgerID)
	return &ManualResult{Payment: payment, Receipt: receipt, LedgerEntryID: ledgerID}, nil
}

func (m *ManualRecorder) upsertPayment(ctx context.Context, existing *models.PaymentInitialization, ref string, amount decimal.Decimal, email string, c Canonical, bag map[string]interface{}) (*models.PaymentInitialization, error) {
	value := amount.InexactFloat64()
	if existing == nil {
		return m.store.RecordPaymentInitialization(ctx, PaymentInput{
			Reference:   ref,
			Amount:      value,
			StudentID:   c.StudentID,
			PaymentType: c.PaymentType,
			Email:       email,
			Status:      models.PaymentStatusCompleted,
			Metadata:    bag,
		})
	}

	status := models.PaymentStatusCompleted
	upd := PaymentUpdate{
		Amount:      &value,
		StudentID:   &c.StudentID,
		PaymentType: &c.PaymentType,
		Status:      &status,
		Metadata:    bag,
	}
	if email != "" {
		upd.Email = &email
	}
	updated, err := m.store.UpdatePaymentRecord(ctx, existing.ID, upd)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, existing.ID)
	}
	return updated, nil
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "Invalid payment details"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
