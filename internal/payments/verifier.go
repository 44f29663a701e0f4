package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"school_portal_echo/internal/models"
)

const reconcileLockTTL = 30 * time.Second

// Locker serializes work on one reference across processes
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// VerifierConfig is the settlement configuration resolved at startup
type VerifierConfig struct {
	PlatformSharePercent decimal.Decimal
	SplitCode            string
	SubaccountCode       string
	CurrencySymbol       string
}

// VerificationResult is what a successful verification returns to the payer
type VerificationResult struct {
	Reference string                        `json:"reference"`
	Amount    float64                       `json:"amount"`
	Customer  GatewayCustomer               `json:"customer"`
	Metadata  map[string]interface{}        `json:"metadata"`
	PaidAt    string                        `json:"paid_at"`
	Payment   *models.PaymentInitialization `json:"payment"`
	Receipt   *models.Receipt               `json:"receipt"`

	Split         RevenueSplit `json:"-"`
	LedgerEntryID string       `json:"-"`
}

// Verifier confirms a gateway reference and settles it into the payment
// record, fee ledger and receipt.
type Verifier struct {
	gateway   Gateway
	store     Store
	publisher Publisher
	locker    Locker
	cfg       VerifierConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewVerifier wires the pipeline. publisher and locker may be nil.
func NewVerifier(gateway Gateway, store Store, publisher Publisher, locker Locker, cfg VerifierConfig, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = "₦"
	}
	return &Verifier{
		gateway:   gateway,
		store:     store,
		publisher: publisher,
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// settlement carries state between the reconciliation steps
type settlement struct {
	reference    string
	canonicalRef string
	tx           GatewayTransaction
	split        RevenueSplit
	verifiedAt   time.Time

	bag       map[string]interface{}
	canonical Canonical
	email     string

	existing *models.PaymentInitialization
	ledgerID string
	payment  *models.PaymentInitialization
	receipt  *models.Receipt
}

// Verify asks the gateway about reference and, when it succeeded, reconciles
// it. Errors are ErrReferenceRequired, *GatewayRejectedError or unexpected.
func (v *Verifier) Verify(ctx context.Context, reference string) (*VerificationResult, error) {
	ref := SanitizeString(reference)
	if ref == "" {
		return nil, ErrReferenceRequired
	}

	resp, err := v.gateway.VerifyTransaction(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("verify transaction %s: %w", ref, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("verify transaction %s: empty gateway response", ref)
	}
	v.recordGatewayEvent(ctx, ref, resp)

	if !resp.Succeeded() {
		v.markFailed(ctx, ref)
		message := resp.Message
		if message == "" {
			message = "Payment verification failed"
		}
		return nil, &GatewayRejectedError{Reference: ref, GatewayStatus: resp.Data.Status, Message: message}
	}

	s := v.prepare(ref, resp.Data)

	if v.locker != nil {
		unlock, err := v.locker.Lock(ctx, "payments:reconcile:"+normalizeReference(s.canonicalRef), reconcileLockTTL)
		if err != nil {
			v.logger.WarnContext(ctx, "reconcile lock unavailable", "reference", s.canonicalRef, "err", err)
		} else {
			defer unlock()
		}
	}

	steps := []Step{
		{Name: "find payment", Policy: StepFatal, Run: s.find(v)},
		{Name: "write ledger entry", Policy: StepBestEffort, Run: s.writeLedger(v)},
		{Name: "record split audit", Policy: StepBestEffort, Run: s.recordSplit(v)},
		{Name: "upsert payment", Policy: StepFatal, Run: s.upsertPayment(v)},
		{Name: "upsert receipt", Policy: StepFatal, Run: s.upsertReceipt(v)},
		{Name: "publish notification", Policy: StepBestEffort, Run: s.notify(v)},
	}
	if err := RunSteps(ctx, v.logger, s.canonicalRef, steps); err != nil {
		return nil, err
	}

	v.logger.InfoContext(ctx, "payment verified",
		"reference", s.canonicalRef,
		"payment_id", s.payment.ID,
		"gross_kobo", s.split.GrossKobo,
		"school_net_kobo", s.split.SchoolNetKobo,
		"ledger_payment_id", s.ledgerID,
	)

	return &VerificationResult{
		Reference:     s.canonicalRef,
		Amount:        s.split.GrossMajor().InexactFloat64(),
		Customer:      s.tx.Customer,
		Metadata:      CloneBag(s.payment.Metadata),
		PaidAt:        s.tx.PaidAt,
		Payment:       s.payment,
		Receipt:       s.receipt,
		Split:         s.split,
		LedgerEntryID: s.ledgerID,
	}, nil
}

// prepare derives amounts, reference and canonical metadata from the gateway answer
func (v *Verifier) prepare(ref string, tx GatewayTransaction) *settlement {
	now := v.now()
	s := &settlement{
		reference:    ref,
		canonicalRef: SanitizeString(tx.Reference),
		tx:           tx,
		split:        CalculateSplit(tx.Amount, v.cfg.PlatformSharePercent),
		verifiedAt:   now,
		email:        SanitizeEmail(tx.Customer.Email),
	}
	if s.canonicalRef == "" {
		s.canonicalRef = ref
	}

	bag := flattenCustomFields(DecodeMetadata(tx.Metadata))
	c := Normalize(bag)
	if firstString(bag, channelKeys...) == "" {
		if channel := SanitizeString(tx.Channel); channel != "" {
			c.Channel = channel
		}
	}
	if c.ParentEmail == "" {
		c.ParentEmail = s.email
	}
	c.Apply(bag)

	stamp := now.UTC().Format(time.RFC3339)
	bag[KeyAccessGranted] = true
	bag[KeyAccessGrantedAt] = stamp
	bag[KeyVerifiedAt] = stamp
	bag[KeyLastPaystackReference] = s.canonicalRef
	StampPaid(bag, s.split.GrossMajor().InexactFloat64())

	s.bag = bag
	s.canonical = c
	return s
}

func (s *settlement) find(v *Verifier) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		existing, err := v.store.FindPaymentByReference(ctx, s.canonicalRef)
		if err != nil {
			return err
		}
		if existing == nil && normalizeReference(s.reference) != normalizeReference(s.canonicalRef) {
			existing, err = v.store.FindPaymentByReference(ctx, s.reference)
			if err != nil {
				return err
			}
		}
		if existing == nil {
			return nil
		}

		s.existing = existing
		s.ledgerID = LedgerPaymentID(existing.Metadata)

		stored := Normalize(existing.Metadata)
		if stored.StudentID == "" && existing.StudentID != nil {
			stored.StudentID = *existing.StudentID
		}
		s.canonical = s.canonical.Merge(stored)
		s.canonical.Apply(s.bag)
		return nil
	}
}

func (s *settlement) writeLedger(v *Verifier) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if s.ledgerID != "" {
			StampLedgerPaymentID(s.bag, s.ledgerID)
			return nil
		}

		c := s.canonical
		entry, err := v.store.CreateFeePaymentRecord(ctx, LedgerInput{
			StudentID:        c.StudentID,
			StudentName:      c.StudentName,
			ClassID:          c.ClassID,
			ClassName:        c.ClassName,
			FeeType:          HumanizeFeeType(c.PaymentType),
			Amount:           s.split.SchoolNetMajor().InexactFloat64(),
			PaymentDate:      s.paidAt(),
			PaymentMethod:    c.Channel,
			PaymentReference: s.canonicalRef,
			Term:             c.Term,
			Session:          c.Session,
			Source:           models.LedgerSourcePaystack,
		}, SettlementActor)
		if err != nil {
			return err
		}

		s.ledgerID = entry.ID
		StampLedgerPaymentID(s.bag, entry.ID)
		return nil
	}
}

func (s *settlement) recordSplit(v *Verifier) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return v.store.RecordDeveloperSplit(ctx, &models.DeveloperSplitAuditEntry{
			Reference:            s.canonicalRef,
			GrossAmountKobo:      s.split.GrossKobo,
			DeveloperShareKobo:   s.split.DeveloperShareKobo,
			SchoolNetAmountKobo:  s.split.SchoolNetKobo,
			PlatformSharePercent: v.cfg.PlatformSharePercent.InexactFloat64(),
			SplitCode:            v.cfg.SplitCode,
			SubaccountCode:       v.cfg.SubaccountCode,
			RecordedAt:           s.verifiedAt,
		})
	}
}

func (s *settlement) upsertPayment(v *Verifier) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		amount := s.split.GrossMajor().InexactFloat64()
		c := s.canonical

		if s.existing == nil {
			created, err := v.store.RecordPaymentInitialization(ctx, PaymentInput{
				Reference:         s.reference,
				PaystackReference: s.canonicalRef,
				Amount:            amount,
				StudentID:         c.StudentID,
				PaymentType:       c.PaymentType,
				Email:             s.email,
				Status:            models.PaymentStatusCompleted,
				Metadata:          s.bag,
			})
			if err != nil {
				return err
			}
			s.payment = created
			return nil
		}

		status := models.PaymentStatusCompleted
		upd := PaymentUpdate{
			PaystackReference: &s.canonicalRef,
			Amount:            &amount,
			PaymentType:       &c.PaymentType,
			Status:            &status,
			Metadata:          s.bag,
		}
		if c.StudentID != "" {
			upd.StudentID = &c.StudentID
		}
		if s.email != "" {
			upd.Email = &s.email
		}

		updated, err := v.store.UpdatePaymentRecord(ctx, s.existing.ID, upd)
		if err != nil {
			return err
		}
		if updated == nil {
			return fmt.Errorf("%w: %s", ErrPaymentNotFound, s.existing.ID)
		}
		s.payment = updated
		return nil
	}
}

func (s *settlement) upsertReceipt(v *Verifier) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		// stored metadata may be richer than the gateway payload
		final := Normalize(s.payment.Metadata)
		if final.StudentID == "" && s.payment.StudentID != nil {
			final.StudentID = *s.payment.StudentID
		}
		if final.ParentEmail == "" {
			final.ParentEmail = SanitizeEmail(s.payment.Email)
		}
		s.canonical = final

		receipt, err := v.store.CreateOrUpdateReceipt(ctx, s.payment.ID, ReceiptFields{
			StudentName: final.StudentName,
			Amount:      s.split.GrossMajor().InexactFloat64(),
			Reference:   s.canonicalRef,
			IssuedBy:    SettlementActor.Name,
			Metadata: map[string]interface{}{
				KeyPaymentTypeCamel: final.PaymentType,
				KeyTerm:             final.Term,
				KeySession:          final.Session,
				KeyVerifiedAt:       s.bag[KeyVerifiedAt],
				"channel":           final.Channel,
			},
		})
		if err != nil {
			return err
		}
		s.receipt = receipt
		return nil
	}
}

func (s *settlement) notify(v *Verifier) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if v.publisher == nil {
			return nil
		}
		event := NewPaymentNotification(s.payment, s.canonical, s.split.GrossMajor(), v.cfg.CurrencySymbol)
		return v.publisher.Publish(ctx, event)
	}
}

func (s *settlement) paidAt() time.Time {
	if s.tx.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, s.tx.PaidAt); err == nil {
			return t
		}
	}
	return s.verifiedAt
}

// markFailed stamps an existing payment as failed. Errors are only logged.
func (v *Verifier) markFailed(ctx context.Context, ref string) {
	existing, err := v.store.FindPaymentByReference(ctx, ref)
	if err != nil {
		v.logger.WarnContext(ctx, "failed to look up payment after gateway rejection", "reference", ref, "err", err)
		return
	}
	if existing == nil {
		return
	}

	status := models.PaymentStatusFailed
	_, err = v.store.UpdatePaymentRecord(ctx, existing.ID, PaymentUpdate{
		Status: &status,
		Metadata: map[string]interface{}{
			KeyLastVerificationAttempt: v.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		v.logger.WarnContext(ctx, "failed to mark payment failed", "reference", ref, "payment_id", existing.ID, "err", err)
	}
}

func (v *Verifier) recordGatewayEvent(ctx context.Context, ref string, resp *GatewayVerification) {
	if resp == nil {
		return
	}
	event := &models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayPaystack,
		Reference:      ref,
		GatewayStatus:  resp.Data.Status,
		Verified:       resp.Succeeded(),
		Metadata:       gatewayEventPayload(resp),
	}
	if err := v.store.RecordGatewayEvent(ctx, event); err != nil {
		v.logger.WarnContext(ctx, "failed to record gateway event", "reference", ref, "err", err)
	}
}

func gatewayEventPayload(resp *GatewayVerification) map[string]interface{} {
	payload := map[string]interface{}{}
	data, err := json.Marshal(resp)
	if err != nil {
		return payload
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return map[string]interface{}{}
	}
	return payload
}

// HumanizeFeeType turns a payment type like "school_fees" into "School Fees"
func HumanizeFeeType(paymentType string) string {
	t := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(paymentType))
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		t = DefaultPaymentType
	}
	return cases.Title(language.English).String(t)
}

// IsClientError reports whether err should be answered with 400
func IsClientError(err error) bool {
	var ve *ValidationError
	var ge *GatewayRejectedError
	return errors.As(err, &ve) || errors.As(err, &ge)
}
