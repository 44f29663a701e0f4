package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"school_portal_echo/internal/models"
)

const defaultBackfillBatch = 100

// BackfillActor attributes ledger entries recreated from payment records
var BackfillActor = Actor{ID: "system:ledger-backfill", Name: "Ledger backfill", Role: "system"}

// BackfillResult summarizes one backfill run
type BackfillResult struct {
	Scanned int      `json:"scanned"`
	Written int      `json:"written"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// BackfillLedger writes the missing ledger entries of completed payments that
// never got a ledger guard, and stamps the guard. At most limit payments are
// repaired when limit is positive.
func BackfillLedger(ctx context.Context, store Store, platformSharePercent decimal.Decimal, limit int, logger *slog.Logger) (*BackfillResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	result := &BackfillResult{}

	for offset := 0; ; offset += defaultBackfillBatch {
		batch, err := store.ListCompletedPayments(ctx, offset, defaultBackfillBatch)
		if err != nil {
			return result, fmt.Errorf("list completed payments: %w", err)
		}

		for i := range batch {
			if limit > 0 && result.Written >= limit {
				return result, nil
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}

			p := &batch[i]
			result.Scanned++
			if LedgerPaymentID(p.Metadata) != "" {
				result.Skipped++
				continue
			}

			if err := backfillPayment(ctx, store, p, platformSharePercent); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", p.Reference, err))
				logger.WarnContext(ctx, "ledger backfill failed", "reference", p.Reference, "payment_id", p.ID, "err", err)
				continue
			}
			result.Written++
		}

		if len(batch) < defaultBackfillBatch {
			break
		}
	}

	logger.InfoContext(ctx, "ledger backfill finished", "scanned", result.Scanned, "written", result.Written, "failed", result.Failed)
	return result, nil
}

func backfillPayment(ctx context.Context, store Store, p *models.PaymentInitialization, platformSharePercent decimal.Decimal) error {
	// legacy bags may carry only one casing; repair them along with the guard
	bag := CloneBag(p.Metadata)
	MirrorCasing(bag)

	c := Normalize(bag)
	if c.StudentID == "" && p.StudentID != nil {
		c.StudentID = *p.StudentID
	}

	reference := p.Reference
	if p.PaystackReference != nil && *p.PaystackReference != "" {
		reference = *p.PaystackReference
	}

	// manual entries carry no platform split and keep their own ledger source
	source := models.LedgerSourcePaystack
	amount := CalculateSplit(MajorToKobo(p.Amount), platformSharePercent).SchoolNetMajor()
	if stringValue(bag[KeyEntrySource]) == ManualChannel {
		source = models.LedgerSourceManual
		amount = decimal.NewFromFloat(p.Amount).Round(2)
	}

	paymentDate := p.UpdatedAt
	if verified, err := time.Parse(time.RFC3339, stringValue(bag[KeyVerifiedAt])); err == nil {
		paymentDate = verified
	}

	entry, err := store.CreateFeePaymentRecord(ctx, LedgerInput{
		StudentID:        c.StudentID,
		StudentName:      c.StudentName,
		ClassID:          c.ClassID,
		ClassName:        c.ClassName,
		FeeType:          HumanizeFeeType(c.PaymentType),
		Amount:           amount.InexactFloat64(),
		PaymentDate:      paymentDate,
		PaymentMethod:    c.Channel,
		PaymentReference: reference,
		Term:             c.Term,
		Session:          c.Session,
		Source:           source,
	}, BackfillActor)
	if err != nil {
		return err
	}

	StampLedgerPaymentID(bag, entry.ID)
	if _, err := store.UpdatePaymentRecord(ctx, p.ID, PaymentUpdate{Metadata: bag}); err != nil {
		return fmt.Errorf("stamp ledger guard: %w", err)
	}
	return nil
}
