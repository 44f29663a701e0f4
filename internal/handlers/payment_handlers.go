package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"school_portal_echo/internal/models"
	"school_portal_echo/internal/payments"
)

// PaymentVerifier is the settlement pipeline behind the verify endpoint
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (*payments.VerificationResult, error)
}

// ManualEntry records staff-entered payments
type ManualEntry interface {
	Record(ctx context.Context, in payments.ManualPaymentInput, actor payments.Actor) (*payments.ManualResult, error)
}

type PaymentHandler struct {
	verifier             PaymentVerifier
	manual               ManualEntry
	store                payments.Store
	platformSharePercent decimal.Decimal
	logger               *slog.Logger
}

func NewPaymentHandler(verifier PaymentVerifier, manual ManualEntry, store payments.Store, platformSharePercent decimal.Decimal, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{
		verifier:             verifier,
		manual:               manual,
		store:                store,
		platformSharePercent: platformSharePercent,
		logger:               logger,
	}
}

// VerifyPayment confirms a reference with the gateway and settles it.
// GET /api/payments/verify?reference=
func (h *PaymentHandler) VerifyPayment(c echo.Context) error {
	result, err := h.verifier.Verify(c.Request().Context(), c.QueryParam("reference"))
	if err != nil {
		if msg, ok := clientMessage(err); ok {
			return fail(c, http.StatusBadRequest, msg)
		}
		return err
	}
	return respond(c, http.StatusOK, "Payment verified successfully", result)
}

// RecordManualPayment settles a cash, transfer or POS payment entered by staff.
// POST /api/payments/manual
func (h *PaymentHandler) RecordManualPayment(c echo.Context) error {
	var in payments.ManualPaymentInput
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}

	result, err := h.manual.Record(c.Request().Context(), in, actorFromContext(c))
	if err != nil {
		if msg, ok := clientMessage(err); ok {
			return fail(c, http.StatusBadRequest, msg)
		}
		return err
	}

	if result.Duplicate {
		return respond(c, http.StatusOK, "Payment was already recorded", result)
	}
	return respond(c, http.StatusCreated, "Payment recorded successfully", result)
}

// GetPayment returns a payment and its receipt.
// GET /api/payments/:reference
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	ctx := c.Request().Context()
	ref := payments.SanitizeString(c.Param("reference"))
	if ref == "" {
		return fail(c, http.StatusBadRequest, payments.ErrReferenceRequired.Message)
	}

	payment, err := h.store.FindPaymentByReference(ctx, ref)
	if err != nil {
		return err
	}
	if payment == nil {
		return fail(c, http.StatusNotFound, "Payment not found")
	}

	receipt, err := h.store.FindReceiptByPaymentID(ctx, payment.ID)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Payment found", map[string]interface{}{
		"payment": payment,
		"receipt": receipt,
	})
}

// GetReceipt returns the receipt issued for a payment.
// GET /api/receipts/:paymentId
func (h *PaymentHandler) GetReceipt(c echo.Context) error {
	receipt, err := h.store.FindReceiptByPaymentID(c.Request().Context(), c.Param("paymentId"))
	if err != nil {
		return err
	}
	if receipt == nil {
		return fail(c, http.StatusNotFound, "Receipt not found")
	}
	return respond(c, http.StatusOK, "Receipt found", receipt)
}

// BackfillLedger repairs completed payments that have no ledger entry.
// POST /api/payments/ledger/backfill?limit=
func (h *PaymentHandler) BackfillLedger(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fail(c, http.StatusBadRequest, "Limit must be a non-negative integer")
		}
		limit = n
	}

	ctx := c.Request().Context()
	result, err := payments.BackfillLedger(ctx, h.store, h.platformSharePercent, limit, h.logger)
	if err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "ledger backfill requested", "actor", actorFromContext(c).ID, "written", result.Written)
	return respond(c, http.StatusOK, "Ledger backfill finished", result)
}

func clientMessage(err error) (string, bool) {
	var ve *payments.ValidationError
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	var ge *payments.GatewayRejectedError
	if errors.As(err, &ge) {
		return ge.Message, true
	}
	return "", false
}

// staffRoles may record payments and read settlement data
var staffRoles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleAccountant}

// StaffRoles returns the roles allowed on settlement endpoints
func StaffRoles() []models.UserRole {
	return append([]models.UserRole(nil), staffRoles...)
}
