package payments

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_portal_echo/internal/models"
)

var bursar = Actor{ID: "user:42", Name: "Mrs Bursar", Role: string(models.RoleAccountant)}

func newTestManualRecorder(store Store, publisher Publisher) *ManualRecorder {
	m := NewManualRecorder(store, publisher, "₦", discardLogger())
	m.now = fixedClock()
	return m
}

func TestManualRecordSettlesWithoutSplit(t *testing.T) {
	store := newRecordingStore()
	publisher := &capturePublisher{}
	m := newTestManualRecorder(store, publisher)

	result, err := m.Record(context.Background(), ManualPaymentInput{
		Amount: 45000,
		Metadata: map[string]interface{}{
			"studentId":    "STU-77",
			"studentName":  "Tunde Bello",
			"guardianName": "Mr Bello",
			"feeType":      "bus_fare",
		},
	}, bursar)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Payment.Reference, "MANUAL-"))
	assert.Equal(t, models.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, ManualChannel, result.Payment.Metadata[KeyPaymentChannelCaml])
	assert.Equal(t, "STU-77", result.Payment.Metadata[KeyStudentID])
	assert.Equal(t, result.LedgerEntryID, LedgerPaymentID(result.Payment.Metadata))

	entries := store.LedgerEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, 45000.0, entries[0].Amount)
	assert.Equal(t, models.LedgerSourceManual, entries[0].Source)
	assert.Equal(t, "Bus Fare", entries[0].FeeType)
	assert.Equal(t, bursar.ID, entries[0].RecordedByID)

	assert.Equal(t, bursar.Name, result.Receipt.IssuedBy)
	assert.Equal(t, 45000.0, result.Receipt.Amount)
	assert.Empty(t, store.SplitAudits())

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "Payment received from Mr Bello", publisher.events[0].Title)
	assert.Equal(t, "Tunde Bello • ₦45,000.00 (bus_fare)", publisher.events[0].Body)

	events := store.GatewayEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.PaymentGatewayManual, events[0].PaymentGateway)
}

func TestManualRecordIsIdempotentPerReference(t *testing.T) {
	store := newRecordingStore()
	m := newTestManualRecorder(store, nil)
	in := ManualPaymentInput{
		Reference: "TELLER-001",
		Amount:    1000,
		Metadata:  map[string]interface{}{"student_id": "STU-1"},
	}

	first, err := m.Record(context.Background(), in, bursar)
	require.NoError(t, err)
	second, err := m.Record(context.Background(), in, bursar)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Equal(t, first.Receipt.ReceiptNumber, second.Receipt.ReceiptNumber)
	assert.Equal(t, 1, store.PaymentCount())
	assert.Len(t, store.LedgerEntries(), 1)
}

func TestManualRecordValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      ManualPaymentInput
		message string
	}{
		{name: "missing amount", in: ManualPaymentInput{Metadata: map[string]interface{}{"student_id": "S"}}, message: "Amount is required"},
		{name: "negative amount", in: ManualPaymentInput{Amount: -5, Metadata: map[string]interface{}{"student_id": "S"}}, message: "Amount must be greater than 0"},
		{name: "bad email", in: ManualPaymentInput{Amount: 5, Email: "nope", Metadata: map[string]interface{}{"student_id": "S"}}, message: "Email must be a valid email address"},
		{name: "no student", in: ManualPaymentInput{Amount: 5}, message: "Student is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore()
			m := newTestManualRecorder(store, nil)

			_, err := m.Record(context.Background(), tt.in, bursar)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.message, ve.Message)
			assert.Equal(t, 0, store.PaymentCount())
		})
	}
}

func TestManualRecordLedgerFailureIsFatal(t *testing.T) {
	store := newRecordingStore()
	store.CreateFeePaymentRecordFunc = func(ctx context.Context, in LedgerInput, actor Actor) (*models.FeeLedgerEntry, error) {
		return nil, errors.New("ledger unavailable")
	}
	m := newTestManualRecorder(store, nil)

	_, err := m.Record(context.Background(), ManualPaymentInput{
		Reference: "TELLER-9",
		Amount:    100,
		Metadata:  map[string]interface{}{"student_id": "STU-1"},
	}, bursar)

	require.Error(t, err)
	assert.False(t, IsClientError(err))

	// a retry with the same reference completes the ledger
	store.CreateFeePaymentRecordFunc = nil
	result, err := m.Record(context.Background(), ManualPaymentInput{
		Reference: "TELLER-9",
		Amount:    100,
		Metadata:  map[string]interface{}{"student_id": "STU-1"},
	}, bursar)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 1, store.PaymentCount())
	assert.Len(t, store.LedgerEntries(), 1)
}
