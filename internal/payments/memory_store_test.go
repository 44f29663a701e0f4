package payments

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_portal_echo/internal/models"
)

func TestMemoryStoreFindByEitherReference(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.RecordPaymentInitialization(ctx, PaymentInput{Reference: "INIT-1", PaystackReference: "T12345", Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, created.Status)
	assert.Equal(t, DefaultPaymentType, created.PaymentType)

	for _, ref := range []string{"INIT-1", " init-1 ", "t12345"} {
		found, err := s.FindPaymentByReference(ctx, ref)
		require.NoError(t, err)
		require.NotNil(t, found, ref)
		assert.Equal(t, created.ID, found.ID)
	}

	missing, err := s.FindPaymentByReference(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStorePrefersReferenceMatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	_, err := s.RecordPaymentInitialization(ctx, PaymentInput{Reference: "OTHER", PaystackReference: "SHARED"})
	require.NoError(t, err)
	s.now = func() time.Time { return base.Add(time.Hour) }
	direct, err := s.RecordPaymentInitialization(ctx, PaymentInput{Reference: "SHARED"})
	require.NoError(t, err)

	found, err := s.FindPaymentByReference(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, direct.ID, found.ID)
}

func TestMemoryStoreUpdateMergesMetadata(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, err := s.RecordPaymentInitialization(ctx, PaymentInput{
		Reference: "R",
		Metadata:  map[string]interface{}{"a": "1", "b": "2"},
	})
	require.NoError(t, err)

	status := models.PaymentStatusCompleted
	updated, err := s.UpdatePaymentRecord(ctx, created.ID, PaymentUpdate{
		Status:   &status,
		Metadata: map[string]interface{}{"b": "3", "c": "4"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, updated.Status)
	assert.Equal(t, map[string]interface{}{"a": "1", "b": "3", "c": "4"}, map[string]interface{}(updated.Metadata))

	// callers get copies
	updated.Metadata["a"] = "mutated"
	again, err := s.FindPaymentByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", again.Metadata["a"])

	unknown, err := s.UpdatePaymentRecord(ctx, "missing", PaymentUpdate{Status: &status})
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestMemoryStoreReceiptNumberIsStable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.CreateOrUpdateReceipt(ctx, "pay-1", ReceiptFields{StudentName: "Student", Amount: 10, Reference: "R"})
	require.NoError(t, err)
	assert.Regexp(t, `^RCT-\d{8}-[0-9A-F]{8}$`, first.ReceiptNumber)

	second, err := s.CreateOrUpdateReceipt(ctx, "pay-1", ReceiptFields{StudentName: "Ada", Amount: 20, Reference: "R2"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ReceiptNumber, second.ReceiptNumber)
	assert.Equal(t, "Ada", second.StudentName)
	assert.Equal(t, 20.0, second.Amount)
	assert.Equal(t, "R2", second.Reference)
}

func TestMemoryStoreLedgerIsUniquePerSourceAndReference(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.CreateFeePaymentRecord(ctx, LedgerInput{PaymentReference: "R", Amount: 9}, SettlementActor)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerSourcePaystack, first.Source)

	dup, err := s.CreateFeePaymentRecord(ctx, LedgerInput{PaymentReference: "R", Amount: 9}, SettlementActor)
	require.NoError(t, err)
	assert.Equal(t, first.ID, dup.ID)

	manual, err := s.CreateFeePaymentRecord(ctx, LedgerInput{PaymentReference: "R", Source: models.LedgerSourceManual}, SettlementActor)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, manual.ID)
	assert.Len(t, s.LedgerEntries(), 2)

	_, err = s.CreateFeePaymentRecord(ctx, LedgerInput{PaymentReference: "  "}, SettlementActor)
	assert.Error(t, err)
}

func TestMemoryStoreListCompletedPayments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []models.PaymentStatus{models.PaymentStatusCompleted, models.PaymentStatusPending, models.PaymentStatusCompleted, models.PaymentStatusCompleted} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		_, err := s.RecordPaymentInitialization(ctx, PaymentInput{Reference: string(rune('A' + i)), Status: status})
		require.NoError(t, err)
	}

	page, err := s.ListCompletedPayments(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "A", page[0].Reference)
	assert.Equal(t, "C", page[1].Reference)

	rest, err := s.ListCompletedPayments(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "D", rest[0].Reference)

	empty, err := s.ListCompletedPayments(ctx, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "payments.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	created, err := s.RecordPaymentInitialization(ctx, PaymentInput{Reference: "FILE-1", Amount: 75, Metadata: map[string]interface{}{"studentId": "STU-1"}})
	require.NoError(t, err)
	receipt, err := s.CreateOrUpdateReceipt(ctx, created.ID, ReceiptFields{StudentName: "Ada", Amount: 75, Reference: "FILE-1"})
	require.NoError(t, err)
	_, err = s.CreateFeePaymentRecord(ctx, LedgerInput{PaymentReference: "FILE-1", Amount: 75}, SettlementActor)
	require.NoError(t, err)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	found, err := reopened.FindPaymentByReference(ctx, "file-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "STU-1", found.Metadata["studentId"])

	again, err := reopened.FindReceiptByPaymentID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, receipt.ReceiptNumber, again.ReceiptNumber)

	dup, err := reopened.CreateFeePaymentRecord(ctx, LedgerInput{PaymentReference: "FILE-1"}, SettlementActor)
	require.NoError(t, err)
	assert.Len(t, reopened.LedgerEntries(), 1)
	assert.Equal(t, 75.0, dup.Amount)
}

func TestNewFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payments.json")
	require.NoError(t, writeFile(path, "{not json"))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}
