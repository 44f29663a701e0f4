package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"school_portal_echo/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingStore wraps MemoryStore with call counters and failure injection
type recordingStore struct {
	*MemoryStore

	mu          sync.Mutex
	findCalls   int
	ledgerCalls int

	CreateFeePaymentRecordFunc func(ctx context.Context, in LedgerInput, actor Actor) (*models.FeeLedgerEntry, error)
	RecordDeveloperSplitFunc   func(ctx context.Context, entry *models.DeveloperSplitAuditEntry) error
	UpdatePaymentRecordFunc    func(ctx context.Context, id string, upd PaymentUpdate) (*models.PaymentInitialization, error)
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore()}
}

func (s *recordingStore) FindPaymentByReference(ctx context.Context, reference string) (*models.PaymentInitialization, error) {
	s.mu.Lock()
	s.findCalls++
	s.mu.Unlock()
	return s.MemoryStore.FindPaymentByReference(ctx, reference)
}

func (s *recordingStore) CreateFeePaymentRecord(ctx context.Context, in LedgerInput, actor Actor) (*models.FeeLedgerEntry, error) {
	s.mu.Lock()
	s.ledgerCalls++
	s.mu.Unlock()
	if s.CreateFeePaymentRecordFunc != nil {
		return s.CreateFeePaymentRecordFunc(ctx, in, actor)
	}
	return s.MemoryStore.CreateFeePaymentRecord(ctx, in, actor)
}

func (s *recordingStore) RecordDeveloperSplit(ctx context.Context, entry *models.DeveloperSplitAuditEntry) error {
	if s.RecordDeveloperSplitFunc != nil {
		return s.RecordDeveloperSplitFunc(ctx, entry)
	}
	return s.MemoryStore.RecordDeveloperSplit(ctx, entry)
}

func (s *recordingStore) UpdatePaymentRecord(ctx context.Context, id string, upd PaymentUpdate) (*models.PaymentInitialization, error) {
	if s.UpdatePaymentRecordFunc != nil {
		return s.UpdatePaymentRecordFunc(ctx, id, upd)
	}
	return s.MemoryStore.UpdatePaymentRecord(ctx, id, upd)
}

// fakeGateway answers from a table of references
type fakeGateway struct {
	mu        sync.Mutex
	calls     int
	responses map[string]*GatewayVerification
	err       error
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*GatewayVerification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if resp, ok := g.responses[reference]; ok {
		return resp, nil
	}
	return &GatewayVerification{Status: false, Message: "Transaction reference not found"}, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []NotificationEvent
	err    error
}

func (p *capturePublisher) Publish(ctx context.Context, event NotificationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func successResponse(reference string, amountKobo int64, metadata interface{}) *GatewayVerification {
	raw, _ := json.Marshal(metadata)
	return &GatewayVerification{
		Status:  true,
		Message: "Verification successful",
		Data: GatewayTransaction{
			Status:    GatewayStatusSuccess,
			Reference: reference,
			Amount:    amountKobo,
			Currency:  "NGN",
			Channel:   "card",
			PaidAt:    "2026-09-01T10:15:00Z",
			Metadata:  raw,
			Customer:  GatewayCustomer{Email: "Parent@Example.com"},
		},
	}
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 9, 1, 10, 20, 0, 0, time.UTC) }
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
