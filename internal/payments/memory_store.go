package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"school_portal_echo/internal/models"
)

// MemoryStore implements Store in process memory. When created with
// NewFileStore every write is snapshotted to a JSON file.
type MemoryStore struct {
	mu       sync.Mutex
	path     string
	now      func() time.Time
	payments map[string]models.PaymentInitialization
	receipts map[string]models.Receipt // by payment id
	ledger   map[string]models.FeeLedgerEntry
	splits   []models.DeveloperSplitAuditEntry
	events   []models.PaymentCallbackHistory
}

type memorySnapshot struct {
	Payments []models.PaymentInitialization    `json:"payments"`
	Receipts []models.Receipt                  `json:"receipts"`
	Ledger   []models.FeeLedgerEntry           `json:"ledger"`
	Splits   []models.DeveloperSplitAuditEntry `json:"splits"`
	Events   []models.PaymentCallbackHistory   `json:"events"`
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		payments: map[string]models.PaymentInitialization{},
		receipts: map[string]models.Receipt{},
		ledger:   map[string]models.FeeLedgerEntry{},
	}
}

// NewFileStore loads path if it exists and persists every write to it
func NewFileStore(path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	s.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var snap memorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}
	for _, p := range snap.Payments {
		s.payments[p.ID] = p
	}
	for _, r := range snap.Receipts {
		s.receipts[r.PaymentID] = r
	}
	for _, e := range snap.Ledger {
		s.ledger[e.ID] = e
	}
	s.splits = snap.Splits
	s.events = snap.Events
	return s, nil
}

func (s *MemoryStore) FindPaymentByReference(ctx context.Context, reference string) (*models.PaymentInitialization, error) {
	ref := normalizeReference(reference)
	if ref == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var byReference, byGateway []models.PaymentInitialization
	for _, p := range s.payments {
		if normalizeReference(p.Reference) == ref {
			byReference = append(byReference, p)
		} else if p.PaystackReference != nil && normalizeReference(*p.PaystackReference) == ref {
			byGateway = append(byGateway, p)
		}
	}

	for _, candidates := range [][]models.PaymentInitialization{byReference, byGateway} {
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		})
		found := copyPayment(candidates[0])
		return &found, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindPaymentByID(ctx context.Context, id string) (*models.PaymentInitialization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, nil
	}
	found := copyPayment(p)
	return &found, nil
}

func (s *MemoryStore) RecordPaymentInitialization(ctx context.Context, in PaymentInput) (*models.PaymentInitialization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := newPaymentRecord(in, s.now())
	s.payments[p.ID] = p
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	created := copyPayment(p)
	return &created, nil
}

func (s *MemoryStore) UpdatePaymentRecord(ctx context.Context, id string, upd PaymentUpdate) (*models.PaymentInitialization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, nil
	}
	p = copyPayment(p)
	applyPaymentUpdate(&p, upd)
	p.UpdatedAt = s.now()
	s.payments[id] = p
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	updated := copyPayment(p)
	return &updated, nil
}

func (s *MemoryStore) ListCompletedPayments(ctx context.Context, offset, limit int) ([]models.PaymentInitialization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completed []models.PaymentInitialization
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusCompleted {
			completed = append(completed, copyPayment(p))
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		if completed[i].CreatedAt.Equal(completed[j].CreatedAt) {
			return completed[i].ID < completed[j].ID
		}
		return completed[i].CreatedAt.Before(completed[j].CreatedAt)
	})

	if offset >= len(completed) {
		return nil, nil
	}
	end := len(completed)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return completed[offset:end], nil
}

func (s *MemoryStore) CreateOrUpdateReceipt(ctx context.Context, paymentID string, fields ReceiptFields) (*models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r, ok := s.receipts[paymentID]
	if ok {
		r.StudentName = fields.StudentName
		r.Amount = fields.Amount
		r.Reference = fields.Reference
		r.Metadata = mergeMetadata(r.Metadata, fields.Metadata)
		r.UpdatedAt = now
	} else {
		r = models.Receipt{
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
	}
	s.receipts[paymentID] = r
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	out := r
	out.Metadata = CloneBag(r.Metadata)
	return &out, nil
}

func (s *MemoryStore) FindReceiptByPaymentID(ctx context.Context, paymentID string) (*models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.receipts[paymentID]
	if !ok {
		return nil, nil
	}
	r.Metadata = CloneBag(r.Metadata)
	return &r, nil
}

func (s *MemoryStore) CreateFeePaymentRecord(ctx context.Context, in LedgerInput, actor Actor) (*models.FeeLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := newLedgerEntry(in, actor, s.now())
	if e.PaymentReference == "" {
		return nil, errors.New("ledger entry requires a payment reference")
	}
	for _, existing := range s.ledger {
		if existing.Source == e.Source && existing.PaymentReference == e.PaymentReference {
			found := existing
			return &found, nil
		}
	}

	s.ledger[e.ID] = e
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *MemoryStore) RecordDeveloperSplit(ctx context.Context, entry *models.DeveloperSplitAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = s.now()
	}
	entry.ID = uint(len(s.splits) + 1)
	s.splits = append(s.splits, *entry)
	return s.persistLocked()
}

func (s *MemoryStore) RecordGatewayEvent(ctx context.Context, event *models.PaymentCallbackHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	event.ID = uint(len(s.events) + 1)
	event.CreatedAt = now
	event.UpdatedAt = now
	s.events = append(s.events, *event)
	return s.persistLocked()
}

// LedgerEntries returns the ledger ordered by creation time
func (s *MemoryStore) LedgerEntries() []models.FeeLedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.FeeLedgerEntry, 0, len(s.ledger))
	for _, e := range s.ledger {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries
}

// PaymentCount returns the number of stored payment records
func (s *MemoryStore) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

// SplitAudits returns the recorded developer split rows
func (s *MemoryStore) SplitAudits() []models.DeveloperSplitAuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DeveloperSplitAuditEntry(nil), s.splits...)
}

// GatewayEvents returns the recorded gateway answers
func (s *MemoryStore) GatewayEvents() []models.PaymentCallbackHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PaymentCallbackHistory(nil), s.events...)
}

func (s *MemoryStore) persistLocked() error {
	if s.path == "" {
		return nil
	}

	snap := memorySnapshot{Splits: s.splits, Events: s.events}
	for _, p := range s.payments {
		snap.Payments = append(snap.Payments, p)
	}
	for _, r := range s.receipts {
		snap.Receipts = append(snap.Receipts, r)
	}
	for _, e := range s.ledger {
		snap.Ledger = append(snap.Ledger, e)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".payments-*.json")
	if err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func copyPayment(p models.PaymentInitialization) models.PaymentInitialization {
	p.Metadata = CloneBag(p.Metadata)
	if p.PaystackReference != nil {
		ref := *p.PaystackReference
		p.PaystackReference = &ref
	}
	if p.StudentID != nil {
		id := *p.StudentID
		p.StudentID = &id
	}
	return p
}
