package router

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
	"ledgerdesk/internal/repositories"
)

// MockBackend is a testify mock of the ledger backend.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) FindEntity(ctx context.Context, kind ledger.EntityKind, nameQuery string) ([]models.EntityRef, error) {
	args := m.Called(ctx, kind, nameQuery)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EntityRef), args.Error(1)
}

func (m *MockBackend) CreateEntity(ctx context.Context, kind ledger.EntityKind, fields ledger.EntityFields) (models.EntityRef, error) {
	args := m.Called(ctx, kind, fields)
	return args.Get(0).(models.EntityRef), args.Error(1)
}

func (m *MockBackend) UpdateEntity(ctx context.Context, kind ledger.EntityKind, id string, fields ledger.EntityFields) error {
	args := m.Called(ctx, kind, id, fields)
	return args.Error(0)
}

func (m *MockBackend) CreateTransaction(ctx context.Context, kind ledger.Kind, txn *models.Transaction) (string, error) {
	args := m.Called(ctx, kind, txn)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) GetTransaction(ctx context.Context, kind ledger.Kind, id string) (*models.Transaction, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockBackend) UpdateTransaction(ctx context.Context, kind ledger.Kind, id string, txn *models.Transaction) error {
	args := m.Called(ctx, kind, id, txn)
	return args.Error(0)
}

func (m *MockBackend) SearchTransactions(ctx context.Context, kind ledger.Kind, filter ledger.SearchFilter) ([]*models.Transaction, error) {
	args := m.Called(ctx, kind, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockBackend) DeleteTransaction(ctx context.Context, kind ledger.Kind, id string) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}

func (m *MockBackend) ReportBasis(ctx context.Context) (ledger.Basis, error) {
	args := m.Called(ctx)
	return args.Get(0).(ledger.Basis), args.Error(1)
}

// memWorkWeekRepo is an in-memory work week store.
type memWorkWeekRepo struct {
	mu    sync.Mutex
	weeks map[string]map[models.Weekday]models.WorkDay
}

func newMemWorkWeekRepo() *memWorkWeekRepo {
	return &memWorkWeekRepo{weeks: make(map[string]map[models.Weekday]models.WorkDay)}
}

func wwKey(vendor, weekRef string) string { return vendor + "|" + weekRef }

func (r *memWorkWeekRepo) GetWeek(ctx context.Context, vendor, weekRef string) (*models.WorkWeek, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	week := &models.WorkWeek{Vendor: vendor, WeekRef: weekRef, Days: make(map[models.Weekday]models.WorkDay)}
	for day, entry := range r.weeks[wwKey(vendor, weekRef)] {
		week.Days[day] = entry
	}
	return week, nil
}

func (r *memWorkWeekRepo) UpsertDay(ctx context.Context, vendor, weekRef string, entry models.WorkDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := wwKey(vendor, weekRef)
	if r.weeks[key] == nil {
		r.weeks[key] = make(map[models.Weekday]models.WorkDay)
	}
	r.weeks[key][entry.Day] = entry
	return nil
}

func (r *memWorkWeekRepo) DeleteDay(ctx context.Context, vendor, weekRef string, day models.Weekday) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := wwKey(vendor, weekRef)
	if _, ok := r.weeks[key][day]; !ok {
		return false, nil
	}
	delete(r.weeks[key], day)
	return true, nil
}

func (r *memWorkWeekRepo) DeleteWeek(ctx context.Context, vendor, weekRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.weeks, wwKey(vendor, weekRef))
	return nil
}

func (r *memWorkWeekRepo) ListWeek(ctx context.Context, weekRef string) ([]*models.WorkWeek, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WorkWeek
	for key, days := range r.weeks {
		vendor := key[:len(key)-len(weekRef)-1]
		if key != wwKey(vendor, weekRef) || len(days) == 0 {
			continue
		}
		week := &models.WorkWeek{Vendor: vendor, WeekRef: weekRef, Days: make(map[models.Weekday]models.WorkDay)}
		for d, e := range days {
			week.Days[d] = e
		}
		out = append(out, week)
	}
	return out, nil
}

// memFingerprintRepo mirrors the status semantics of the real index.
type memFingerprintRepo struct {
	mu   sync.Mutex
	rows map[string]*repositories.ProcessedTxn
}

func newMemFingerprintRepo() *memFingerprintRepo {
	return &memFingerprintRepo{rows: make(map[string]*repositories.ProcessedTxn)}
}

func (r *memFingerprintRepo) Reserve(ctx context.Context, txn *repositories.ProcessedTxn) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[txn.Fingerprint]; ok {
		if existing.Status != repositories.TxnStatusFailed {
			return false, nil
		}
	}
	claimed := *txn
	claimed.Status = repositories.TxnStatusPending
	claimed.CreatedAt = time.Now()
	r.rows[txn.Fingerprint] = &claimed
	return true, nil
}

func (r *memFingerprintRepo) Confirm(ctx context.Context, fingerprint, ledgerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[fingerprint]; ok {
		row.Status = repositories.TxnStatusPosted
		row.LedgerID = ledgerID
	}
	return nil
}

func (r *memFingerprintRepo) Fail(ctx context.Context, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[fingerprint]; ok && row.Status == repositories.TxnStatusPending {
		row.Status = repositories.TxnStatusFailed
	}
	return nil
}

func (r *memFingerprintRepo) MarkUncertain(ctx context.Context, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[fingerprint]; ok {
		row.Status = repositories.TxnStatusUncertain
	}
	return nil
}

func (r *memFingerprintRepo) Lookup(ctx context.Context, fingerprint string) (*repositories.ProcessedTxn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[fingerprint]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

// memPolicyRepo stores vendor policies in memory.
type memPolicyRepo struct {
	mu       sync.Mutex
	policies map[string]*models.VendorPolicy
}

func newMemPolicyRepo() *memPolicyRepo {
	return &memPolicyRepo{policies: make(map[string]*models.VendorPolicy)}
}

func (r *memPolicyRepo) GetVendorPolicy(ctx context.Context, vendor string) (*models.VendorPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policies[vendor], nil
}

func (r *memPolicyRepo) UpsertVendorPolicy(ctx context.Context, policy *models.VendorPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[policy.Vendor] = policy
	return nil
}

func (r *memPolicyRepo) ListVendorPolicies(ctx context.Context) ([]*models.VendorPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.VendorPolicy
	for _, p := range r.policies {
		out = append(out, p)
	}
	return out, nil
}

// memAuditRepo records audit entries in memory.
type memAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
}

var _ repositories.AuditLogsRepository = (*memAuditRepo)(nil)

func (r *memAuditRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) List(ctx context.Context, action string, limit, offset int) ([]*models.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range r.entries {
		if action == "" || e.Action == action {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAuditRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]*models.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuditEntry(nil), r.entries...), nil
}

func (r *memAuditRepo) byAction(action string) []*models.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
