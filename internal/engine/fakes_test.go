package engine

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zabuni/zabuni/internal/config"
	"github.com/zabuni/zabuni/internal/domain"
)

// testLogger returns a silent logger for engine construction
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memAuditRepo is an in-memory AuditRepository
type memAuditRepo struct {
	entries []*domain.AuditEntry
	failing bool
}

func (r *memAuditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	if r.failing {
		return context.DeadlineExceeded
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memAuditRepo) TrailFor(_ context.Context, entityType, entityID string, limit int) ([]*domain.AuditEntry, error) {
	var out []*domain.AuditEntry
	for _, e := range r.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAuditRepo) ActivityFor(_ context.Context, actorID string, since time.Time, limit int) ([]*domain.AuditEntry, error) {
	var out []*domain.AuditEntry
	for _, e := range r.entries {
		if e.ActorID == actorID && !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAuditRepo) MoveToArchive(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*domain.AuditEntry
	var moved int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			moved++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return moved, nil
}

// countByAction counts stored entries with the given action
func (r *memAuditRepo) countByAction(action domain.AuditAction) int {
	n := 0
	for _, e := range r.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// fakeRateRepo is a map-backed RateRepository. Rates are keyed by
// from|to and ignore the asOf date.
type fakeRateRepo struct {
	rates  map[string]decimal.Decimal
	stored []*domain.ExchangeRate
}

func newFakeRateRepo() *fakeRateRepo {
	return &fakeRateRepo{rates: make(map[string]decimal.Decimal)}
}

func (r *fakeRateRepo) set(from, to, rate string) {
	r.rates[from+"|"+to] = decimal.RequireFromString(rate)
}

func (r *fakeRateRepo) Latest(_ context.Context, from, to string, _ time.Time) (*domain.ExchangeRate, error) {
	rate, ok := r.rates[from+"|"+to]
	if !ok {
		return nil, nil
	}
	return &domain.ExchangeRate{
		FromCurrency:  from,
		ToCurrency:    to,
		Rate:          rate,
		EffectiveDate: time.Now().UTC(),
	}, nil
}

func (r *fakeRateRepo) Store(_ context.Context, rate *domain.ExchangeRate) error {
	r.stored = append(r.stored, rate)
	r.rates[rate.FromCurrency+"|"+rate.ToCurrency] = rate.Rate
	return nil
}

// fakeLockRepo is an in-memory LockedRateRepository
type fakeLockRepo struct {
	locks map[string]*domain.LockedRate
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{locks: make(map[string]*domain.LockedRate)}
}

func lockKey(transactionType, transactionID, from, to string) string {
	return transactionType + "|" + transactionID + "|" + from + "|" + to
}

func (r *fakeLockRepo) Create(_ context.Context, lock *domain.LockedRate) error {
	key := lockKey(lock.TransactionType, lock.TransactionID, lock.FromCurrency, lock.ToCurrency)
	if _, exists := r.locks[key]; exists {
		return domain.ErrRateAlreadyLocked(lock.TransactionType, lock.TransactionID)
	}
	r.locks[key] = lock
	return nil
}

func (r *fakeLockRepo) Find(_ context.Context, transactionType, transactionID, from, to string) (*domain.LockedRate, error) {
	return r.locks[lockKey(transactionType, transactionID, from, to)], nil
}

// countingCache is a RateCache that records hits and writes
type countingCache struct {
	values map[string]decimal.Decimal
	gets   int
	puts   int
}

func newCountingCache() *countingCache {
	return &countingCache{values: make(map[string]decimal.Decimal)}
}

func (c *countingCache) Get(_ context.Context, from, to string, _ time.Time) (decimal.Decimal, bool) {
	c.gets++
	rate, ok := c.values[from+"|"+to]
	return rate, ok
}

func (c *countingCache) Put(_ context.Context, from, to string, _ time.Time, rate decimal.Decimal) {
	c.puts++
	c.values[from+"|"+to] = rate
}

// fakeDocumentStore is an in-memory DocumentStore capturing transitions
type fakeDocumentStore struct {
	docs        map[string]*domain.WorkflowDocument
	audit       *memAuditRepo
	applied     int
	failNextTxn bool
}

func newFakeDocumentStore(audit *memAuditRepo) *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[string]*domain.WorkflowDocument), audit: audit}
}

func (s *fakeDocumentStore) FindDocument(_ context.Context, entityType, entityID string) (*domain.WorkflowDocument, error) {
	return s.docs[entityType+"|"+entityID], nil
}

func (s *fakeDocumentStore) ApplyTransition(ctx context.Context, doc domain.Document, to domain.State, entry *domain.AuditEntry) error {
	if s.failNextTxn {
		s.failNextTxn = false
		return context.DeadlineExceeded
	}
	// Both writes or neither, as the postgres adapter guarantees.
	if stored, ok := s.docs[doc.DocumentType()+"|"+doc.DocumentID()]; ok {
		stored.State = to
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		return err
	}
	s.applied++
	return nil
}

// fakeBudgetReader is an in-memory BudgetReader with version checking
type fakeBudgetReader struct {
	lines map[string]*domain.BudgetSnapshot
}

func newFakeBudgetReader() *fakeBudgetReader {
	return &fakeBudgetReader{lines: make(map[string]*domain.BudgetSnapshot)}
}

func (r *fakeBudgetReader) put(line *domain.BudgetSnapshot) {
	r.lines[line.BudgetCode+"|"+line.FiscalYear] = line
}

func (r *fakeBudgetReader) Snapshot(_ context.Context, budgetCode, fiscalYear string) (*domain.BudgetSnapshot, error) {
	line, ok := r.lines[budgetCode+"|"+fiscalYear]
	if !ok {
		return nil, nil
	}
	copied := *line
	copied.AvailableBalance = copied.Allocated.Sub(copied.Committed).Sub(copied.Spent)
	return &copied, nil
}

func (r *fakeBudgetReader) CommitImpact(_ context.Context, budgetCode, fiscalYear string, amount decimal.Decimal, expectedVersion int64) error {
	line, ok := r.lines[budgetCode+"|"+fiscalYear]
	if !ok || line.Version != expectedVersion {
		return domain.ErrBudgetConflict(budgetCode, fiscalYear)
	}
	line.Committed = line.Committed.Add(amount)
	line.Version++
	return nil
}

// test configuration builders

func testAuditConfig() config.AuditConfig {
	return config.AuditConfig{ArchiveEnabled: false, DefaultTrailLimit: 50}
}

func testCurrencyConfig() config.CurrencyConfig {
	return config.CurrencyConfig{
		BaseCurrency:        "KES",
		SupportedCurrencies: []string{"KES", "USD", "EUR", "GBP"},
		CacheTTL:            time.Hour,
		MaxResolutionDepth:  2,
	}
}

func testTaxConfig() config.TaxConfig {
	return config.TaxConfig{
		DefaultVATRate: decimal.RequireFromString("16"),
		DefaultWHTRate: decimal.RequireFromString("5"),
		WHTRates: map[domain.WHTType]decimal.Decimal{
			domain.WHTTypeServices:    decimal.RequireFromString("5"),
			domain.WHTTypeGoods:       decimal.RequireFromString("3"),
			domain.WHTTypeRent:        decimal.RequireFromString("10"),
			domain.WHTTypeConsultancy: decimal.RequireFromString("5"),
		},
	}
}

func testGovernanceConfig() config.GovernanceConfig {
	max := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}
	return config.GovernanceConfig{
		ThreeWayMatchEnabled:  true,
		MatchTolerancePercent: decimal.RequireFromString("2"),
		PrincipalThreshold:    decimal.RequireFromString("500000"),
		BoardThreshold:        decimal.RequireFromString("5000000"),
		TenderThreshold:       decimal.RequireFromString("5000000"),
		SingleSourceThreshold: decimal.RequireFromString("500000"),
		DefaultQuoteCount:     3,
		EmergencyLimit:        decimal.RequireFromString("2000000"),
		MaxBackdateDays:       30,
		CashBands: []domain.CashBand{
			{Key: "petty_cash", Min: decimal.Zero, Max: max("50000"), Method: domain.SourcingPettyCash, MinQuotes: 1, Approvers: []domain.ApprovalLevel{domain.ApprovalHOD}},
			{Key: "direct_purchase", Min: decimal.RequireFromString("50000"), Max: max("500000"), Method: domain.SourcingDirectPurchase, MinQuotes: 3, Approvers: []domain.ApprovalLevel{domain.ApprovalHOD}},
			{Key: "quotation", Min: decimal.RequireFromString("500000"), Max: max("5000000"), Method: domain.SourcingQuotation, MinQuotes: 3, Approvers: []domain.ApprovalLevel{domain.ApprovalHOD, domain.ApprovalPrincipal}},
			{Key: "strategic", Min: decimal.RequireFromString("5000000"), Max: nil, Method: domain.SourcingStrategicTender, MinQuotes: 0, Approvers: []domain.ApprovalLevel{domain.ApprovalHOD, domain.ApprovalPrincipal, domain.ApprovalBoard}},
		},
	}
}

func testActor() domain.ActorContext {
	return domain.ActorContext{
		ID:    "user-001",
		Name:  "Jane Wanjiku",
		Email: "jane@example.org",
		Request: domain.RequestMeta{
			IP:        "10.0.0.7",
			UserAgent: "test",
			URL:       "/requisitions/req-1/approve",
		},
	}
}
