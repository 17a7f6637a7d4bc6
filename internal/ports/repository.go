package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zabuni/zabuni/internal/domain"
)

// AuditRepository defines the interface for audit ledger persistence.
// The interface is append-only: no update or delete method exists, making
// entry immutability structural rather than conventional.
type AuditRepository interface {
	// Append stores a new audit entry
	Append(ctx context.Context, entry *domain.AuditEntry) error

	// TrailFor retrieves entries for an entity, newest first. A limit of
	// zero or less returns the full trail.
	TrailFor(ctx context.Context, entityType, entityID string, limit int) ([]*domain.AuditEntry, error)

	// ActivityFor retrieves entries by an actor since a point in time, newest first
	ActivityFor(ctx context.Context, actorID string, since time.Time, limit int) ([]*domain.AuditEntry, error)

	// MoveToArchive moves entries older than cutoff to the archive sink and
	// removes them from the primary sink in one atomic operation, returning
	// the number of entries moved
	MoveToArchive(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateRepository defines the interface for exchange-rate reference data
type RateRepository interface {
	// Latest retrieves the most recent rate for (from, to) with an effective
	// date on or before asOf; returns nil when none exists
	Latest(ctx context.Context, from, to string, asOf time.Time) (*domain.ExchangeRate, error)

	// Store saves a new exchange rate
	Store(ctx context.Context, rate *domain.ExchangeRate) error
}

// LockedRateRepository defines the interface for per-transaction rate locks.
// Locks are write-once; there is no update method.
type LockedRateRepository interface {
	// Create stores a new locked rate; implementations must reject a
	// duplicate (transactionType, transactionID, from, to) key
	Create(ctx context.Context, lock *domain.LockedRate) error

	// Find retrieves a locked rate by its full key; returns nil when absent
	Find(ctx context.Context, transactionType, transactionID, from, to string) (*domain.LockedRate, error)
}

// RateCache is an advisory cache for resolved exchange rates. Misses and
// cache failures are not errors for callers; resolution falls through to
// the rate repository.
type RateCache interface {
	// Get retrieves a cached rate; ok is false on a miss
	Get(ctx context.Context, from, to string, asOf time.Time) (rate decimal.Decimal, ok bool)

	// Put caches a resolved rate for the configured duration
	Put(ctx context.Context, from, to string, asOf time.Time, rate decimal.Decimal)
}

// DocumentStore defines the interface for workflow-bearing documents in the
// entity store
type DocumentStore interface {
	// FindDocument retrieves a document's identity and current status
	FindDocument(ctx context.Context, entityType, entityID string) (*domain.WorkflowDocument, error)

	// ApplyTransition updates the document's status field and appends the
	// state-transition audit entry inside one atomic unit of work; neither
	// write survives without the other
	ApplyTransition(ctx context.Context, doc domain.Document, to domain.State, entry *domain.AuditEntry) error
}

// BudgetReader defines read access to budget lines plus the optimistic
// commit used to close the read-then-decide race on budget checks
type BudgetReader interface {
	// Snapshot retrieves the budget line for (budgetCode, fiscalYear);
	// returns nil when no such line exists
	Snapshot(ctx context.Context, budgetCode, fiscalYear string) (*domain.BudgetSnapshot, error)

	// CommitImpact increases the committed figure by amount if and only if
	// the line's version still equals expectedVersion; a version mismatch
	// fails with ErrBudgetConflict so the caller can re-read and retry
	CommitImpact(ctx context.Context, budgetCode, fiscalYear string, amount decimal.Decimal, expectedVersion int64) error
}
