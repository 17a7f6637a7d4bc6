package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/ports"
)

// PostgresRateRepository implements RateRepository using PostgreSQL
type PostgresRateRepository struct {
	db *sql.DB
}

// NewPostgresRateRepository creates a new PostgreSQL exchange-rate repository
func NewPostgresRateRepository(db *sql.DB) ports.RateRepository {
	return &PostgresRateRepository{db: db}
}

// Latest retrieves the most recent rate for (from, to) effective on or
// before asOf; returns nil when none exists
func (r *PostgresRateRepository) Latest(ctx context.Context, from, to string, asOf time.Time) (*domain.ExchangeRate, error) {
	query := `
		SELECT id, from_currency, to_currency, rate, effective_date, source
		FROM exchange_rates
		WHERE from_currency = $1 AND to_currency = $2 AND effective_date <= $3
		ORDER BY effective_date DESC
		LIMIT 1
	`

	var rate domain.ExchangeRate
	var source sql.NullString

	err := r.db.QueryRowContext(ctx, query, from, to, asOf).Scan(
		&rate.ID,
		&rate.FromCurrency,
		&rate.ToCurrency,
		&rate.Rate,
		&rate.EffectiveDate,
		&source,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange rate: %w", err)
	}

	rate.Source = source.String
	return &rate, nil
}

// Store saves a new exchange rate
func (r *PostgresRateRepository) Store(ctx context.Context, rate *domain.ExchangeRate) error {
	query := `
		INSERT INTO exchange_rates (id, from_currency, to_currency, rate, effective_date, source)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		rate.ID,
		rate.FromCurrency,
		rate.ToCurrency,
		rate.Rate,
		rate.EffectiveDate,
		nullString(rate.Source),
	)
	if err != nil {
		return fmt.Errorf("failed to store exchange rate: %w", err)
	}

	return nil
}

// PostgresLockedRateRepository implements LockedRateRepository using
// PostgreSQL. The table carries a unique constraint on the full lock key,
// so write-once is enforced by the database as well as the engine.
type PostgresLockedRateRepository struct {
	db *sql.DB
}

// NewPostgresLockedRateRepository creates a new PostgreSQL locked-rate repository
func NewPostgresLockedRateRepository(db *sql.DB) ports.LockedRateRepository {
	return &PostgresLockedRateRepository{db: db}
}

// Create stores a new locked rate; a duplicate key fails
func (r *PostgresLockedRateRepository) Create(ctx context.Context, lock *domain.LockedRate) error {
	query := `
		INSERT INTO locked_rates (id, transaction_type, transaction_id, from_currency, to_currency, rate, locked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		lock.ID,
		lock.TransactionType,
		lock.TransactionID,
		lock.FromCurrency,
		lock.ToCurrency,
		lock.Rate,
		lock.LockedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return domain.ErrRateAlreadyLocked(lock.TransactionType, lock.TransactionID)
		}
		return fmt.Errorf("failed to create locked rate: %w", err)
	}

	return nil
}

// Find retrieves a locked rate by its full key; returns nil when absent
func (r *PostgresLockedRateRepository) Find(ctx context.Context, transactionType, transactionID, from, to string) (*domain.LockedRate, error) {
	query := `
		SELECT id, transaction_type, transaction_id, from_currency, to_currency, rate, locked_at
		FROM locked_rates
		WHERE transaction_type = $1 AND transaction_id = $2 AND from_currency = $3 AND to_currency = $4
	`

	var lock domain.LockedRate

	err := r.db.QueryRowContext(ctx, query, transactionType, transactionID, from, to).Scan(
		&lock.ID,
		&lock.TransactionType,
		&lock.TransactionID,
		&lock.FromCurrency,
		&lock.ToCurrency,
		&lock.Rate,
		&lock.LockedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query locked rate: %w", err)
	}

	return &lock, nil
}
