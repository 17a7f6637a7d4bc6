package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/ports"
)

// PostgresBudgetReader implements BudgetReader using PostgreSQL. Budget
// lines carry a version column; CommitImpact only applies when the version
// is unchanged, closing the read-then-decide race on concurrent approvals.
type PostgresBudgetReader struct {
	db *sql.DB
}

// NewPostgresBudgetReader creates a new PostgreSQL budget reader
func NewPostgresBudgetReader(db *sql.DB) ports.BudgetReader {
	return &PostgresBudgetReader{db: db}
}

// Snapshot retrieves the budget line for (budgetCode, fiscalYear);
// returns nil when no such line exists
func (r *PostgresBudgetReader) Snapshot(ctx context.Context, budgetCode, fiscalYear string) (*domain.BudgetSnapshot, error) {
	query := `
		SELECT budget_code, fiscal_year, allocated, committed, spent, version
		FROM budget_lines
		WHERE budget_code = $1 AND fiscal_year = $2
	`

	var snapshot domain.BudgetSnapshot

	err := r.db.QueryRowContext(ctx, query, budgetCode, fiscalYear).Scan(
		&snapshot.BudgetCode,
		&snapshot.FiscalYear,
		&snapshot.Allocated,
		&snapshot.Committed,
		&snapshot.Spent,
		&snapshot.Version,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query budget line: %w", err)
	}

	snapshot.AvailableBalance = snapshot.Allocated.Sub(snapshot.Committed).Sub(snapshot.Spent)
	return &snapshot, nil
}

// CommitImpact increases the committed figure by amount with an optimistic
// version check; a mismatch fails with BudgetConflict
func (r *PostgresBudgetReader) CommitImpact(ctx context.Context, budgetCode, fiscalYear string, amount decimal.Decimal, expectedVersion int64) error {
	query := `
		UPDATE budget_lines
		SET committed = committed + $1, version = version + 1
		WHERE budget_code = $2 AND fiscal_year = $3 AND version = $4
	`

	result, err := r.db.ExecContext(ctx, query, amount, budgetCode, fiscalYear, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to commit budget impact: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check budget commit: %w", err)
	}
	if affected == 0 {
		return domain.ErrBudgetConflict(budgetCode, fiscalYear)
	}

	return nil
}
