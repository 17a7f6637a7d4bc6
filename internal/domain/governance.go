package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourcingMethod is the procurement method a cash band mandates
type SourcingMethod string

const (
	SourcingPettyCash       SourcingMethod = "PETTY_CASH"
	SourcingDirectPurchase  SourcingMethod = "DIRECT_PURCHASE"
	SourcingQuotation       SourcingMethod = "REQUEST_FOR_QUOTATION"
	SourcingOpenTender      SourcingMethod = "OPEN_TENDER"
	SourcingStrategicTender SourcingMethod = "STRATEGIC_TENDER"
)

// ApprovalLevel is one rung of the approval hierarchy
type ApprovalLevel string

const (
	ApprovalHOD       ApprovalLevel = "HOD"
	ApprovalPrincipal ApprovalLevel = "PRINCIPAL"
	ApprovalBoard     ApprovalLevel = "BOARD"
)

// CashBand is one tier of the tiered sourcing policy. Max is nil for the
// open-ended top tier. Tiers must be contiguous and exhaustive over [0, inf).
type CashBand struct {
	Key       string           `json:"key"`
	Min       decimal.Decimal  `json:"min"`
	Max       *decimal.Decimal `json:"max,omitempty"`
	Method    SourcingMethod   `json:"method"`
	MinQuotes int              `json:"min_quotes"`
	Approvers []ApprovalLevel  `json:"approvers"`
}

// Contains reports whether amount falls inside this band
func (b CashBand) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(b.Min) {
		return false
	}
	return b.Max == nil || amount.LessThanOrEqual(*b.Max)
}

// SegregationResult is the outcome of a segregation-of-duties check.
// Allowed=false with Overridden=true means a conflict was found but policy
// permits it; the violation has been logged. Callers must treat the two
// outcomes differently.
type SegregationResult struct {
	Allowed          bool        `json:"allowed"`
	Overridden       bool        `json:"overridden"`
	ConflictingEntry *AuditEntry `json:"conflicting_entry,omitempty"`
}

// MatchVariance is one discrepancy found by a three-way match
type MatchVariance struct {
	Field       string          `json:"field"`
	POValue     decimal.Decimal `json:"po_value"`
	ActualValue decimal.Decimal `json:"actual_value"`
	VariancePct decimal.Decimal `json:"variance_pct"`
}

// ThreeWayMatchResult reports the comparison of PO, GRN and invoice.
// Variances are advisory data, never an error.
type ThreeWayMatchResult struct {
	Matched          bool            `json:"matched"`
	Variances        []MatchVariance `json:"variances"`
	TolerancePercent decimal.Decimal `json:"tolerance_percent"`
}

// MatchDocuments carries the three documents of a three-way match
type MatchDocuments struct {
	POQuantity      decimal.Decimal `json:"po_quantity"`
	POAmount        decimal.Decimal `json:"po_amount"`
	GRNQuantity     decimal.Decimal `json:"grn_quantity"`
	InvoiceAmount   decimal.Decimal `json:"invoice_amount"`
}

// BudgetSnapshot is a derived, non-persisted view of a budget line.
// Version supports optimistic concurrency on commit.
type BudgetSnapshot struct {
	BudgetCode       string          `json:"budget_code"`
	FiscalYear       string          `json:"fiscal_year"`
	Allocated        decimal.Decimal `json:"allocated"`
	Committed        decimal.Decimal `json:"committed"`
	Spent            decimal.Decimal `json:"spent"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Version          int64           `json:"version"`
}

// BudgetAvailabilityResult reports whether a budget line can absorb a
// requested amount. Missing lines and insufficiency are data, not errors.
type BudgetAvailabilityResult struct {
	Available  bool             `json:"available"`
	Sufficient bool             `json:"sufficient"`
	Snapshot   *BudgetSnapshot  `json:"snapshot,omitempty"`
	Requested  decimal.Decimal  `json:"requested"`
	Reason     string           `json:"reason,omitempty"`
}

// ApprovalRequirement is the ordered set of approval levels an amount needs
type ApprovalRequirement struct {
	Amount decimal.Decimal `json:"amount"`
	Levels []ApprovalLevel `json:"levels"`
}

// DateValidation reports the backdating check for a document date
type DateValidation struct {
	Date    time.Time `json:"date"`
	Allowed bool      `json:"allowed"`
	Reason  string    `json:"reason,omitempty"`
}
