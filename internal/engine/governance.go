package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zabuni/zabuni/internal/config"
	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/ports"
)

// GovernanceEngine evaluates statutory procurement controls: segregation
// of duties, three-way matching, tiered sourcing bands, approval
// thresholds, budget availability and justification rules.
//
// Advisory outcomes (variances, insufficiency, allowed overrides) come
// back as structured results; hard stops come back as coded errors. Both
// kinds are written to the audit ledger so the compliance trail is
// complete even for rejected actions.
type GovernanceEngine struct {
	ledger  *AuditLedger
	budgets ports.BudgetReader
	cfg     config.GovernanceConfig
	logger  *logrus.Logger
}

// NewGovernanceEngine creates a governance rules engine, validating the
// cash-band tiers once at construction so band lookups can assume a
// non-empty, contiguous table
func NewGovernanceEngine(ledger *AuditLedger, budgets ports.BudgetReader, cfg config.GovernanceConfig, logger *logrus.Logger) (*GovernanceEngine, error) {
	if err := cfg.ValidateCashBands(); err != nil {
		return nil, fmt.Errorf("invalid cash bands: %w", err)
	}

	return &GovernanceEngine{
		ledger:  ledger,
		budgets: budgets,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// EnforceSegregationOfDuties checks whether the actor previously performed
// any of the forbidden actions on the entity, by scanning its entire audit
// trail; a conflict never ages out of view behind a display limit.
//
// No conflict: returns Allowed=true. Conflict with overrides disabled:
// records a compliance event and fails with SegregationViolation. Conflict
// with overrides enabled: records a policy violation and returns
// Allowed=false, Overridden=true — a distinct outcome the caller must
// handle, not an error.
func (e *GovernanceEngine) EnforceSegregationOfDuties(ctx context.Context, actor domain.ActorContext, action string, entityType, entityID string, forbiddenPriorActions []domain.AuditAction) (domain.SegregationResult, error) {
	trail, err := e.ledger.FullTrailFor(ctx, entityType, entityID)
	if err != nil {
		return domain.SegregationResult{}, err
	}

	var conflict *domain.AuditEntry
	for _, entry := range trail {
		if entry.ActorID != actor.ID {
			continue
		}
		for _, forbidden := range forbiddenPriorActions {
			if entry.Action == forbidden {
				conflict = entry
				break
			}
		}
		if conflict != nil {
			break
		}
	}

	if conflict == nil {
		return domain.SegregationResult{Allowed: true}, nil
	}

	if e.cfg.AllowSegregationOverride {
		if _, err := e.ledger.RecordPolicyViolation(ctx, actor, entityType, entityID, "segregation_of_duties", map[string]interface{}{
			"action":             action,
			"conflicting_action": string(conflict.Action),
			"conflicting_entry":  conflict.ID,
			"overridden":         true,
		}); err != nil {
			return domain.SegregationResult{}, err
		}

		e.logger.WithFields(logrus.Fields{
			"actor_id":    actor.ID,
			"entity_type": entityType,
			"entity_id":   entityID,
			"action":      action,
		}).Warn("Segregation of duties conflict overridden by policy")

		return domain.SegregationResult{Allowed: false, Overridden: true, ConflictingEntry: conflict}, nil
	}

	if _, err := e.ledger.RecordComplianceEvent(ctx, actor, entityType, entityID, "segregation_violation_blocked", map[string]interface{}{
		"action":             action,
		"conflicting_action": string(conflict.Action),
		"conflicting_entry":  conflict.ID,
	}); err != nil {
		return domain.SegregationResult{}, err
	}

	return domain.SegregationResult{Allowed: false, ConflictingEntry: conflict}, domain.ErrSegregationViolation(actor.ID, action)
}

// ValidateRequesterNotApprover fails when the same actor both requested
// and would approve a document
func (e *GovernanceEngine) ValidateRequesterNotApprover(requesterID, approverID string) error {
	if requesterID == approverID {
		return domain.ErrRoleConflict("requester", "approver")
	}
	return nil
}

// ValidateApproverNotBuyer fails when the approving actor would also buy
func (e *GovernanceEngine) ValidateApproverNotBuyer(approverID, buyerID string) error {
	if approverID == buyerID {
		return domain.ErrRoleConflict("approver", "buyer")
	}
	return nil
}

// ValidateBuyerNotReceiver fails when the buying actor would also receive
// the goods
func (e *GovernanceEngine) ValidateBuyerNotReceiver(buyerID, receiverID string) error {
	if buyerID == receiverID {
		return domain.ErrRoleConflict("buyer", "receiver")
	}
	return nil
}

// ValidateThreeWayMatch compares PO, GRN and invoice figures within the
// configured tolerance. Variances are advisory data, never an error. When
// matching is disabled by configuration the result is always matched.
func (e *GovernanceEngine) ValidateThreeWayMatch(docs domain.MatchDocuments) domain.ThreeWayMatchResult {
	tolerance := e.cfg.MatchTolerancePercent

	result := domain.ThreeWayMatchResult{
		Matched:          true,
		Variances:        []domain.MatchVariance{},
		TolerancePercent: tolerance,
	}

	if !e.cfg.ThreeWayMatchEnabled {
		return result
	}

	if !docs.GRNQuantity.Equal(docs.POQuantity) && docs.POQuantity.IsPositive() {
		pct := docs.GRNQuantity.Sub(docs.POQuantity).Abs().Div(docs.POQuantity).Mul(hundred)
		if pct.GreaterThan(tolerance) {
			result.Variances = append(result.Variances, domain.MatchVariance{
				Field:       "quantity",
				POValue:     docs.POQuantity,
				ActualValue: docs.GRNQuantity,
				VariancePct: pct.Round(2),
			})
		}
	}

	if docs.POAmount.IsPositive() {
		pct := docs.InvoiceAmount.Sub(docs.POAmount).Abs().Div(docs.POAmount).Mul(hundred)
		if pct.GreaterThan(tolerance) {
			result.Variances = append(result.Variances, domain.MatchVariance{
				Field:       "amount",
				POValue:     docs.POAmount,
				ActualValue: docs.InvoiceAmount,
				VariancePct: pct.Round(2),
			})
		}
	}

	result.Matched = len(result.Variances) == 0
	return result
}

// DetermineCashBand returns the sourcing tier for an amount: an ordered
// scan of the configured tiers by ascending max, falling back to the
// open-ended top tier
func (e *GovernanceEngine) DetermineCashBand(amount decimal.Decimal) domain.CashBand {
	for _, band := range e.cfg.CashBands {
		if band.Max != nil && amount.LessThanOrEqual(*band.Max) {
			return band
		}
	}
	return e.cfg.CashBands[len(e.cfg.CashBands)-1]
}

// RequiredSourcingMethod returns the procurement method the amount's band
// mandates
func (e *GovernanceEngine) RequiredSourcingMethod(amount decimal.Decimal) domain.SourcingMethod {
	return e.DetermineCashBand(amount).Method
}

// MinimumQuotes returns the quote count the amount's band mandates
func (e *GovernanceEngine) MinimumQuotes(amount decimal.Decimal) int {
	return e.DetermineCashBand(amount).MinQuotes
}

// RequiredApprovers returns the approver roles the amount's band mandates
func (e *GovernanceEngine) RequiredApprovers(amount decimal.Decimal) []domain.ApprovalLevel {
	band := e.DetermineCashBand(amount)
	out := make([]domain.ApprovalLevel, len(band.Approvers))
	copy(out, band.Approvers)
	return out
}

// DetermineApprovalLevels returns the ordered, cumulative set of approval
// levels an amount requires: HOD always, Principal from its threshold,
// Board from its threshold
func (e *GovernanceEngine) DetermineApprovalLevels(amount decimal.Decimal) domain.ApprovalRequirement {
	levels := []domain.ApprovalLevel{domain.ApprovalHOD}

	if amount.GreaterThanOrEqual(e.cfg.PrincipalThreshold) {
		levels = append(levels, domain.ApprovalPrincipal)
	}
	if amount.GreaterThanOrEqual(e.cfg.BoardThreshold) {
		levels = append(levels, domain.ApprovalBoard)
	}

	return domain.ApprovalRequirement{Amount: amount, Levels: levels}
}

// RequiresTender reports whether the amount is at or above the tender
// threshold
func (e *GovernanceEngine) RequiresTender(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(e.cfg.TenderThreshold)
}

// RequiresMultipleQuotations reports whether the amount requires the
// default quote count rather than a single source
func (e *GovernanceEngine) RequiresMultipleQuotations(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(e.cfg.SingleSourceThreshold)
}

// DefaultQuoteCount returns the configured quote count for multi-quote
// sourcing
func (e *GovernanceEngine) DefaultQuoteCount() int {
	return e.cfg.DefaultQuoteCount
}

// ValidateBudgetAvailability checks whether the budget line for
// (budgetCode, fiscalYear) can absorb the requested amount. A missing line
// reports Available=false, Sufficient=false with a reason; it never fails.
// The overrun-allowed flag forces Sufficient unconditionally.
func (e *GovernanceEngine) ValidateBudgetAvailability(ctx context.Context, budgetCode, fiscalYear string, requested decimal.Decimal) (domain.BudgetAvailabilityResult, error) {
	snapshot, err := e.budgets.Snapshot(ctx, budgetCode, fiscalYear)
	if err != nil {
		return domain.BudgetAvailabilityResult{}, domain.ErrStorageFailure("budget snapshot", err)
	}

	if snapshot == nil {
		return domain.BudgetAvailabilityResult{
			Available:  false,
			Sufficient: false,
			Requested:  requested,
			Reason:     fmt.Sprintf("no budget line for code %s in fiscal year %s", budgetCode, fiscalYear),
		}, nil
	}

	snapshot.AvailableBalance = snapshot.Allocated.Sub(snapshot.Committed).Sub(snapshot.Spent)

	result := domain.BudgetAvailabilityResult{
		Available:  true,
		Sufficient: snapshot.AvailableBalance.GreaterThanOrEqual(requested),
		Snapshot:   snapshot,
		Requested:  requested,
	}

	if e.cfg.AllowBudgetOverrun {
		result.Sufficient = true
	}

	if !result.Sufficient {
		result.Reason = fmt.Sprintf("available balance %s is below requested %s", snapshot.AvailableBalance, requested)
	}

	return result, nil
}

// CommitBudgetImpact records the requested amount against the budget line
// using the snapshot's version for optimistic concurrency. A concurrent
// change to the line fails with BudgetConflict so the caller can re-check
// availability and retry.
func (e *GovernanceEngine) CommitBudgetImpact(ctx context.Context, actor domain.ActorContext, snapshot *domain.BudgetSnapshot, amount decimal.Decimal) error {
	err := e.budgets.CommitImpact(ctx, snapshot.BudgetCode, snapshot.FiscalYear, amount, snapshot.Version)
	if err != nil {
		if domain.HasCode(err, domain.ErrCodeBudgetConflict) {
			return err
		}
		return domain.ErrStorageFailure("budget commit", err)
	}

	_, err = e.ledger.RecordComplianceEvent(ctx, actor, "budget_line", snapshot.BudgetCode, "budget_committed", map[string]interface{}{
		"fiscal_year": snapshot.FiscalYear,
		"amount":      amount.String(),
	})
	return err
}

// ValidateSingleSource checks the justification rules for single-source
// procurement: above the configured threshold a non-empty justification is
// mandatory
func (e *GovernanceEngine) ValidateSingleSource(amount decimal.Decimal, justification string) error {
	if amount.GreaterThanOrEqual(e.cfg.SingleSourceThreshold) && strings.TrimSpace(justification) == "" {
		return domain.ErrJustificationRequired(fmt.Sprintf("single-source procurement of %s is at or above the %s threshold", amount, e.cfg.SingleSourceThreshold))
	}
	return nil
}

// ValidateEmergencyProcurement checks emergency procurement rules: the
// amount is capped at the configured limit and a non-empty justification
// is required unconditionally
func (e *GovernanceEngine) ValidateEmergencyProcurement(amount decimal.Decimal, justification string) error {
	if strings.TrimSpace(justification) == "" {
		return domain.ErrJustificationRequired("emergency procurement always requires justification")
	}
	if amount.GreaterThan(e.cfg.EmergencyLimit) {
		return domain.ErrEmergencyLimitExceeded(fmt.Sprintf("amount %s exceeds the emergency limit %s", amount, e.cfg.EmergencyLimit))
	}
	return nil
}

// ValidateDocumentDate applies the backdating policy: without the
// allow-backdating flag any date before today fails; with it, dates
// earlier than today minus the configured window still fail
func (e *GovernanceEngine) ValidateDocumentDate(date, now time.Time) domain.DateValidation {
	today := now.Truncate(24 * time.Hour)
	day := date.Truncate(24 * time.Hour)

	if !day.Before(today) {
		return domain.DateValidation{Date: date, Allowed: true}
	}

	if !e.cfg.AllowBackdating {
		return domain.DateValidation{
			Date:    date,
			Allowed: false,
			Reason:  "backdating is not permitted",
		}
	}

	earliest := today.AddDate(0, 0, -e.cfg.MaxBackdateDays)
	if day.Before(earliest) {
		return domain.DateValidation{
			Date:    date,
			Allowed: false,
			Reason:  fmt.Sprintf("date is more than %d days in the past", e.cfg.MaxBackdateDays),
		}
	}

	return domain.DateValidation{Date: date, Allowed: true}
}

// EnforceDocumentDate is the error-returning form of ValidateDocumentDate
// for callers treating backdating as a hard stop
func (e *GovernanceEngine) EnforceDocumentDate(date, now time.Time) error {
	if v := e.ValidateDocumentDate(date, now); !v.Allowed {
		return domain.ErrBackdatingNotAllowed(v.Reason)
	}
	return nil
}
