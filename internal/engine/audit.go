package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zabuni/zabuni/internal/config"
	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/ports"
)

// AuditLedger is the append-only log of actions against entities. Every
// other engine writes through it; entries are never updated or deleted.
type AuditLedger struct {
	repo   ports.AuditRepository
	cfg    config.AuditConfig
	logger *logrus.Logger
}

// NewAuditLedger creates a new audit ledger
func NewAuditLedger(repo ports.AuditRepository, cfg config.AuditConfig, logger *logrus.Logger) *AuditLedger {
	return &AuditLedger{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// RecordParams carries the optional fields of an audit record
type RecordParams struct {
	OldValues     map[string]interface{}
	NewValues     map[string]interface{}
	Justification string
	Metadata      map[string]interface{}
}

// Record appends one entry to the ledger and returns its ID. Storage
// failures are surfaced, never swallowed.
func (l *AuditLedger) Record(ctx context.Context, actor domain.ActorContext, action domain.AuditAction, entityType, entityID string, params RecordParams) (string, error) {
	entry := domain.NewAuditEntry(actor, action, entityType, entityID)
	entry.OldValues = params.OldValues
	entry.NewValues = params.NewValues
	entry.Justification = params.Justification
	entry.Metadata = params.Metadata

	if err := l.repo.Append(ctx, entry); err != nil {
		return "", domain.ErrStorageFailure("audit append", err)
	}

	l.logger.WithFields(logrus.Fields{
		"entry_id":    entry.ID,
		"actor_id":    entry.ActorID,
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
	}).Debug("Audit entry recorded")

	return entry.ID, nil
}

// RecordCreate logs the creation of an entity
func (l *AuditLedger) RecordCreate(ctx context.Context, actor domain.ActorContext, entityType, entityID string, newValues map[string]interface{}) (string, error) {
	return l.Record(ctx, actor, domain.AuditActionCreate, entityType, entityID, RecordParams{NewValues: newValues})
}

// RecordUpdate logs a change to an entity
func (l *AuditLedger) RecordUpdate(ctx context.Context, actor domain.ActorContext, entityType, entityID string, oldValues, newValues map[string]interface{}) (string, error) {
	return l.Record(ctx, actor, domain.AuditActionUpdate, entityType, entityID, RecordParams{OldValues: oldValues, NewValues: newValues})
}

// RecordDelete logs the removal of an entity
func (l *AuditLedger) RecordDelete(ctx context.Context, actor domain.ActorContext, entityType, entityID string, oldValues map[string]interface{}) (string, error) {
	return l.Record(ctx, actor, domain.AuditActionDelete, entityType, entityID, RecordParams{OldValues: oldValues})
}

// RecordStateTransition logs a workflow state change
func (l *AuditLedger) RecordStateTransition(ctx context.Context, actor domain.ActorContext, entityType, entityID string, workflow domain.Workflow, from, to domain.State, justification string, metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["workflow"] = string(workflow)

	return l.Record(ctx, actor, domain.AuditActionStateTransition, entityType, entityID, RecordParams{
		OldValues:     map[string]interface{}{"status": string(from)},
		NewValues:     map[string]interface{}{"status": string(to)},
		Justification: justification,
		Metadata:      metadata,
	})
}

// RecordApproval logs the approval of a document
func (l *AuditLedger) RecordApproval(ctx context.Context, actor domain.ActorContext, entityType, entityID string, level domain.ApprovalLevel, justification string) (string, error) {
	return l.Record(ctx, actor, domain.AuditActionApprove, entityType, entityID, RecordParams{
		Justification: justification,
		Metadata:      map[string]interface{}{"approval_level": string(level)},
	})
}

// RecordRejection logs the rejection of a document
func (l *AuditLedger) RecordRejection(ctx context.Context, actor domain.ActorContext, entityType, entityID string, justification string) (string, error) {
	return l.Record(ctx, actor, domain.AuditActionReject, entityType, entityID, RecordParams{Justification: justification})
}

// RecordPolicyViolation logs a compliance rule that fired
func (l *AuditLedger) RecordPolicyViolation(ctx context.Context, actor domain.ActorContext, entityType, entityID string, rule string, metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["rule"] = rule

	return l.Record(ctx, actor, domain.AuditActionPolicyViolation, entityType, entityID, RecordParams{Metadata: metadata})
}

// RecordOverride logs an allowed override of a compliance rule
func (l *AuditLedger) RecordOverride(ctx context.Context, actor domain.ActorContext, entityType, entityID string, rule, justification string) (string, error) {
	return l.Record(ctx, actor, domain.AuditActionOverride, entityType, entityID, RecordParams{
		Justification: justification,
		Metadata:      map[string]interface{}{"rule": rule},
	})
}

// RecordComplianceEvent logs a compliance decision, including rejections
// of attempted actions, so the trail stays complete
func (l *AuditLedger) RecordComplianceEvent(ctx context.Context, actor domain.ActorContext, entityType, entityID string, event string, metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["event"] = event

	return l.Record(ctx, actor, domain.AuditActionComplianceEvent, entityType, entityID, RecordParams{Metadata: metadata})
}

// RecordException logs an unexpected failure tied to an entity
func (l *AuditLedger) RecordException(ctx context.Context, actor domain.ActorContext, entityType, entityID string, cause error) (string, error) {
	return l.Record(ctx, actor, domain.AuditActionException, entityType, entityID, RecordParams{
		Metadata: map[string]interface{}{"error": cause.Error()},
	})
}

// TrailFor retrieves an entity's audit trail, newest first. A non-positive
// limit falls back to the configured display limit; enforcement paths that
// must see every entry use FullTrailFor instead.
func (l *AuditLedger) TrailFor(ctx context.Context, entityType, entityID string, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 {
		limit = l.cfg.DefaultTrailLimit
	}

	entries, err := l.repo.TrailFor(ctx, entityType, entityID, limit)
	if err != nil {
		return nil, domain.ErrStorageFailure("audit trail", err)
	}

	return entries, nil
}

// FullTrailFor retrieves an entity's entire audit trail, newest first,
// with no limit applied. Compliance checks scan through it so a
// conflicting entry can never age out of view.
func (l *AuditLedger) FullTrailFor(ctx context.Context, entityType, entityID string) ([]*domain.AuditEntry, error) {
	entries, err := l.repo.TrailFor(ctx, entityType, entityID, 0)
	if err != nil {
		return nil, domain.ErrStorageFailure("audit trail", err)
	}

	return entries, nil
}

// ActivityFor retrieves an actor's recent activity, newest first
func (l *AuditLedger) ActivityFor(ctx context.Context, actorID string, sinceDays, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 {
		limit = l.cfg.DefaultTrailLimit
	}
	if sinceDays <= 0 {
		sinceDays = 30
	}

	since := time.Now().UTC().AddDate(0, 0, -sinceDays)

	entries, err := l.repo.ActivityFor(ctx, actorID, since, limit)
	if err != nil {
		return nil, domain.ErrStorageFailure("audit activity", err)
	}

	return entries, nil
}

// ArchiveOlderThan moves entries older than cutoff to the archive sink and
// removes them from the primary sink. When archival is disabled by
// configuration it is a no-op returning zero.
func (l *AuditLedger) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if !l.cfg.ArchiveEnabled {
		return 0, nil
	}

	moved, err := l.repo.MoveToArchive(ctx, cutoff)
	if err != nil {
		return 0, domain.ErrStorageFailure("audit archive", err)
	}

	if moved > 0 {
		l.logger.WithFields(logrus.Fields{
			"moved":  moved,
			"cutoff": cutoff.Format(time.RFC3339),
		}).Info(fmt.Sprintf("Archived %d audit entries", moved))
	}

	return moved, nil
}
