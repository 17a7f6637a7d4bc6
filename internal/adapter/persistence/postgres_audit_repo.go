package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/ports"
)

// PostgresAuditRepository implements AuditRepository using PostgreSQL.
// It exposes no update or delete path; the audit_entries table is only
// ever appended to (archival moves rows to audit_entries_archive).
type PostgresAuditRepository struct {
	db *sql.DB
}

// NewPostgresAuditRepository creates a new PostgreSQL audit repository
func NewPostgresAuditRepository(db *sql.DB) ports.AuditRepository {
	return &PostgresAuditRepository{db: db}
}

// Append stores a new audit entry
func (r *PostgresAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (id, actor_id, actor_name, action, entity_type, entity_id, old_values, new_values, justification, context, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	oldValues, err := marshalNullable(entry.OldValues)
	if err != nil {
		return fmt.Errorf("failed to marshal old values: %w", err)
	}

	newValues, err := marshalNullable(entry.NewValues)
	if err != nil {
		return fmt.Errorf("failed to marshal new values: %w", err)
	}

	metadata, err := marshalNullable(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	requestCtx, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal request context: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		nullString(entry.ActorID),
		entry.ActorName,
		string(entry.Action),
		entry.EntityType,
		entry.EntityID,
		oldValues,
		newValues,
		nullString(entry.Justification),
		requestCtx,
		metadata,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// TrailFor retrieves entries for an entity, newest first. A non-positive
// limit returns the full trail.
func (r *PostgresAuditRepository) TrailFor(ctx context.Context, entityType, entityID string, limit int) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, actor_id, actor_name, action, entity_type, entity_id, old_values, new_values, justification, context, metadata, created_at
		FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
	`
	args := []interface{}{entityType, entityID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ActivityFor retrieves entries by an actor since a point in time, newest first
func (r *PostgresAuditRepository) ActivityFor(ctx context.Context, actorID string, since time.Time, limit int) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, actor_id, actor_name, action, entity_type, entity_id, old_values, new_values, justification, context, metadata, created_at
		FROM audit_entries
		WHERE actor_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, actorID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query actor activity: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// MoveToArchive moves entries older than cutoff to the archive table and
// deletes them from the primary table inside one transaction
func (r *PostgresAuditRepository) MoveToArchive(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	copyQuery := `
		INSERT INTO audit_entries_archive
		SELECT * FROM audit_entries WHERE created_at < $1
	`
	result, err := tx.ExecContext(ctx, copyQuery, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to copy entries to archive: %w", err)
	}

	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count archived entries: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM audit_entries WHERE created_at < $1`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete archived entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	return moved, nil
}

func scanEntries(rows *sql.Rows) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry

	for rows.Next() {
		var entry domain.AuditEntry
		var actorID, justification sql.NullString
		var oldValues, newValues, metadata, requestCtx []byte

		err := rows.Scan(
			&entry.ID,
			&actorID,
			&entry.ActorName,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&oldValues,
			&newValues,
			&justification,
			&requestCtx,
			&metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.ActorID = actorID.String
		entry.Justification = justification.String

		if err := unmarshalNullable(oldValues, &entry.OldValues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal old values: %w", err)
		}
		if err := unmarshalNullable(newValues, &entry.NewValues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal new values: %w", err)
		}
		if err := unmarshalNullable(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		if len(requestCtx) > 0 {
			if err := json.Unmarshal(requestCtx, &entry.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal request context: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}

	return entries, nil
}

func marshalNullable(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalNullable(data []byte, target *map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
