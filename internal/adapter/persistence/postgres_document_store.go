package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/ports"
)

// PostgresDocumentStore implements DocumentStore using PostgreSQL. All
// workflow-bearing documents live in one generic documents table keyed by
// (entity_type, entity_id); their business payload is owned elsewhere.
type PostgresDocumentStore struct {
	db *sql.DB
}

// NewPostgresDocumentStore creates a new PostgreSQL document store
func NewPostgresDocumentStore(db *sql.DB) ports.DocumentStore {
	return &PostgresDocumentStore{db: db}
}

// FindDocument retrieves a document's identity and current status
func (s *PostgresDocumentStore) FindDocument(ctx context.Context, entityType, entityID string) (*domain.WorkflowDocument, error) {
	query := `
		SELECT entity_id, entity_type, status
		FROM documents
		WHERE entity_type = $1 AND entity_id = $2
	`

	var doc domain.WorkflowDocument

	err := s.db.QueryRowContext(ctx, query, entityType, entityID).Scan(
		&doc.ID,
		&doc.EntityType,
		&doc.State,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	return &doc, nil
}

// ApplyTransition updates the document's status and appends the
// state-transition audit entry in one transaction. The row is locked for
// the duration so concurrent transitions on the same document serialize.
func (s *PostgresDocumentStore) ApplyTransition(ctx context.Context, doc domain.Document, to domain.State, entry *domain.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transition transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	lockQuery := `SELECT status FROM documents WHERE entity_type = $1 AND entity_id = $2 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lockQuery, doc.DocumentType(), doc.DocumentID()).Scan(&current); err != nil {
		return fmt.Errorf("failed to lock document: %w", err)
	}

	updateQuery := `
		UPDATE documents
		SET status = $1, updated_at = NOW()
		WHERE entity_type = $2 AND entity_id = $3
	`
	if _, err := tx.ExecContext(ctx, updateQuery, string(to), doc.DocumentType(), doc.DocumentID()); err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

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

	auditQuery := `
		INSERT INTO audit_entries (id, actor_id, actor_name, action, entity_type, entity_id, old_values, new_values, justification, context, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := tx.ExecContext(ctx, auditQuery,
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
	); err != nil {
		return fmt.Errorf("failed to append transition audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}

	return nil
}
