package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies what kind of action an audit entry records
type AuditAction string

const (
	AuditActionCreate          AuditAction = "CREATE"
	AuditActionUpdate          AuditAction = "UPDATE"
	AuditActionDelete          AuditAction = "DELETE"
	AuditActionStateTransition AuditAction = "STATE_TRANSITION"
	AuditActionApprove         AuditAction = "APPROVE"
	AuditActionReject          AuditAction = "REJECT"
	AuditActionPolicyViolation AuditAction = "POLICY_VIOLATION"
	AuditActionOverride        AuditAction = "OVERRIDE"
	AuditActionComplianceEvent AuditAction = "COMPLIANCE_EVENT"
	AuditActionException       AuditAction = "EXCEPTION"
)

// RequestMeta carries request-level context for audit enrichment
type RequestMeta struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ActorContext identifies who performed an action. It is threaded explicitly
// through every ledger and governance call; there is no ambient current-user state.
type ActorContext struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Email   string      `json:"email,omitempty"`
	Request RequestMeta `json:"request,omitempty"`
}

// SystemActor is used for actions the system performs without a human actor
var SystemActor = ActorContext{ID: "system", Name: "System"}

// AuditEntry represents one immutable record in the audit ledger.
// Entries are only ever appended; no update or delete path exists.
type AuditEntry struct {
	ID            string                 `json:"id"`
	ActorID       string                 `json:"actor_id,omitempty"`
	ActorName     string                 `json:"actor_name"`
	Action        AuditAction            `json:"action"`
	EntityType    string                 `json:"entity_type"`
	EntityID      string                 `json:"entity_id"`
	OldValues     map[string]interface{} `json:"old_values,omitempty"`
	NewValues     map[string]interface{} `json:"new_values,omitempty"`
	Justification string                 `json:"justification,omitempty"`
	Context       RequestMeta            `json:"context,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewAuditEntry creates an audit entry for the given actor and action
func NewAuditEntry(actor ActorContext, action AuditAction, entityType, entityID string) *AuditEntry {
	return &AuditEntry{
		ID:         uuid.NewString(),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Context:    actor.Request,
		CreatedAt:  time.Now().UTC(),
	}
}
