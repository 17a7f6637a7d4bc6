package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/ports"
)

// transitionTable maps each state of one workflow to its allowed next
// states. Terminal states map to an empty list, explicitly.
type transitionTable map[domain.State][]domain.State

// workflowDefinition is the full static definition of one workflow
type workflowDefinition struct {
	initial     domain.State
	transitions transitionTable
	happyPath   []domain.State
}

// workflowDefinitions is the transition data for every supported workflow.
// It is data, not code: the engine validates it once at construction.
var workflowDefinitions = map[domain.Workflow]workflowDefinition{
	domain.WorkflowRequisition: {
		initial: domain.StateDraft,
		transitions: transitionTable{
			domain.StateDraft:            {domain.StatePendingHOD, domain.StateCancelled},
			domain.StatePendingHOD:       {domain.StatePendingPrincipal, domain.StateApproved, domain.StateRejected},
			domain.StatePendingPrincipal: {domain.StatePendingBoard, domain.StateApproved, domain.StateRejected},
			domain.StatePendingBoard:     {domain.StateApproved, domain.StateRejected},
			domain.StateApproved:         {domain.StateConvertedToPO, domain.StateCancelled},
			domain.StateRejected:         {domain.StateDraft},
			domain.StateConvertedToPO:    {},
			domain.StateCancelled:        {},
		},
		happyPath: []domain.State{
			domain.StateDraft, domain.StatePendingHOD, domain.StatePendingPrincipal,
			domain.StatePendingBoard, domain.StateApproved, domain.StateConvertedToPO,
		},
	},
	domain.WorkflowPurchaseOrder: {
		initial: domain.StateDraft,
		transitions: transitionTable{
			domain.StateDraft:             {domain.StateIssued, domain.StateCancelled},
			domain.StateIssued:            {domain.StateAcknowledged, domain.StateCancelled},
			domain.StateAcknowledged:      {domain.StatePartiallyReceived, domain.StateFullyReceived},
			domain.StatePartiallyReceived: {domain.StateFullyReceived},
			domain.StateFullyReceived:     {domain.StateClosed},
			domain.StateClosed:            {},
			domain.StateCancelled:         {},
		},
		happyPath: []domain.State{
			domain.StateDraft, domain.StateIssued, domain.StateAcknowledged,
			domain.StatePartiallyReceived, domain.StateFullyReceived, domain.StateClosed,
		},
	},
	domain.WorkflowGRN: {
		initial: domain.StateReceived,
		transitions: transitionTable{
			domain.StateReceived:  {domain.StateInspected},
			domain.StateInspected: {domain.StateAccepted, domain.StateDisputed},
			domain.StateDisputed:  {domain.StateAccepted, domain.StateReturned},
			domain.StateAccepted:  {},
			domain.StateReturned:  {},
		},
		happyPath: []domain.State{
			domain.StateReceived, domain.StateInspected, domain.StateAccepted,
		},
	},
	domain.WorkflowPayment: {
		initial: domain.StatePendingMatch,
		transitions: transitionTable{
			domain.StatePendingMatch: {domain.StateMatched, domain.StateOnHold},
			domain.StateMatched:      {domain.StateAuthorised, domain.StateOnHold},
			domain.StateAuthorised:   {domain.StatePaid, domain.StateVoided},
			domain.StateOnHold:       {domain.StatePendingMatch, domain.StateVoided},
			domain.StatePaid:         {},
			domain.StateVoided:       {},
		},
		happyPath: []domain.State{
			domain.StatePendingMatch, domain.StateMatched, domain.StateAuthorised, domain.StatePaid,
		},
	},
	domain.WorkflowProcurementProcess: {
		initial: domain.StateSourcing,
		transitions: transitionTable{
			domain.StateSourcing:         {domain.StateQuotation, domain.StateTender, domain.StateProcessCancelled},
			domain.StateQuotation:        {domain.StateEvaluation, domain.StateProcessCancelled},
			domain.StateTender:           {domain.StateEvaluation, domain.StateProcessCancelled},
			domain.StateEvaluation:       {domain.StateAwarded, domain.StateProcessCancelled},
			domain.StateAwarded:          {},
			domain.StateProcessCancelled: {},
		},
		happyPath: []domain.State{
			domain.StateSourcing, domain.StateTender, domain.StateEvaluation, domain.StateAwarded,
		},
	},
}

// WorkflowEngine is the generic finite-state machine for procurement
// documents. Transition tables are static per workflow; the engine's only
// mutating operation is Transition.
type WorkflowEngine struct {
	store  ports.DocumentStore
	ledger *AuditLedger
	logger *logrus.Logger
}

// NewWorkflowEngine creates a workflow engine, validating the transition
// tables once: every referenced target state must itself be a key, the
// initial state must be a key, and every non-terminal state must have at
// least one outgoing transition (terminal states map to an empty list).
func NewWorkflowEngine(store ports.DocumentStore, ledger *AuditLedger, logger *logrus.Logger) (*WorkflowEngine, error) {
	for name, def := range workflowDefinitions {
		if _, ok := def.transitions[def.initial]; !ok {
			return nil, fmt.Errorf("workflow %s: initial state %s not in transition table", name, def.initial)
		}
		for from, targets := range def.transitions {
			for _, to := range targets {
				if _, ok := def.transitions[to]; !ok {
					return nil, fmt.Errorf("workflow %s: transition %s -> %s references unknown state", name, from, to)
				}
			}
		}
		for _, step := range def.happyPath {
			if _, ok := def.transitions[step]; !ok {
				return nil, fmt.Errorf("workflow %s: happy path references unknown state %s", name, step)
			}
		}
	}

	return &WorkflowEngine{
		store:  store,
		ledger: ledger,
		logger: logger,
	}, nil
}

// CanTransition reports whether from -> to is an allowed transition. It is
// a pure membership check against the static table: an unknown from-state
// is false, not an error. An unknown workflow name is an error.
func (e *WorkflowEngine) CanTransition(workflow domain.Workflow, from, to domain.State) (bool, error) {
	def, ok := workflowDefinitions[workflow]
	if !ok {
		return false, domain.ErrUnknownWorkflow(string(workflow))
	}

	for _, allowed := range def.transitions[from] {
		if allowed == to {
			return true, nil
		}
	}
	return false, nil
}

// Transition moves a document to a new state. On success the document's
// status field is updated and exactly one state-transition audit entry is
// written, both inside one atomic unit of work in the store. A rejected
// transition writes no state-transition entry; the rejection itself is
// recorded as a compliance event before the error is surfaced.
func (e *WorkflowEngine) Transition(ctx context.Context, actor domain.ActorContext, doc domain.Document, workflow domain.Workflow, to domain.State, justification string, metadata map[string]interface{}) error {
	from := doc.Status()

	ok, err := e.CanTransition(workflow, from, to)
	if err != nil {
		return err
	}
	if !ok {
		if _, auditErr := e.ledger.RecordComplianceEvent(ctx, actor, doc.DocumentType(), doc.DocumentID(), "transition_rejected", map[string]interface{}{
			"workflow": string(workflow),
			"from":     string(from),
			"to":       string(to),
		}); auditErr != nil {
			return auditErr
		}
		return domain.ErrInvalidTransition(string(workflow), string(from), string(to))
	}

	entry := domain.NewAuditEntry(actor, domain.AuditActionStateTransition, doc.DocumentType(), doc.DocumentID())
	entry.OldValues = map[string]interface{}{"status": string(from)}
	entry.NewValues = map[string]interface{}{"status": string(to)}
	entry.Justification = justification
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["workflow"] = string(workflow)
	entry.Metadata = metadata

	if err := e.store.ApplyTransition(ctx, doc, to, entry); err != nil {
		return domain.ErrStorageFailure("apply transition", err)
	}

	doc.SetStatus(to)

	e.logger.WithFields(logrus.Fields{
		"workflow":    string(workflow),
		"entity_type": doc.DocumentType(),
		"entity_id":   doc.DocumentID(),
		"from":        string(from),
		"to":          string(to),
		"actor_id":    actor.ID,
	}).Info("Workflow transition applied")

	return nil
}

// AvailableTransitions returns the states reachable from the given state.
// An unknown from-state yields an empty list.
func (e *WorkflowEngine) AvailableTransitions(workflow domain.Workflow, from domain.State) ([]domain.State, error) {
	def, ok := workflowDefinitions[workflow]
	if !ok {
		return nil, domain.ErrUnknownWorkflow(string(workflow))
	}

	targets := def.transitions[from]
	out := make([]domain.State, len(targets))
	copy(out, targets)
	return out, nil
}

// InitialState returns the state a new document of this workflow starts in
func (e *WorkflowEngine) InitialState(workflow domain.Workflow) (domain.State, error) {
	def, ok := workflowDefinitions[workflow]
	if !ok {
		return "", domain.ErrUnknownWorkflow(string(workflow))
	}
	return def.initial, nil
}

// IsTerminalState reports whether a state has no outgoing transitions
func (e *WorkflowEngine) IsTerminalState(workflow domain.Workflow, state domain.State) (bool, error) {
	def, ok := workflowDefinitions[workflow]
	if !ok {
		return false, domain.ErrUnknownWorkflow(string(workflow))
	}

	targets, known := def.transitions[state]
	if !known {
		return false, domain.ErrUnknownState(string(workflow), string(state))
	}
	return len(targets) == 0, nil
}

// WorkflowPath returns the canonical happy-path ordering of states for
// display. It is not used for validation.
func (e *WorkflowEngine) WorkflowPath(workflow domain.Workflow) ([]domain.State, error) {
	def, ok := workflowDefinitions[workflow]
	if !ok {
		return nil, domain.ErrUnknownWorkflow(string(workflow))
	}

	path := make([]domain.State, len(def.happyPath))
	copy(path, def.happyPath)
	return path, nil
}
