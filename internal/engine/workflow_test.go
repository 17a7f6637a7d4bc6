package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zabuni/zabuni/internal/domain"
)

func newWorkflowFixture(t *testing.T) (*WorkflowEngine, *fakeDocumentStore, *memAuditRepo) {
	audit := &memAuditRepo{}
	store := newFakeDocumentStore(audit)
	ledger := NewAuditLedger(audit, testAuditConfig(), testLogger())

	engine, err := NewWorkflowEngine(store, ledger, testLogger())
	require.NoError(t, err)

	return engine, store, audit
}

func TestWorkflowEngine_CanTransition(t *testing.T) {
	engine, _, _ := newWorkflowFixture(t)

	tests := []struct {
		name     string
		workflow domain.Workflow
		from     domain.State
		to       domain.State
		want     bool
	}{
		{"requisition draft to pending", domain.WorkflowRequisition, domain.StateDraft, domain.StatePendingHOD, true},
		{"requisition draft straight to approved", domain.WorkflowRequisition, domain.StateDraft, domain.StateApproved, false},
		{"requisition rejected back to draft", domain.WorkflowRequisition, domain.StateRejected, domain.StateDraft, true},
		{"terminal state has no exits", domain.WorkflowRequisition, domain.StateCancelled, domain.StateDraft, false},
		{"unknown from state is false not error", domain.WorkflowRequisition, domain.State("LIMBO"), domain.StateDraft, false},
		{"payment authorised to paid", domain.WorkflowPayment, domain.StateAuthorised, domain.StatePaid, true},
		{"grn received to accepted skips inspection", domain.WorkflowGRN, domain.StateReceived, domain.StateAccepted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.CanTransition(tt.workflow, tt.from, tt.to)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWorkflowEngine_CanTransitionIsPure(t *testing.T) {
	engine, _, _ := newWorkflowFixture(t)

	first, err := engine.CanTransition(domain.WorkflowPayment, domain.StateMatched, domain.StateAuthorised)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		again, err := engine.CanTransition(domain.WorkflowPayment, domain.StateMatched, domain.StateAuthorised)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestWorkflowEngine_UnknownWorkflow(t *testing.T) {
	engine, _, _ := newWorkflowFixture(t)

	_, err := engine.CanTransition(domain.Workflow("leave_request"), domain.StateDraft, domain.StateApproved)
	assert.True(t, domain.HasCode(err, domain.ErrCodeUnknownWorkflow))

	_, err = engine.InitialState(domain.Workflow("leave_request"))
	assert.True(t, domain.HasCode(err, domain.ErrCodeUnknownWorkflow))

	_, err = engine.AvailableTransitions(domain.Workflow("leave_request"), domain.StateDraft)
	assert.True(t, domain.HasCode(err, domain.ErrCodeUnknownWorkflow))
}

func TestWorkflowEngine_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("success mutates status and writes one audit entry", func(t *testing.T) {
		engine, store, audit := newWorkflowFixture(t)
		doc := &domain.WorkflowDocument{ID: "req-1", EntityType: "requisition", State: domain.StateDraft}
		store.docs["requisition|req-1"] = doc

		err := engine.Transition(ctx, testActor(), doc, domain.WorkflowRequisition, domain.StatePendingHOD, "routine purchase", nil)

		require.NoError(t, err)
		assert.Equal(t, domain.StatePendingHOD, doc.Status())
		assert.Equal(t, 1, store.applied)
		require.Equal(t, 1, audit.countByAction(domain.AuditActionStateTransition))

		entry := audit.entries[0]
		assert.Equal(t, "req-1", entry.EntityID)
		assert.Equal(t, map[string]interface{}{"status": "DRAFT"}, entry.OldValues)
		assert.Equal(t, map[string]interface{}{"status": "PENDING_HOD_APPROVAL"}, entry.NewValues)
		assert.Equal(t, "requisition", entry.Metadata["workflow"])
		assert.Equal(t, "routine purchase", entry.Justification)
	})

	t.Run("invalid transition leaves status and writes no transition entry", func(t *testing.T) {
		engine, store, audit := newWorkflowFixture(t)
		doc := &domain.WorkflowDocument{ID: "req-2", EntityType: "requisition", State: domain.StateDraft}
		store.docs["requisition|req-2"] = doc

		err := engine.Transition(ctx, testActor(), doc, domain.WorkflowRequisition, domain.StateApproved, "", nil)

		assert.True(t, domain.HasCode(err, domain.ErrCodeInvalidTransition))
		assert.Equal(t, domain.StateDraft, doc.Status())
		assert.Equal(t, 0, store.applied)
		assert.Equal(t, 0, audit.countByAction(domain.AuditActionStateTransition))
		// the rejection itself is on the compliance trail
		assert.Equal(t, 1, audit.countByAction(domain.AuditActionComplianceEvent))
	})

	t.Run("store failure leaves status unchanged", func(t *testing.T) {
		engine, store, audit := newWorkflowFixture(t)
		doc := &domain.WorkflowDocument{ID: "req-3", EntityType: "requisition", State: domain.StateDraft}
		store.docs["requisition|req-3"] = doc
		store.failNextTxn = true

		err := engine.Transition(ctx, testActor(), doc, domain.WorkflowRequisition, domain.StatePendingHOD, "", nil)

		assert.True(t, domain.HasCode(err, domain.ErrCodeStorageFailure))
		assert.Equal(t, domain.StateDraft, doc.Status())
		assert.Equal(t, 0, audit.countByAction(domain.AuditActionStateTransition))
	})
}

func TestWorkflowEngine_ReadSurface(t *testing.T) {
	engine, _, _ := newWorkflowFixture(t)

	t.Run("initial states", func(t *testing.T) {
		tests := map[domain.Workflow]domain.State{
			domain.WorkflowRequisition:        domain.StateDraft,
			domain.WorkflowPurchaseOrder:      domain.StateDraft,
			domain.WorkflowGRN:                domain.StateReceived,
			domain.WorkflowPayment:            domain.StatePendingMatch,
			domain.WorkflowProcurementProcess: domain.StateSourcing,
		}

		for wf, want := range tests {
			got, err := engine.InitialState(wf)
			require.NoError(t, err)
			assert.Equal(t, want, got, "workflow %s", wf)
		}
	})

	t.Run("available transitions", func(t *testing.T) {
		got, err := engine.AvailableTransitions(domain.WorkflowPayment, domain.StateMatched)
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.State{domain.StateAuthorised, domain.StateOnHold}, got)

		empty, err := engine.AvailableTransitions(domain.WorkflowPayment, domain.State("LIMBO"))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("terminal states", func(t *testing.T) {
		terminal, err := engine.IsTerminalState(domain.WorkflowPayment, domain.StatePaid)
		require.NoError(t, err)
		assert.True(t, terminal)

		nonTerminal, err := engine.IsTerminalState(domain.WorkflowPayment, domain.StateMatched)
		require.NoError(t, err)
		assert.False(t, nonTerminal)

		_, err = engine.IsTerminalState(domain.WorkflowPayment, domain.State("LIMBO"))
		assert.True(t, domain.HasCode(err, domain.ErrCodeUnknownState))
	})

	t.Run("workflow path is display only", func(t *testing.T) {
		path, err := engine.WorkflowPath(domain.WorkflowGRN)
		require.NoError(t, err)
		assert.Equal(t, []domain.State{domain.StateReceived, domain.StateInspected, domain.StateAccepted}, path)
	})

	t.Run("every non-terminal state can reach a terminal state", func(t *testing.T) {
		for wf, def := range workflowDefinitions {
			for state := range def.transitions {
				visited := map[domain.State]bool{}
				assert.True(t, reachesTerminal(def.transitions, state, visited), "workflow %s state %s is a dead loop", wf, state)
			}
		}
	})
}

func reachesTerminal(table transitionTable, from domain.State, visited map[domain.State]bool) bool {
	if visited[from] {
		return false
	}
	visited[from] = true

	targets := table[from]
	if len(targets) == 0 {
		return true
	}
	for _, next := range targets {
		if reachesTerminal(table, next, visited) {
			return true
		}
	}
	return false
}
