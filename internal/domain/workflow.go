package domain

// Workflow names a document type's state machine
type Workflow string

const (
	WorkflowRequisition        Workflow = "requisition"
	WorkflowPurchaseOrder      Workflow = "purchase_order"
	WorkflowGRN                Workflow = "grn"
	WorkflowPayment            Workflow = "payment"
	WorkflowProcurementProcess Workflow = "procurement_process"
)

// State is one state of a workflow's state machine
type State string

// Requisition states
const (
	StateDraft             State = "DRAFT"
	StatePendingHOD        State = "PENDING_HOD_APPROVAL"
	StatePendingPrincipal  State = "PENDING_PRINCIPAL_APPROVAL"
	StatePendingBoard      State = "PENDING_BOARD_APPROVAL"
	StateApproved          State = "APPROVED"
	StateRejected          State = "REJECTED"
	StateConvertedToPO     State = "CONVERTED_TO_PO"
	StateCancelled         State = "CANCELLED"
)

// Purchase order states
const (
	StateIssued            State = "ISSUED"
	StateAcknowledged      State = "ACKNOWLEDGED"
	StatePartiallyReceived State = "PARTIALLY_RECEIVED"
	StateFullyReceived     State = "FULLY_RECEIVED"
	StateClosed            State = "CLOSED"
)

// GRN states
const (
	StateReceived  State = "RECEIVED"
	StateInspected State = "INSPECTED"
	StateAccepted  State = "ACCEPTED"
	StateDisputed  State = "DISPUTED"
	StateReturned  State = "RETURNED"
)

// Payment states
const (
	StatePendingMatch  State = "PENDING_MATCH"
	StateMatched       State = "MATCHED"
	StateAuthorised    State = "AUTHORISED"
	StatePaid          State = "PAID"
	StateOnHold        State = "ON_HOLD"
	StateVoided        State = "VOIDED"
)

// Procurement process states
const (
	StateSourcing         State = "SOURCING"
	StateQuotation        State = "QUOTATION"
	StateTender           State = "TENDER"
	StateEvaluation       State = "EVALUATION"
	StateAwarded          State = "AWARDED"
	StateProcessCancelled State = "PROCESS_CANCELLED"
)

// Document is any entity that passes through a workflow: it exposes an
// identity and a mutable status field. The workflow engine mutates only
// the status.
type Document interface {
	// DocumentID returns the entity's identity
	DocumentID() string

	// DocumentType returns the entity type name used in audit entries
	DocumentType() string

	// Status returns the current workflow state
	Status() State

	// SetStatus replaces the workflow state
	SetStatus(s State)
}

// WorkflowDocument is a minimal Document implementation for callers that
// load documents from the entity store
type WorkflowDocument struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	State      State  `json:"status"`
}

func (d *WorkflowDocument) DocumentID() string    { return d.ID }
func (d *WorkflowDocument) DocumentType() string  { return d.EntityType }
func (d *WorkflowDocument) Status() State         { return d.State }
func (d *WorkflowDocument) SetStatus(s State)     { d.State = s }
