package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes for different subsystems
const (
	// Workflow Errors (WF_1xxx)
	ErrCodeInvalidTransition ErrorCode = "WF_1001"
	ErrCodeUnknownWorkflow   ErrorCode = "WF_1002"
	ErrCodeUnknownState      ErrorCode = "WF_1003"

	// Currency Errors (FX_2xxx)
	ErrCodeUnsupportedCurrency ErrorCode = "FX_2001"
	ErrCodeRateNotFound        ErrorCode = "FX_2002"
	ErrCodeInvalidRate         ErrorCode = "FX_2003"
	ErrCodeRateAlreadyLocked   ErrorCode = "FX_2004"

	// Governance Errors (GOV_4xxx)
	ErrCodeSegregationViolation   ErrorCode = "GOV_4001"
	ErrCodeRoleConflict           ErrorCode = "GOV_4002"
	ErrCodeJustificationRequired  ErrorCode = "GOV_4003"
	ErrCodeEmergencyLimitExceeded ErrorCode = "GOV_4004"
	ErrCodeBackdatingNotAllowed   ErrorCode = "GOV_4005"
	ErrCodeBudgetConflict         ErrorCode = "GOV_4006"

	// Audit/Storage Errors (AUD_5xxx)
	ErrCodeStorageFailure ErrorCode = "AUD_5001"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Workflow errors

func ErrInvalidTransition(workflow, from, to string) *AppError {
	return NewAppError(ErrCodeInvalidTransition, "Invalid state transition", fmt.Sprintf("Workflow: %s, %s -> %s", workflow, from, to), nil)
}

func ErrUnknownWorkflow(workflow string) *AppError {
	return NewAppError(ErrCodeUnknownWorkflow, "Unknown workflow", fmt.Sprintf("Workflow: %s", workflow), nil)
}

func ErrUnknownState(workflow, state string) *AppError {
	return NewAppError(ErrCodeUnknownState, "Unknown workflow state", fmt.Sprintf("Workflow: %s, State: %s", workflow, state), nil)
}

// Currency errors

func ErrUnsupportedCurrency(currency string) *AppError {
	return NewAppError(ErrCodeUnsupportedCurrency, "Unsupported currency", fmt.Sprintf("Currency: %s", currency), nil)
}

func ErrRateNotFound(from, to string, details string) *AppError {
	return NewAppError(ErrCodeRateNotFound, "Exchange rate not found", fmt.Sprintf("%s -> %s: %s", from, to, details), nil)
}

func ErrInvalidRate(details string) *AppError {
	return NewAppError(ErrCodeInvalidRate, "Exchange rate must be greater than zero", details, nil)
}

func ErrRateAlreadyLocked(transactionType, transactionID string) *AppError {
	return NewAppError(ErrCodeRateAlreadyLocked, "Rate already locked for transaction", fmt.Sprintf("%s/%s", transactionType, transactionID), nil)
}

// Governance errors

func ErrSegregationViolation(actorID, action string) *AppError {
	return NewAppError(ErrCodeSegregationViolation, "Segregation of duties violation", fmt.Sprintf("Actor %s already performed a conflicting action before %s", actorID, action), nil)
}

func ErrRoleConflict(roleA, roleB string) *AppError {
	return NewAppError(ErrCodeRoleConflict, "Conflicting roles held by the same actor", fmt.Sprintf("%s and %s must be different people", roleA, roleB), nil)
}

func ErrJustificationRequired(details string) *AppError {
	return NewAppError(ErrCodeJustificationRequired, "Justification is required", details, nil)
}

func ErrEmergencyLimitExceeded(details string) *AppError {
	return NewAppError(ErrCodeEmergencyLimitExceeded, "Emergency procurement limit exceeded", details, nil)
}

func ErrBackdatingNotAllowed(details string) *AppError {
	return NewAppError(ErrCodeBackdatingNotAllowed, "Document date cannot be backdated", details, nil)
}

func ErrBudgetConflict(budgetCode string, fiscalYear string) *AppError {
	return NewAppError(ErrCodeBudgetConflict, "Budget line was modified concurrently", fmt.Sprintf("Budget: %s, FY: %s", budgetCode, fiscalYear), nil)
}

// Storage errors

func ErrStorageFailure(operation string, cause error) *AppError {
	return NewAppError(ErrCodeStorageFailure, "Storage operation failed", fmt.Sprintf("Operation: %s", operation), cause)
}
