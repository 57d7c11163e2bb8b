// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound  = errors.New("entity not found")
	ErrDuplicate = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidID    = errors.New("invalid ID")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyValue   = errors.New("value cannot be empty")

	// State errors
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrLocked            = errors.New("entity is locked")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Configuration errors are fatal for the affected operation and must
	// reach an operator rather than be retried.
	ErrConfiguration = errors.New("configuration error")

	// Concurrency errors
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// Integrity errors
	ErrIntegrity = errors.New("integrity violation")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "result", "grading", "approval"
	Op      string // Operation that failed, e.g., "Create", "Transition"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Result domain errors
var (
	ErrResultNotFound     = NewDomainError("result", "Find", ErrNotFound, "result not found")
	ErrDuplicateResult    = NewDomainError("result", "CreateDraft", ErrDuplicate, "result already exists for student, course and semester")
	ErrResultLocked       = NewDomainError("result", "EditComponent", ErrLocked, "result is not in draft")
	ErrComponentNotFound  = NewDomainError("result", "FindComponent", ErrNotFound, "component not found")
	ErrDuplicateComponent = NewDomainError("result", "AddComponent", ErrValidation, "component name already used on this result")
	ErrGradeNotFound      = NewDomainError("result", "FindGrade", ErrNotFound, "grade not found")
	ErrCourseNotFound     = NewDomainError("result", "FindCourse", ErrConfiguration, "course not registered in catalog")
	ErrInvalidStatus      = NewDomainError("result", "Validate", ErrInvalidInput, "unknown result status")
)

// Grading domain errors
var (
	ErrIncompleteResult = NewDomainError("grading", "ComputeScore", ErrValidation, "result has no components or a component is missing marks")
	ErrInvalidComponent = NewDomainError("grading", "ComputeScore", ErrValidation, "component marks are invalid")
	ErrInvalidWeights   = NewDomainError("grading", "ComputeScore", ErrValidation, "component weights sum to zero")
	ErrGradeScale       = NewDomainError("grading", "DeriveGrade", ErrConfiguration, "grade scale is misconfigured")
)

// GPA domain errors
var (
	ErrCreditLookup = NewDomainError("gpa", "CreditLookup", ErrConfiguration, "credit hours not configured for course")
	ErrGPANotFound  = NewDomainError("gpa", "Find", ErrNotFound, "aggregate record not found")
)

// Approval domain errors
var (
	ErrActorForbidden   = NewDomainError("approval", "Authorize", ErrForbidden, "actor does not hold the role required for this action")
	ErrTransitionDenied = NewDomainError("approval", "Transition", ErrIllegalTransition, "target status is not reachable from current status")
	ErrReasonRequired   = NewDomainError("approval", "Transition", ErrValidation, "a non-empty reason is required")
	ErrLockTimeout      = NewDomainError("approval", "Lock", ErrConcurrencyConflict, "timed out waiting for a lock")
	ErrAuditChainBroken = NewDomainError("audit", "Verify", ErrIntegrity, "audit hash chain does not verify")
)

// Error categories reported to callers.
const (
	CategoryValidation        = "validation"
	CategoryForbidden         = "forbidden"
	CategoryIllegalTransition = "illegal_transition"
	CategoryDuplicate         = "duplicate"
	CategoryLocked            = "locked"
	CategoryNotFound          = "not_found"
	CategoryConfiguration     = "configuration"
	CategoryConflict          = "conflict"
	CategoryIntegrity         = "integrity"
	CategoryInternal          = "internal"
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if the error is a duplicate-key condition.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue)
}

// IsForbidden checks if the error is an authorization failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsIllegalTransition checks if the error is a state machine violation.
func IsIllegalTransition(err error) bool {
	return errors.Is(err, ErrIllegalTransition)
}

// IsConfiguration checks if the error comes from misconfiguration.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// Category maps an error onto the category reported to callers.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case IsForbidden(err):
		return CategoryForbidden
	case IsIllegalTransition(err):
		return CategoryIllegalTransition
	case errors.Is(err, ErrLocked):
		return CategoryLocked
	case IsConfiguration(err):
		return CategoryConfiguration
	case IsRetryable(err):
		return CategoryConflict
	case IsDuplicate(err):
		return CategoryDuplicate
	case IsNotFound(err):
		return CategoryNotFound
	case IsValidation(err):
		return CategoryValidation
	case errors.Is(err, ErrIntegrity):
		return CategoryIntegrity
	default:
		return CategoryInternal
	}
}
