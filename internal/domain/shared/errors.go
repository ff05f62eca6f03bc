package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As chains
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a domain error wrapping an underlying
// failure, typically from an external collaborator
func NewDomainErrorWithCause(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrValidation    = NewDomainError("VALIDATION_FAILURE", "Input failed validation")
	ErrConflict      = NewDomainError("CONFLICT", "Operation conflicts with already-processed state")
	ErrExternal      = NewDomainError("EXTERNAL_FAILURE", "External collaborator rejected the operation")
	ErrConcurrency   = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
)
