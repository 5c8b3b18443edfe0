package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound        = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput    = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidPeriod   = NewDomainError("INVALID_PERIOD", "Audit period is malformed or empty")
	ErrInvalidState    = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrUnknownStrategy = NewDomainError("UNKNOWN_STRATEGY", "No strategy registered for this type")
)
