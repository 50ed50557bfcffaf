package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeResolution   ErrorType = "resolution"
	ErrorTypeService      ErrorType = "service"
	ErrorTypeImmutable    ErrorType = "immutable"
	ErrorTypeRepository   ErrorType = "repository"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeCancelled    ErrorType = "cancelled"
)

// AppError represents a structured application error
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

// NewURIParseError reports a malformed calendar URI. Never retryable.
func NewURIParseError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeValidation,
		Code:      "URI_PARSE_ERROR",
		Message:   message,
		Retryable: false,
	}
}

// NewURIValidationError reports a syntactically valid URI that fails
// semantic checks, such as an unsupported scheme or account form.
func NewURIValidationError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeValidation,
		Code:      "URI_VALIDATION_ERROR",
		Message:   message,
		Retryable: false,
	}
}

// NewCalendarResolutionError reports a URI that cannot be resolved for the
// invoking user, such as an account mismatch or an unknown calendar name.
func NewCalendarResolutionError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeResolution,
		Code:      "CALENDAR_RESOLUTION_ERROR",
		Message:   message,
		Retryable: false,
	}
}

// NewCalendarServiceError wraps a pipeline preparation failure with context.
func NewCalendarServiceError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeService,
		Code:      "CALENDAR_SERVICE_ERROR",
		Message:   message,
		Cause:     cause,
		Retryable: false,
	}
}

// NewImmutableAppointmentError reports an attempted mutation of an archived
// appointment. Fatal to the mutating call.
func NewImmutableAppointmentError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeImmutable,
		Code:      "IMMUTABLE_APPOINTMENT",
		Message:   message,
		Retryable: false,
	}
}

// NewAddError reports a failed write against an appointment source.
func NewAddError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeRepository,
		Code:      "REPOSITORY_ADD_ERROR",
		Message:   message,
		Cause:     cause,
		Retryable: true,
	}
}

// NewFetchError reports a failed read against an appointment source.
func NewFetchError(message string, cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeRepository,
		Code:      "REPOSITORY_FETCH_ERROR",
		Message:   message,
		Cause:     cause,
		Retryable: true,
	}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:      ErrorTypeNotFound,
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeUnauthorized,
		Code:      "UNAUTHORIZED",
		Message:   message,
		Retryable: false,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeConflict,
		Code:      "CONFLICT",
		Message:   message,
		Retryable: false,
	}
}

// NewDuplicateAppointmentError reports an appointment that already exists at
// the destination. Archival skips these instead of failing.
func NewDuplicateAppointmentError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeConflict,
		Code:      "DUPLICATE_APPOINTMENT",
		Message:   message,
		Retryable: false,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// NewExternalError reports a failure in an upstream provider call.
func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeRepository,
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("%s service error: %s", service, message),
		Retryable: true,
		Details:   map[string]interface{}{"service": service},
	}
}

// NewCancelledError reports a run aborted by its cancellation signal.
func NewCancelledError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeCancelled,
		Code:      "RUN_CANCELLED",
		Message:   message,
		Retryable: false,
	}
}

// Predefined common errors
var (
	ErrAppointmentNotFound   = NewNotFoundError("appointment")
	ErrOperationNotFound     = NewNotFoundError("reversible operation")
	ErrConfigurationNotFound = NewNotFoundError("archive configuration")
	ErrUserNotFound          = NewNotFoundError("user")
	ErrDuplicateAssociation  = NewConflictError("Entity association already exists")
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetCode extracts the application error code from an error chain.
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}
