package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Evaluation errors. Insufficient history and a zero baseline are recovered
// locally by skipping the patient; the others surface to the caller.
var (
	ErrNotFound            = errors.New("not found")
	ErrStoreUnavailable    = errors.New("alert store unavailable")
	ErrInsufficientHistory = errors.New("insufficient uACR history: at least two dated readings required")
	ErrZeroBaseline        = errors.New("previous uACR value is zero: percent change undefined")
	ErrZeroPeriod          = errors.New("observation period has zero or negative length")
	ErrDateParse           = errors.New("malformed date")
	ErrUnknownCategory     = errors.New("unknown albuminuria category")
	ErrUnknownSeverity     = errors.New("no severity mapped for worsening level")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeDateParse      = "DATE_PARSE_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeUnavailable    = "SERVICE_UNAVAILABLE"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// DateParseError reports a date string that could not be parsed.
type DateParseError struct {
	Value  string
	Reason string
}

// Error implements the error interface
func (e *DateParseError) Error() string {
	return fmt.Sprintf("malformed date %q: %s", e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrDateParse.
func (e *DateParseError) Unwrap() error {
	return ErrDateParse
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// EvaluationError ties a per-patient failure to the patient and the field
// that caused it.
type EvaluationError struct {
	PatientID string
	Field     string
	Err       error
}

// Error implements the error interface
func (e *EvaluationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("patient %s: %v", e.PatientID, e.Err)
	}
	return fmt.Sprintf("patient %s: field %s: %v", e.PatientID, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the failure for batch reports.
func (e *EvaluationError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		PatientID string `json:"patient_id"`
		Field     string `json:"field,omitempty"`
		Error     string `json:"error"`
	}{e.PatientID, e.Field, msg})
}

// NewEvaluationError wraps err with patient and field context.
func NewEvaluationError(patientID, field string, err error) *EvaluationError {
	return &EvaluationError{PatientID: patientID, Field: field, Err: err}
}

// IsSkippable reports whether err means the patient cannot be evaluated for
// trend and should be skipped silently rather than counted as a failure.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrInsufficientHistory) || errors.Is(err, ErrZeroBaseline)
}
