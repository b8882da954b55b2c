// Package errors provides structured error handling for netsweep.
// Every failure the engine can surface carries an ErrorCode so callers
// (the HTTP layer, the CLI, the job tracker) can react to the category
// without matching on message text.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"
	CodeRateLimited   ErrorCode = "RATE_LIMITED"

	// Scanning engine errors.
	CodeInvalidCIDR           ErrorCode = "INVALID_CIDR"
	CodeProbeTimeout          ErrorCode = "PROBE_TIMEOUT"
	CodeProbeFailed           ErrorCode = "PROBE_FAILED"
	CodeDetailScanUnavailable ErrorCode = "DETAIL_SCAN_UNAVAILABLE"
	CodeDetailScanFailed      ErrorCode = "DETAIL_SCAN_FAILED"
	CodeParseAnomaly          ErrorCode = "PARSE_ANOMALY"

	// Storage errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"
	CodeStorageIO          ErrorCode = "STORAGE_IO"
)

// ScanError represents an error raised by the scanning engine.
type ScanError struct {
	Code      ErrorCode
	Message   string
	Target    string
	Operation string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Target != "" {
		msg = fmt.Sprintf("%s (target: %s)", msg, e.Target)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithOperation records the engine operation that failed.
func (e *ScanError) WithOperation(op string) *ScanError {
	e.Operation = op
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// DatabaseError represents storage errors. The Cause is kept for logs
// and never rendered to API clients.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{Code: code, Message: message}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message string, err error) *DatabaseError {
	return &DatabaseError{Code: code, Message: message, Cause: err}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// coded is satisfied by every error type in this package.
type coded interface {
	error
	errorCode() ErrorCode
}

func (e *ScanError) errorCode() ErrorCode     { return e.Code }
func (e *DatabaseError) errorCode() ErrorCode { return e.Code }
func (e *ConfigError) errorCode() ErrorCode   { return e.Code }

// GetCode extracts the outermost error code found in err's chain.
func GetCode(err error) ErrorCode {
	var c coded
	if stderrors.As(err, &c) {
		return c.errorCode()
	}
	return CodeUnknown
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if c, ok := err.(coded); ok && c.errorCode() == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Common error constructors.

// ErrInvalidCIDR creates an error for a network string that is not IPv4 CIDR.
func ErrInvalidCIDR(cidr string, cause error) *ScanError {
	return WrapScanErrorWithTarget(CodeInvalidCIDR, "Invalid IPv4 CIDR", cidr, cause)
}

// ErrDetailScanUnavailable is returned when nmap is not installed.
func ErrDetailScanUnavailable(target string) *ScanError {
	return NewScanErrorWithTarget(CodeDetailScanUnavailable,
		"nmap is not installed or not on PATH; install nmap to enable detail scans", target)
}

// ErrNotFound creates an error for a missing resource.
func ErrNotFound(resource, id string) *ScanError {
	return NewScanErrorWithTarget(CodeNotFound, resource+" not found", id)
}

// ErrConflict creates an error for a resource that already exists or is busy.
func ErrConflict(message, target string) *ScanError {
	return NewScanErrorWithTarget(CodeConflict, message, target)
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *ScanError {
	return NewScanError(CodeValidation, message)
}

// ErrDatabaseConnection creates an error for database connection failures.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", err)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}
