package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeExternal   ErrorType = "external_api"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes shared by callers that need to match on a specific failure
const (
	CodeValidation        = "VALIDATION"
	CodeUnsupportedDevice = "UNSUPPORTED_DEVICE"
	CodeInvalidSample     = "INVALID_SAMPLE"
	CodeNotFound          = "NOT_FOUND"
	CodeDatabase          = "DB_ERROR"
	CodeExternalAPI       = "EXTERNAL_API"
	CodeTimeout           = "TIMEOUT"
	CodeInternal          = "INTERNAL"
)

// AppError represents an application error with additional context
type AppError struct {
	Type     ErrorType
	Message  string
	Code     string
	Internal error
	Context  map[string]interface{}
	Source   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches another AppError by type and code, otherwise defers to the wrapped error
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return errors.Is(e.Internal, target)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []interface{} {
	fields := []interface{}{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}

	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

func caller(skip int) string {
	_, file, line, _ := runtime.Caller(skip)
	return fmt.Sprintf("%s:%d", file, line)
}

// New creates a new AppError
func New(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Source:  caller(2),
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error into AppError
func Wrap(err error, errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  message,
		Internal: err,
		Source:   caller(2),
		Context:  make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal when err is not an AppError
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errorType
}

// Handler provides error handling strategies
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle logs an error at a level that depends on its type
func (h *Handler) Handle(ctx context.Context, err error, args ...any) {
	if err == nil {
		return
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		h.logger.ErrorContext(ctx, "Unhandled error", append(args, "error", err.Error())...)
		return
	}

	fields := append(args, appErr.LogFields()...)
	switch appErr.Type {
	case ErrorTypeValidation, ErrorTypeNotFound:
		h.logger.WarnContext(ctx, "Validation error", fields...)
	case ErrorTypeExternal, ErrorTypeTimeout:
		h.logger.WarnContext(ctx, "Upstream error", fields...)
	case ErrorTypeDatabase, ErrorTypeInternal:
		h.logger.ErrorContext(ctx, "Critical error", fields...)
	default:
		h.logger.ErrorContext(ctx, "Unknown error type", fields...)
	}
}

// LogAndReturn logs an error and returns it
func (h *Handler) LogAndReturn(ctx context.Context, err error) error {
	h.Handle(ctx, err)
	return err
}

// Sentinels for errors.Is matching; only Type and Code are compared.
var (
	ErrValidation        = &AppError{Type: ErrorTypeValidation, Code: CodeValidation}
	ErrUnsupportedDevice = &AppError{Type: ErrorTypeValidation, Code: CodeUnsupportedDevice}
	ErrInvalidSample     = &AppError{Type: ErrorTypeValidation, Code: CodeInvalidSample}
	ErrNotFound          = &AppError{Type: ErrorTypeNotFound, Code: CodeNotFound}
	ErrDatabase          = &AppError{Type: ErrorTypeDatabase, Code: CodeDatabase}
	ErrExternalAPI       = &AppError{Type: ErrorTypeExternal, Code: CodeExternalAPI}
	ErrTimeout           = &AppError{Type: ErrorTypeTimeout, Code: CodeTimeout}
)

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, CodeValidation, message)
}

func NewUnsupportedDeviceError(deviceType string) *AppError {
	return New(ErrorTypeValidation, CodeUnsupportedDevice, fmt.Sprintf("unsupported device type: %s", deviceType)).
		WithContext("device_type", deviceType)
}

func NewInvalidSampleError(reason string) *AppError {
	return New(ErrorTypeValidation, CodeInvalidSample, reason)
}

func NewNotFoundError(what string) *AppError {
	return New(ErrorTypeNotFound, CodeNotFound, fmt.Sprintf("%s not found", what))
}

func NewDatabaseError(err error) *AppError {
	return Wrap(err, ErrorTypeDatabase, CodeDatabase, "Database operation failed")
}

func NewExternalAPIError(err error, api string) *AppError {
	return Wrap(err, ErrorTypeExternal, CodeExternalAPI, fmt.Sprintf("%s API error", api)).
		WithContext("api", api)
}

func NewTimeoutError(operation string) *AppError {
	return New(ErrorTypeTimeout, CodeTimeout, fmt.Sprintf("%s operation timed out", operation)).
		WithContext("operation", operation)
}

func NewInternalError(err error) *AppError {
	return Wrap(err, ErrorTypeInternal, CodeInternal, "Internal server error")
}
