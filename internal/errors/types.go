// Package errors defines the structured error kinds used by the panic
// button service. Every error that crosses a component boundary is a
// *PanicError carrying a Type and a stable Code so callers can branch with
// errors.Is / errors.As without string matching.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeAction   ErrorType = "action"
	ErrorTypeLaunch   ErrorType = "launch"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeAuthRejected       = "ERR_AUTH_REJECTED"
	ErrCodeActionFailed       = "ERR_ACTION_FAILED"
	ErrCodeActionLaunchFailed = "ERR_ACTION_LAUNCH_FAILED"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeInternalError      = "ERR_INTERNAL"
)

// PanicError is a structured error type with context.
type PanicError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	Action  string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Action != "" {
		parts = append(parts, "action:"+e.Action)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PanicError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on Type and Code.
func (e *PanicError) Is(target error) bool {
	var t *PanicError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PanicError) WithContext(key string, value interface{}) *PanicError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithAction records which action kind the error belongs to.
func (e *PanicError) WithAction(action string) *PanicError {
	e.Action = action

	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrAuthRejected       = &PanicError{Type: ErrorTypeAuth, Code: ErrCodeAuthRejected}
	ErrActionFailed       = &PanicError{Type: ErrorTypeAction, Code: ErrCodeActionFailed}
	ErrActionLaunchFailed = &PanicError{Type: ErrorTypeLaunch, Code: ErrCodeActionLaunchFailed}
	ErrConfigInvalid      = &PanicError{Type: ErrorTypeConfig, Code: ErrCodeConfigInvalid}
)

// NewAuthRejected creates the error reported when a key matches neither
// tolerated window.
func NewAuthRejected() *PanicError {
	return &PanicError{
		Type:    ErrorTypeAuth,
		Code:    ErrCodeAuthRejected,
		Message: "key does not match the current or previous window",
	}
}

// NewActionFailed creates the error for a command that ran and exited
// unsuccessfully.
func NewActionFailed(action string, exitCode int, signaled bool) *PanicError {
	msg := fmt.Sprintf("command exited with code %d", exitCode)
	if signaled {
		msg = "command terminated by signal"
	}

	return &PanicError{
		Type:    ErrorTypeAction,
		Code:    ErrCodeActionFailed,
		Message: msg,
		Action:  action,
	}
}

// NewActionLaunchFailed creates the error for a command that could not be
// started at all. This is an operator configuration defect.
func NewActionLaunchFailed(action, command string, cause error) *PanicError {
	return (&PanicError{
		Type:    ErrorTypeLaunch,
		Code:    ErrCodeActionLaunchFailed,
		Message: "failed to launch command",
		Cause:   cause,
		Action:  action,
	}).WithContext("command", command)
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *PanicError {
	return &PanicError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PanicError {
	return &PanicError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsLaunchError checks if an error means a command never started.
func IsLaunchError(err error) bool {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeLaunch
	}

	return false
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeConfig
	}

	return false
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Debug(ctx context.Context, msg string, fields ...interface{})
}

// ErrorHandler logs request-scoped errors at the level their kind calls
// for. None of the kinds it handles are fatal to the process.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error with appropriate logging.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var pe *PanicError
	if !errors.As(err, &pe) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{"type", pe.Type, "code", pe.Code}
	if pe.Action != "" {
		fields = append(fields, "action", pe.Action)
	}
	for k, v := range pe.Context {
		fields = append(fields, k, v)
	}

	switch pe.Type {
	case ErrorTypeAuth:
		h.logger.Debug(ctx, "Request rejected", fields...)
	case ErrorTypeAction:
		h.logger.Warn(ctx, pe, "Action failed", fields...)
	default:
		h.logger.Error(ctx, pe, "Action could not be performed", fields...)
	}
}
