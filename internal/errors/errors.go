package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation   = "E100"
	CodeStorage      = "E200"
	CodeExternalAPI  = "E300"
	CodeStateMissing = "E400"
	CodeNotFound     = "E404"
	CodeInternal     = "E500"
)

var (
	// ErrNotFound matches any error created by NewNotFoundError.
	ErrNotFound = &AppError{Code: CodeNotFound, Message: "not found"}
	// ErrStateMissing matches any error created by NewStateMissingError.
	ErrStateMissing = &AppError{Code: CodeStateMissing, Message: "state missing"}
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	RetryAfter  time.Duration
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// Is matches application errors by code so that sentinels like ErrNotFound
// can be used with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) || t == nil || e == nil {
		return false
	}

	return t.Code != "" && t.Code == e.Code
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Неверный формат данных. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewStorageError(op string, cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeStorage,
		Message:     fmt.Sprintf("storage %s: %s", op, underlyingMsg),
		UserMessage: "Временная проблема, попробуйте позже",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, retryable bool, cause error) *AppError {
	return &AppError{
		Code:        CodeExternalAPI,
		Message:     fmt.Sprintf("external API error: %s: %v", apiName, cause),
		UserMessage: "Сервис временно недоступен",
		Severity:    SeverityMedium,
		Retryable:   retryable,
		cause:       cause,
	}
}

// NewFloodError reports a transport rejecting requests until after has passed.
func NewFloodError(apiName string, after time.Duration, cause error) *AppError {
	appErr := NewExternalAPIError(apiName, true, cause)
	appErr.RetryAfter = after
	return appErr
}

// NewNotFoundError reports an unknown dialog, phase, poll, action or controller name.
func NewNotFoundError(format string, args ...any) *AppError {
	return &AppError{
		Code:        CodeNotFound,
		Message:     fmt.Sprintf(format, args...),
		UserMessage: "Команда недоступна",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

// NewStateMissingError reports an operation that requires an active conversation.
func NewStateMissingError(format string, args ...any) *AppError {
	return &AppError{
		Code:        CodeStateMissing,
		Message:     fmt.Sprintf(format, args...),
		UserMessage: "Операция невозможна в текущем состоянии",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewInternalError reports a failure of the bot itself, such as a recovered panic.
func NewInternalError(cause error) *AppError {
	return &AppError{
		Code:        CodeInternal,
		Message:     fmt.Sprintf("internal error: %v", cause),
		UserMessage: "Что-то пошло не так. Попробуйте позже",
		Severity:    SeverityCritical,
		Retryable:   false,
		cause:       cause,
	}
}
