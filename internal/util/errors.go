package util

import (
	"errors"
	"fmt"
)

// ErrorKind 稳定的机器可读错误类型
type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindConflict          ErrorKind = "CONFLICT"
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindTimeLimitExceeded ErrorKind = "TIME_LIMIT_EXCEEDED"
	KindTooManyRequests   ErrorKind = "TOO_MANY_REQUESTS"
	KindInternal          ErrorKind = "INTERNAL"
)

// AppError 业务错误，Details 会原样返回给调用方
type AppError struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// With 附加返回字段
func (e *AppError) With(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NewTimeLimitExceededError(message string) *AppError {
	return &AppError{Kind: KindTimeLimitExceeded, Message: message}
}

func NewTooManyRequestsError(message string) *AppError {
	return &AppError{Kind: KindTooManyRequests, Message: message}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf 非 AppError 一律视为内部错误
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind 判断错误类型
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
