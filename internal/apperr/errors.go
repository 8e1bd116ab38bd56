package apperr

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Error - ошибка ядра с кодом категории
type Error struct {
	Code       Code
	Message    string
	Field      string
	Details    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Extensions попадает в ответ GraphQL рядом с message
func (e *Error) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": string(e.Code)}
	if e.Field != "" {
		ext["field"] = e.Field
	}
	if e.RetryAfter > 0 {
		ext["retryAfterSeconds"] = int(math.Ceil(e.RetryAfter.Seconds()))
	}
	return ext
}

func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

func RateLimited(message string, retryAfter time.Duration) *Error {
	if message == "" {
		message = "rate limit exceeded"
	}
	return &Error{Code: CodeRateLimited, Message: message, RetryAfter: retryAfter}
}

func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func External(service string, err error) *Error {
	return &Error{
		Code:    CodeExternalDependency,
		Message: fmt.Sprintf("%s failed", service),
		Err:     err,
	}
}

func Consistency(message string) *Error {
	return &Error{Code: CodeConsistency, Message: message}
}

func Unavailable(service string, err error) *Error {
	return &Error{
		Code:    CodeServiceUnavailable,
		Message: fmt.Sprintf("%s is temporarily unavailable", service),
		Err:     err,
	}
}

// CodeOf возвращает код первой *Error в цепочке или CodeInternal
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsAuthorization объединяет UNAUTHORIZED и FORBIDDEN
func IsAuthorization(err error) bool {
	c := CodeOf(err)
	return err != nil && (c == CodeUnauthorized || c == CodeForbidden)
}
