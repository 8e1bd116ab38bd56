package apperr

import "net/http"

// Code - тип ошибки, возвращаемый клиенту в extensions.code
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeExternalDependency Code = "EXTERNAL_DEPENDENCY"
	CodeConsistency        Code = "CONSISTENCY_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL_ERROR"
)

var statusCodes = map[Code]int{
	CodeValidation:         http.StatusUnprocessableEntity,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeExternalDependency: http.StatusBadGateway,
	CodeConsistency:        http.StatusConflict,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
}

// StatusCode возвращает HTTP-статус для кода ошибки
func (c Code) StatusCode() int {
	if status, ok := statusCodes[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}
