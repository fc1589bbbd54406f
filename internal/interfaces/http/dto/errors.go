package dto

import (
	"net/http"
	"strings"

	"github.com/erp/budget/internal/domain/budget"
)

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeValidation is used when a request fails binding or field validation
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeUnauthorized is used when tenant or actor identification is missing
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "RATE_LIMIT_EXCEEDED"
)

// Resource error codes
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeInvalidState  = "INVALID_STATE"
	// ErrCodeIdempotencyInFlight is returned while a request with the same Idempotency-Key is running
	ErrCodeIdempotencyInFlight = "IDEMPOTENCY_KEY_IN_USE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeIdempotencyInFlight: http.StatusConflict,

	// Budget rules -> 422 Unprocessable Entity
	budget.CodeEmptyBudget:               http.StatusUnprocessableEntity,
	budget.CodeQuantityExceeded:          http.StatusUnprocessableEntity,
	budget.CodeAmountExceeded:            http.StatusUnprocessableEntity,
	budget.CodeProductMismatch:           http.StatusUnprocessableEntity,
	budget.CodeProjectMismatch:           http.StatusUnprocessableEntity,
	budget.CodeCurrencyConversionFailure: http.StatusUnprocessableEntity,
	budget.CodeInvalidDistribution:       http.StatusUnprocessableEntity,

	// Budget conflicts -> 409 Conflict
	budget.CodeDuplicateActiveBudget:  http.StatusConflict,
	budget.CodeDocumentClosed:         http.StatusConflict,
	budget.CodeDocumentImmutable:      http.StatusConflict,
	budget.CodeDocumentNotEligible:    http.StatusConflict,
	budget.CodeConcurrentModification: http.StatusConflict,
	budget.CodeDuplicateConsumption:   http.StatusConflict,
	budget.CodeLedgerAppendOnly:       http.StatusConflict,
	budget.CodeLineHasConsumption:     http.StatusConflict,
	budget.CodeDuplicateSection:       http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Field-level domain codes (INVALID_*) are client errors; anything else unknown is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
