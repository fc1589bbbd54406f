package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{budget.CodeEmptyBudget, http.StatusUnprocessableEntity},
		{budget.CodeDuplicateActiveBudget, http.StatusConflict},
		{budget.CodeQuantityExceeded, http.StatusUnprocessableEntity},
		{budget.CodeAmountExceeded, http.StatusUnprocessableEntity},
		{budget.CodeDocumentClosed, http.StatusConflict},
		{budget.CodeDocumentImmutable, http.StatusConflict},
		{budget.CodeProductMismatch, http.StatusUnprocessableEntity},
		{budget.CodeCurrencyConversionFailure, http.StatusUnprocessableEntity},
		{budget.CodeConcurrentModification, http.StatusConflict},
		{budget.CodeDuplicateConsumption, http.StatusConflict},
		{budget.CodeDocumentNotEligible, http.StatusConflict},
		{budget.CodeProjectMismatch, http.StatusUnprocessableEntity},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeIdempotencyInFlight, http.StatusConflict},
		{"INVALID_QUANTITY", http.StatusBadRequest},
		{budget.CodeInvalidSection, http.StatusBadRequest},
		{"INVALID_REFERENCE", http.StatusBadRequest},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2}, 41, 2, 20)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Equal(t, 2, resp.Meta.Page)

	empty := NewSuccessResponseWithMeta(nil, 5, 1, 0)
	assert.Equal(t, 0, empty.Meta.TotalPages)
}

func TestNewDetailedErrorResponse(t *testing.T) {
	resp := NewDetailedErrorResponse(budget.CodeAmountExceeded, "over budget", "req-1", map[string]any{
		"remaining_amount": "100",
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")

	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, "AMOUNT_EXCEEDED", errObj["code"])
	assert.Equal(t, "req-1", errObj["request_id"])
	assert.Equal(t, "100", errObj["details"].(map[string]any)["remaining_amount"])
}

func TestNewDetailedErrorResponse_OmitsEmptyDetails(t *testing.T) {
	resp := NewDetailedErrorResponse(ErrCodeNotFound, "missing", "", nil)
	assert.Nil(t, resp.Error.Details)
	assert.Empty(t, resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "r", []ValidationDetail{
		{Field: "currency", Message: "This field is required"},
	})

	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Fields, 1)
	assert.Equal(t, "currency", resp.Error.Fields[0].Field)
}
