package budget

import (
	"fmt"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes surfaced by the budget core.
const (
	CodeEmptyBudget               = "EMPTY_BUDGET"
	CodeDuplicateActiveBudget     = "DUPLICATE_ACTIVE_BUDGET"
	CodeQuantityExceeded          = "QUANTITY_EXCEEDED"
	CodeAmountExceeded            = "AMOUNT_EXCEEDED"
	CodeDocumentClosed            = "DOCUMENT_CLOSED"
	CodeDocumentImmutable         = "DOCUMENT_IMMUTABLE"
	CodeDocumentNotEligible       = "DOCUMENT_NOT_ELIGIBLE"
	CodeProductMismatch           = "PRODUCT_MISMATCH"
	CodeProjectMismatch           = "PROJECT_MISMATCH"
	CodeCurrencyConversionFailure = "CURRENCY_CONVERSION_FAILURE"
	CodeConcurrentModification    = "CONCURRENT_MODIFICATION"
	CodeDuplicateConsumption      = "DUPLICATE_CONSUMPTION"
	CodeLedgerAppendOnly          = "LEDGER_APPEND_ONLY"
	CodeLineHasConsumption        = "LINE_HAS_CONSUMPTION"
	CodeInvalidDistribution       = "INVALID_DISTRIBUTION"
	CodeDuplicateSection          = "DUPLICATE_SECTION"
	CodeInvalidSection            = "INVALID_SECTION"
)

var (
	ErrEmptyBudget            = shared.NewDomainError(CodeEmptyBudget, "BOQ has no budget lines")
	ErrDuplicateActiveBudget  = shared.NewDomainError(CodeDuplicateActiveBudget, "Another BOQ is already approved or locked for this project")
	ErrDocumentClosed         = shared.NewDomainError(CodeDocumentClosed, "BOQ is closed")
	ErrDocumentImmutable      = shared.NewDomainError(CodeDocumentImmutable, "BOQ cannot be modified in its current state")
	ErrDocumentNotEligible    = shared.NewDomainError(CodeDocumentNotEligible, "BOQ is not approved or locked for consumption")
	ErrProductMismatch        = shared.NewDomainError(CodeProductMismatch, "Consumed product does not match the budget line")
	ErrProjectMismatch        = shared.NewDomainError(CodeProjectMismatch, "Source document project does not match the BOQ project")
	ErrCurrencyConversion     = shared.NewDomainError(CodeCurrencyConversionFailure, "No exchange rate available")
	ErrConcurrentModification = shared.NewDomainError(CodeConcurrentModification, "Budget line is locked by another transaction")
	ErrDuplicateConsumption   = shared.NewDomainError(CodeDuplicateConsumption, "Consumption for this source has already been recorded")
	ErrLedgerAppendOnly       = shared.NewDomainError(CodeLedgerAppendOnly, "Consumption ledger entries cannot be modified or deleted")
	ErrLineHasConsumption     = shared.NewDomainError(CodeLineHasConsumption, "Budget line has consumption history")
	ErrDuplicateSection       = shared.NewDomainError(CodeDuplicateSection, "A BOQ section with this name already exists")
	ErrInvalidSection         = shared.NewDomainError(CodeInvalidSection, "BOQ section does not exist")
)

// BudgetExceededError is returned when a positive consumption does not fit the remaining budget.
// It carries the figures the caller needs to decide whether to seek an override.
type BudgetExceededError struct {
	*shared.DomainError
	LineID            uuid.UUID
	AttemptedQuantity decimal.Decimal
	AttemptedAmount   decimal.Decimal
	RemainingQuantity decimal.Decimal
	RemainingAmount   decimal.Decimal
}

// NewBudgetExceededError builds the error for a rejected decision.
func NewBudgetExceededError(lineID uuid.UUID, d Decision, qty, amount decimal.Decimal) *BudgetExceededError {
	code := CodeAmountExceeded
	msg := fmt.Sprintf("Amount %s exceeds remaining budget %s", amount.StringFixed(2), d.Remaining.Amount.StringFixed(2))
	if d.Reason == ReasonQuantityExceeded {
		code = CodeQuantityExceeded
		msg = fmt.Sprintf("Quantity %s exceeds remaining budget quantity %s", qty.String(), d.Remaining.Quantity.String())
	}
	de := shared.NewDomainError(code, msg).
		WithDetail("line_id", lineID.String()).
		WithDetail("attempted_quantity", qty.String()).
		WithDetail("attempted_amount", amount.String()).
		WithDetail("remaining_quantity", d.Remaining.Quantity.String()).
		WithDetail("remaining_amount", d.Remaining.Amount.String())
	return &BudgetExceededError{
		DomainError:       de,
		LineID:            lineID,
		AttemptedQuantity: qty,
		AttemptedAmount:   amount,
		RemainingQuantity: d.Remaining.Quantity,
		RemainingAmount:   d.Remaining.Amount,
	}
}

// Unwrap exposes the embedded DomainError to errors.Is/As.
func (e *BudgetExceededError) Unwrap() error {
	return e.DomainError
}
