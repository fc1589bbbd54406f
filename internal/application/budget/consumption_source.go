package budget

import (
	"time"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsumptionRequest asks the gateway to consume Quantity/Amount of a budget line.
// Amount is in Currency and signed: negative values are refunds or reversals.
type ConsumptionRequest struct {
	LineID    uuid.UUID
	ProductID *uuid.UUID
	Quantity  decimal.Decimal
	Amount    decimal.Decimal
	Currency  string
	Date      time.Time
	Source    budget.SourceRef
}

// ConsumptionSource is implemented by documents that draw down budget lines
// (vendor bills, stock issues). A source may yield no requests when nothing it
// carries counts against a budget.
type ConsumptionSource interface {
	ConsumptionRequests() ([]ConsumptionRequest, error)
}

// Source systems recognised by the bundled adapters
const (
	SourceSystemBillLine  = "account.move.line"
	SourceSystemStockMove = "stock.move"
)

// MoveType is the accounting type of a bill
type MoveType string

const (
	MoveTypeInInvoice  MoveType = "in_invoice"
	MoveTypeInRefund   MoveType = "in_refund"
	MoveTypeOutInvoice MoveType = "out_invoice"
	MoveTypeOutRefund  MoveType = "out_refund"
)

// IsRefund reports whether the move gives budget back
func (t MoveType) IsRefund() bool {
	return t == MoveTypeInRefund || t == MoveTypeOutRefund
}

// VendorBill is a posted bill whose lines may reference budget lines.
type VendorBill struct {
	MoveType MoveType
	Currency string
	Date     time.Time
	Lines    []VendorBillLine
}

// VendorBillLine is one invoice line of a VendorBill
type VendorBillLine struct {
	ID           string
	BudgetLineID *uuid.UUID
	ProductID    *uuid.UUID
	Quantity     decimal.Decimal
	Subtotal     decimal.Decimal
}

// ConsumptionRequests implements ConsumptionSource. Refunds post negative quantity and amount.
// Lines without a budget line are skipped; the bill date defaults to today.
func (b VendorBill) ConsumptionRequests() ([]ConsumptionRequest, error) {
	sign := decimal.NewFromInt(1)
	if b.MoveType.IsRefund() {
		sign = decimal.NewFromInt(-1)
	}
	date := b.Date
	if date.IsZero() {
		date = time.Now()
	}
	reqs := make([]ConsumptionRequest, 0, len(b.Lines))
	for _, l := range b.Lines {
		if l.BudgetLineID == nil {
			continue
		}
		if l.ID == "" {
			return nil, shared.NewDomainError("INVALID_SOURCE_ID", "Bill line ID is required")
		}
		reqs = append(reqs, ConsumptionRequest{
			LineID:    *l.BudgetLineID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity.Mul(sign),
			Amount:    l.Subtotal.Mul(sign),
			Currency:  b.Currency,
			Date:      date,
			Source:    budget.SourceRef{System: SourceSystemBillLine, ID: l.ID},
		})
	}
	return reqs, nil
}

// LocationUsage is the usage of a stock move's destination location
type LocationUsage string

const (
	LocationCustomer   LocationUsage = "customer"
	LocationProduction LocationUsage = "production"
	LocationInternal   LocationUsage = "internal"
	LocationSupplier   LocationUsage = "supplier"
)

// consumesBudget reports whether goods leaving to this location are project cost.
func (u LocationUsage) consumesBudget() bool {
	return u == LocationCustomer || u == LocationProduction
}

// StockIssue is a completed stock move linked to a budget line.
type StockIssue struct {
	MoveID           string
	BudgetLineID     uuid.UUID
	ProductID        uuid.UUID
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	Currency         string
	DestinationUsage LocationUsage
	Date             time.Time
}

// ConsumptionRequests implements ConsumptionSource. Only issues to customer or production
// locations count; the amount is |unit price| × quantity.
func (s StockIssue) ConsumptionRequests() ([]ConsumptionRequest, error) {
	if !s.DestinationUsage.consumesBudget() || !s.Quantity.IsPositive() {
		return nil, nil
	}
	if s.MoveID == "" {
		return nil, shared.NewDomainError("INVALID_SOURCE_ID", "Stock move ID is required")
	}
	date := s.Date
	if date.IsZero() {
		date = time.Now()
	}
	product := s.ProductID
	return []ConsumptionRequest{{
		LineID:    s.BudgetLineID,
		ProductID: &product,
		Quantity:  s.Quantity,
		Amount:    s.UnitPrice.Abs().Mul(s.Quantity),
		Currency:  s.Currency,
		Date:      date,
		Source:    budget.SourceRef{System: SourceSystemStockMove, ID: s.MoveID},
	}}, nil
}

// PurchaseLineCheck describes a purchase order line to validate before it is saved.
// Nothing is written to the ledger; purchases consume budget when billed or issued.
type PurchaseLineCheck struct {
	BudgetLineID uuid.UUID
	ProjectID    *uuid.UUID
	ProductID    *uuid.UUID
	Quantity     decimal.Decimal
}
