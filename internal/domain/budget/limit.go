package budget

import "github.com/shopspring/decimal"

// Tolerance absorbs rounding noise when comparing a delta with the remaining budget.
type Tolerance struct {
	Quantity decimal.Decimal
	Amount   decimal.Decimal
}

// DefaultTolerance is 1e-4 on quantities and one cent on amounts.
func DefaultTolerance() Tolerance {
	return Tolerance{
		Quantity: decimal.New(1, -4),
		Amount:   decimal.New(1, -2),
	}
}

// Usage is the ledger aggregate for one line: Σ quantity and Σ amount, refunds included.
type Usage struct {
	Quantity decimal.Decimal
	Amount   decimal.Decimal
}

// Add returns the usage after recording another delta.
func (u Usage) Add(qty, amount decimal.Decimal) Usage {
	return Usage{Quantity: u.Quantity.Add(qty), Amount: u.Amount.Add(amount)}
}

// Remaining is budgeted minus consumed.
type Remaining struct {
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// DecisionReason explains a limit-check outcome.
type DecisionReason string

const (
	ReasonWithinBudget     DecisionReason = "within_budget"
	ReasonOverrideAllowed  DecisionReason = "override_allowed"
	ReasonReversal         DecisionReason = "reversal"
	ReasonQuantityExceeded DecisionReason = "quantity_exceeded"
	ReasonAmountExceeded   DecisionReason = "amount_exceeded"
)

// Decision is the result of Evaluate.
type Decision struct {
	Allowed   bool
	Reason    DecisionReason
	Remaining Remaining
}

// Evaluate decides whether a consumption of qty/amount fits the line given its current usage.
// Usage must be read after the line lock is held.
func (l *BudgetLine) Evaluate(usage Usage, qty, amount decimal.Decimal, tol Tolerance) Decision {
	remaining := l.RemainingAfter(usage)
	if l.AllowOverride {
		return Decision{Allowed: true, Reason: ReasonOverrideAllowed, Remaining: remaining}
	}
	if !qty.IsPositive() && !amount.IsPositive() {
		return Decision{Allowed: true, Reason: ReasonReversal, Remaining: remaining}
	}
	if qty.IsPositive() && qty.GreaterThan(remaining.Quantity.Add(tol.Quantity)) {
		return Decision{Allowed: false, Reason: ReasonQuantityExceeded, Remaining: remaining}
	}
	if amount.IsPositive() && amount.GreaterThan(remaining.Amount.Add(tol.Amount)) {
		return Decision{Allowed: false, Reason: ReasonAmountExceeded, Remaining: remaining}
	}
	return Decision{Allowed: true, Reason: ReasonWithinBudget, Remaining: remaining}
}

// RemainingAfter computes remaining quantity and amount from a ledger aggregate.
func (l *BudgetLine) RemainingAfter(usage Usage) Remaining {
	return Remaining{
		Quantity: l.Quantity.Sub(usage.Quantity),
		Amount:   l.BudgetAmount.Sub(usage.Amount),
	}
}

// ConsumptionPercentage returns consumed amount as a percentage of the budget amount.
func (l *BudgetLine) ConsumptionPercentage(usage Usage) decimal.Decimal {
	if l.BudgetAmount.IsZero() {
		return decimal.Zero
	}
	return usage.Amount.Div(l.BudgetAmount).Mul(decimal.NewFromInt(100)).Round(2)
}
