package budget

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Distribution maps analytic account IDs to allocation percentages.
type Distribution map[string]decimal.Decimal

// Value implements driver.Valuer for JSON storage
func (d Distribution) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSON storage
func (d *Distribution) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*d = Distribution{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Distribution", value)
	}
	out := Distribution{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*d = out
	return nil
}

// Includes reports whether the distribution allocates to the given account.
func (d Distribution) Includes(accountID uuid.UUID) bool {
	_, ok := d[accountID.String()]
	return ok
}

// Clone returns an independent copy
func (d Distribution) Clone() Distribution {
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Validate checks that percentages are non-negative and sum to at most 100.
func (d Distribution) Validate() error {
	total := decimal.Zero
	for k, v := range d {
		if _, err := uuid.Parse(k); err != nil {
			return shared.NewDomainErrorf(CodeInvalidDistribution, "Invalid analytic account %q", k)
		}
		if v.IsNegative() {
			return shared.NewDomainError(CodeInvalidDistribution, "Distribution percentages cannot be negative")
		}
		total = total.Add(v)
	}
	if total.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError(CodeInvalidDistribution, "Distribution percentages exceed 100")
	}
	return nil
}

// BudgetLine is the budget authority unit: quantity and amount limits for one cost item.
// Consumed and remaining figures are never stored; they come from the consumption ledger.
type BudgetLine struct {
	shared.BaseEntity
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	DocumentID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_boq_line_document"`
	SectionID        *uuid.UUID      `gorm:"type:uuid;index"`
	ProductID        *uuid.UUID      `gorm:"type:uuid;index"`
	Description      string          `gorm:"type:varchar(500);not null"`
	CostType         CostType        `gorm:"type:varchar(20);not null"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitRate         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BudgetAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExpenseAccountID uuid.UUID       `gorm:"type:uuid;not null"`
	Distribution     Distribution    `gorm:"type:text"`
	AllowOverride    bool            `gorm:"not null"`
	Sequence         int             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BudgetLine) TableName() string {
	return "boq_lines"
}

// LineSpec holds the business fields of a budget line.
type LineSpec struct {
	SectionID        *uuid.UUID
	ProductID        *uuid.UUID
	Description      string
	CostType         CostType
	Quantity         decimal.Decimal
	UnitRate         decimal.Decimal
	ExpenseAccountID uuid.UUID
	Distribution     Distribution
	AllowOverride    bool
	Sequence         int
}

// Validate checks the invariants of a line spec
func (s LineSpec) Validate() error {
	if s.Description == "" {
		return shared.NewDomainError("INVALID_DESCRIPTION", "Line description cannot be empty")
	}
	if !s.CostType.IsValid() {
		return shared.NewDomainError("INVALID_COST_TYPE", "Invalid cost type")
	}
	if !s.Quantity.IsPositive() {
		return shared.NewDomainError("INVALID_QUANTITY", "Budget quantity must be greater than zero")
	}
	if s.UnitRate.IsNegative() {
		return shared.NewDomainError("INVALID_RATE", "Unit rate cannot be negative")
	}
	if s.ExpenseAccountID == uuid.Nil {
		return shared.NewDomainError("INVALID_ACCOUNT", "Expense account is required")
	}
	return s.Distribution.Validate()
}

// newBudgetLine creates a line owned by doc; callers go through BudgetDocument.AddLine.
func newBudgetLine(doc *BudgetDocument, spec LineSpec) (*BudgetLine, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	line := &BudgetLine{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   doc.TenantID,
		DocumentID: doc.ID,
	}
	line.apply(spec)
	if err := line.alignDistribution(doc.CostCenterID); err != nil {
		return nil, err
	}
	return line, nil
}

func (l *BudgetLine) apply(spec LineSpec) {
	l.SectionID = spec.SectionID
	l.ProductID = spec.ProductID
	l.Description = spec.Description
	l.CostType = spec.CostType
	l.Quantity = spec.Quantity
	l.UnitRate = spec.UnitRate
	l.BudgetAmount = spec.Quantity.Mul(spec.UnitRate).Round(4)
	l.ExpenseAccountID = spec.ExpenseAccountID
	l.Distribution = spec.Distribution.Clone()
	l.AllowOverride = spec.AllowOverride
	l.Sequence = spec.Sequence
	l.UpdatedAt = time.Now()
}

// alignDistribution defaults an empty distribution to the document's cost center and
// rejects one that ignores it.
func (l *BudgetLine) alignDistribution(costCenterID *uuid.UUID) error {
	if costCenterID == nil {
		return nil
	}
	if len(l.Distribution) == 0 {
		l.Distribution = Distribution{costCenterID.String(): decimal.NewFromInt(100)}
		return nil
	}
	if !l.Distribution.Includes(*costCenterID) {
		return shared.NewDomainError(CodeInvalidDistribution, "Line distribution must include the BOQ cost center")
	}
	return nil
}

// Spec returns the business fields of the line.
func (l *BudgetLine) Spec() LineSpec {
	return LineSpec{
		SectionID:        l.SectionID,
		ProductID:        l.ProductID,
		Description:      l.Description,
		CostType:         l.CostType,
		Quantity:         l.Quantity,
		UnitRate:         l.UnitRate,
		ExpenseAccountID: l.ExpenseAccountID,
		Distribution:     l.Distribution.Clone(),
		AllowOverride:    l.AllowOverride,
		Sequence:         l.Sequence,
	}
}

// MatchesProduct reports whether a consumed product is compatible with the line.
// Lines without a product accept any product.
func (l *BudgetLine) MatchesProduct(productID *uuid.UUID) bool {
	if l.ProductID == nil || productID == nil {
		return true
	}
	return *l.ProductID == *productID
}

// LinePatch is a partial update; nil fields are left unchanged.
type LinePatch struct {
	SectionID        *uuid.UUID
	ProductID        *uuid.UUID
	Description      *string
	CostType         *CostType
	Quantity         *decimal.Decimal
	UnitRate         *decimal.Decimal
	ExpenseAccountID *uuid.UUID
	Distribution     Distribution
	AllowOverride    *bool
	Sequence         *int
}

// IsEmpty reports whether the patch changes nothing
func (p LinePatch) IsEmpty() bool {
	return p.SectionID == nil && p.ProductID == nil && p.Description == nil && p.CostType == nil &&
		p.Quantity == nil && p.UnitRate == nil && p.ExpenseAccountID == nil && p.Distribution == nil &&
		p.AllowOverride == nil && p.Sequence == nil
}

// ApplyTo returns spec with the patch applied.
func (p LinePatch) ApplyTo(spec LineSpec) LineSpec {
	if p.SectionID != nil {
		spec.SectionID = p.SectionID
	}
	if p.ProductID != nil {
		spec.ProductID = p.ProductID
	}
	if p.Description != nil {
		spec.Description = *p.Description
	}
	if p.CostType != nil {
		spec.CostType = *p.CostType
	}
	if p.Quantity != nil {
		spec.Quantity = *p.Quantity
	}
	if p.UnitRate != nil {
		spec.UnitRate = *p.UnitRate
	}
	if p.ExpenseAccountID != nil {
		spec.ExpenseAccountID = *p.ExpenseAccountID
	}
	if p.Distribution != nil {
		spec.Distribution = p.Distribution
	}
	if p.AllowOverride != nil {
		spec.AllowOverride = *p.AllowOverride
	}
	if p.Sequence != nil {
		spec.Sequence = *p.Sequence
	}
	return spec
}
