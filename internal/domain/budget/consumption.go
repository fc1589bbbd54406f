package budget

import (
	"strings"
	"time"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/erp/budget/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceRef identifies the real-world event behind a consumption, e.g. ("account.move.line", "42").
// The pair is unique across the ledger.
type SourceRef struct {
	System string `json:"source_system"`
	ID     string `json:"source_id"`
}

// Validate checks both parts are present
func (r SourceRef) Validate() error {
	if strings.TrimSpace(r.System) == "" {
		return shared.NewDomainError("INVALID_SOURCE_SYSTEM", "Source system cannot be empty")
	}
	if strings.TrimSpace(r.ID) == "" {
		return shared.NewDomainError("INVALID_SOURCE_ID", "Source ID cannot be empty")
	}
	return nil
}

// String renders "system/id"
func (r SourceRef) String() string {
	return r.System + "/" + r.ID
}

// ConsumptionEntry is one immutable ledger event against a budget line.
// Amount is signed and already expressed in the line's budget currency;
// the original figures are kept for audit.
type ConsumptionEntry struct {
	ID               uuid.UUID            `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID            `gorm:"type:uuid;not null;index"`
	LineID           uuid.UUID            `gorm:"type:uuid;not null;index:idx_boq_consumption_line"`
	SourceSystem     string               `gorm:"type:varchar(100);not null;uniqueIndex:idx_boq_consumption_source,priority:1"`
	SourceID         string               `gorm:"type:varchar(100);not null;uniqueIndex:idx_boq_consumption_source,priority:2"`
	Quantity         decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Amount           decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency         valueobject.Currency `gorm:"type:varchar(3);not null"`
	OriginalAmount   decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	OriginalCurrency valueobject.Currency `gorm:"type:varchar(3);not null"`
	ExchangeRate     decimal.Decimal      `gorm:"type:decimal(18,8);not null"`
	Distribution     Distribution         `gorm:"type:text"`
	EffectiveDate    time.Time            `gorm:"not null"`
	RecordedBy       uuid.UUID            `gorm:"type:uuid;not null"`
	CreatedAt        time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConsumptionEntry) TableName() string {
	return "boq_consumptions"
}

// NewConsumptionEntry records a consumption that already passed the limit check.
// converted is the amount in the line's currency; original is what the source posted.
func NewConsumptionEntry(
	line *BudgetLine,
	source SourceRef,
	quantity decimal.Decimal,
	converted valueobject.Money,
	original valueobject.Money,
	rate decimal.Decimal,
	effectiveDate time.Time,
	recordedBy uuid.UUID,
) (*ConsumptionEntry, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if recordedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Recording user is required")
	}
	if quantity.IsZero() && converted.IsZero() {
		return nil, shared.NewDomainError("INVALID_CONSUMPTION", "Consumption must change quantity or amount")
	}
	if effectiveDate.IsZero() {
		effectiveDate = time.Now()
	}
	return &ConsumptionEntry{
		ID:               uuid.New(),
		TenantID:         line.TenantID,
		LineID:           line.ID,
		SourceSystem:     source.System,
		SourceID:         source.ID,
		Quantity:         quantity,
		Amount:           converted.Amount(),
		Currency:         converted.Currency(),
		OriginalAmount:   original.Amount(),
		OriginalCurrency: original.Currency(),
		ExchangeRate:     rate,
		Distribution:     line.Distribution.Clone(),
		EffectiveDate:    effectiveDate,
		RecordedBy:       recordedBy,
		CreatedAt:        time.Now(),
	}, nil
}

// Source returns the entry's source reference
func (e *ConsumptionEntry) Source() SourceRef {
	return SourceRef{System: e.SourceSystem, ID: e.SourceID}
}

// IsReversal reports whether the entry gives budget back.
func (e *ConsumptionEntry) IsReversal() bool {
	return e.Quantity.IsNegative() || e.Amount.IsNegative()
}
