package persistence

import (
	"context"
	"errors"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/erp/budget/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormConsumptionLedger implements ConsumptionLedger using GORM.
// It only ever inserts; the append-only guard rejects anything else on the table.
type GormConsumptionLedger struct {
	db *gorm.DB
}

// NewGormConsumptionLedger creates a new GormConsumptionLedger
func NewGormConsumptionLedger(db *gorm.DB) *GormConsumptionLedger {
	return &GormConsumptionLedger{db: db}
}

// Append inserts entries. A source that is already recorded fails with DUPLICATE_CONSUMPTION.
func (r *GormConsumptionLedger) Append(ctx context.Context, entries ...*budget.ConsumptionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(entries).Error; err != nil {
		if isUniqueViolation(err) {
			return budget.ErrDuplicateConsumption
		}
		return err
	}
	return nil
}

// SumByLines aggregates quantity and amount per line
func (r *GormConsumptionLedger) SumByLines(ctx context.Context, lineIDs []uuid.UUID) (map[uuid.UUID]budget.Usage, error) {
	usage := make(map[uuid.UUID]budget.Usage, len(lineIDs))
	if len(lineIDs) == 0 {
		return usage, nil
	}

	var rows []struct {
		LineID   uuid.UUID
		Quantity decimal.Decimal
		Amount   decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&budget.ConsumptionEntry{}).
		Select("line_id, COALESCE(SUM(quantity), 0) AS quantity, COALESCE(SUM(amount), 0) AS amount").
		Where("line_id IN ?", lineIDs).
		Group("line_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		usage[row.LineID] = budget.Usage{Quantity: row.Quantity, Amount: row.Amount}
	}
	return usage, nil
}

// ExistingSources returns the subset of refs already present in the ledger
func (r *GormConsumptionLedger) ExistingSources(ctx context.Context, refs []budget.SourceRef) ([]budget.SourceRef, error) {
	bySystem := make(map[string][]string)
	for _, ref := range refs {
		bySystem[ref.System] = append(bySystem[ref.System], ref.ID)
	}

	existing := make([]budget.SourceRef, 0)
	for system, ids := range bySystem {
		var found []string
		if err := r.db.WithContext(ctx).
			Model(&budget.ConsumptionEntry{}).
			Where("source_system = ? AND source_id IN ?", system, ids).
			Pluck("source_id", &found).Error; err != nil {
			return nil, err
		}
		for _, id := range found {
			existing = append(existing, budget.SourceRef{System: system, ID: id})
		}
	}
	return existing, nil
}

// FindByLine lists a line's entries, newest first unless the filter says otherwise
func (r *GormConsumptionLedger) FindByLine(ctx context.Context, tenantID, lineID uuid.UUID, filter shared.Filter) ([]budget.ConsumptionEntry, error) {
	entries := make([]budget.ConsumptionEntry, 0)
	orderBy := ValidateSortField(filter.OrderBy, ConsumptionEntrySortFields, "created_at")
	query := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("line_id = ?", lineID).
		Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByLine counts a line's entries
func (r *GormConsumptionLedger) CountByLine(ctx context.Context, lineID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&budget.ConsumptionEntry{}).
		Where("line_id = ?", lineID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	code := sqlState(err)
	return code == pgUniqueViolation
}

// Ensure GormConsumptionLedger implements ConsumptionLedger
var _ budget.ConsumptionLedger = (*GormConsumptionLedger)(nil)
