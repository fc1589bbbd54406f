package persistence

import (
	"context"
	"errors"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBudgetLineRepository implements LineRepository using GORM
type GormBudgetLineRepository struct {
	db *gorm.DB
}

// NewGormBudgetLineRepository creates a new GormBudgetLineRepository
func NewGormBudgetLineRepository(db *gorm.DB) *GormBudgetLineRepository {
	return &GormBudgetLineRepository{db: db}
}

// FindByIDForTenant finds a budget line by ID within a tenant
func (r *GormBudgetLineRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*budget.BudgetLine, error) {
	var line budget.BudgetLine
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// LockForUpdate locks lines with SELECT ... FOR UPDATE in ascending ID order.
// Missing IDs are simply absent from the result.
func (r *GormBudgetLineRepository) LockForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]budget.BudgetLine, error) {
	if len(ids) == 0 {
		return []budget.BudgetLine{}, nil
	}

	var lines []budget.BudgetLine
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// FindByDocument finds the lines of a document ordered by sequence
func (r *GormBudgetLineRepository) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]budget.BudgetLine, error) {
	lines := make([]budget.BudgetLine, 0)
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("sequence ASC, created_at ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// CreateBatch inserts lines
func (r *GormBudgetLineRepository) CreateBatch(ctx context.Context, lines []budget.BudgetLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

// Save updates a line
func (r *GormBudgetLineRepository) Save(ctx context.Context, line *budget.BudgetLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// Delete deletes a line
func (r *GormBudgetLineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&budget.BudgetLine{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Reparent moves every line of one document to another
func (r *GormBudgetLineRepository) Reparent(ctx context.Context, fromDocumentID, toDocumentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&budget.BudgetLine{}).
		Where("document_id = ?", fromDocumentID).
		Update("document_id", toDocumentID).Error
}

// Ensure GormBudgetLineRepository implements LineRepository
var _ budget.LineRepository = (*GormBudgetLineRepository)(nil)
