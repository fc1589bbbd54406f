package persistence

import (
	"context"
	"errors"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/erp/budget/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBudgetDocumentRepository implements DocumentRepository using GORM
type GormBudgetDocumentRepository struct {
	db *gorm.DB
}

// NewGormBudgetDocumentRepository creates a new GormBudgetDocumentRepository
func NewGormBudgetDocumentRepository(db *gorm.DB) *GormBudgetDocumentRepository {
	return &GormBudgetDocumentRepository{db: db}
}

// FindByIDForTenant finds a BOQ with its lines
func (r *GormBudgetDocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*budget.BudgetDocument, error) {
	return r.find(ctx, r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a BOQ with its lines, holding FOR UPDATE on the header row
func (r *GormBudgetDocumentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*budget.BudgetDocument, error) {
	return r.find(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormBudgetDocumentRepository) find(ctx context.Context, query *gorm.DB, tenantID, id uuid.UUID) (*budget.BudgetDocument, error) {
	var doc budget.BudgetDocument
	if err := query.
		Omit(clause.Associations).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	lines, err := NewGormBudgetLineRepository(r.db).FindByDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	return &doc, nil
}

// LockProject row-locks the project's active documents in ascending ID order
func (r *GormBudgetDocumentRepository) LockProject(ctx context.Context, tenantID, projectID uuid.UUID) error {
	var ids []uuid.UUID
	return r.db.WithContext(ctx).
		Model(&budget.BudgetDocument{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND project_id = ? AND active = ?", tenantID, projectID, true).
		Order("id ASC").
		Pluck("id", &ids).Error
}

// ExistsActiveBudget checks whether another active document of the project is approved or locked
func (r *GormBudgetDocumentRepository) ExistsActiveBudget(ctx context.Context, tenantID, projectID, excludeID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&budget.BudgetDocument{}).
		Where("tenant_id = ? AND project_id = ? AND active = ? AND id <> ?", tenantID, projectID, true, excludeID).
		Where("state IN ?", []budget.DocumentState{budget.StateApproved, budget.StateLocked}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// NextVersion returns the highest BOQ version used by the project plus one
func (r *GormBudgetDocumentRepository) NextVersion(ctx context.Context, tenantID, projectID uuid.UUID) (int, error) {
	var result struct {
		MaxVersion int
	}
	if err := r.db.WithContext(ctx).
		Model(&budget.BudgetDocument{}).
		Select("COALESCE(MAX(boq_version), 0) AS max_version").
		Where("tenant_id = ? AND project_id = ?", tenantID, projectID).
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.MaxVersion + 1, nil
}

// FindAllForTenant lists BOQs with their lines
func (r *GormBudgetDocumentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]budget.BudgetDocument, error) {
	var docs []budget.BudgetDocument
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&budget.BudgetDocument{}).
			Scopes(tenant.Scope(tenantID)),
		filter,
	)
	if err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC, created_at ASC")
		}).
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// CountForTenant counts BOQs matching the filter
func (r *GormBudgetDocumentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&budget.BudgetDocument{}).Scopes(tenant.Scope(tenantID))
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindHeadersByIDs finds BOQ headers without lines
func (r *GormBudgetDocumentRepository) FindHeadersByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]budget.BudgetDocument, error) {
	if len(ids) == 0 {
		return []budget.BudgetDocument{}, nil
	}

	var docs []budget.BudgetDocument
	if err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Create inserts the header; lines are written by the line repository
func (r *GormBudgetDocumentRepository) Create(ctx context.Context, doc *budget.BudgetDocument) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(doc).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormBudgetDocumentRepository) SaveWithLock(ctx context.Context, doc *budget.BudgetDocument) error {
	result := r.db.WithContext(ctx).
		Model(&budget.BudgetDocument{}).
		Where("id = ? AND version = ?", doc.ID, doc.Version).
		Updates(map[string]interface{}{
			"name":                doc.Name,
			"cost_center_id":      doc.CostCenterID,
			"boq_version":         doc.BOQVersion,
			"state":               doc.State,
			"active":              doc.Active,
			"approved_at":         doc.ApprovedAt,
			"approved_by":         doc.ApprovedBy,
			"previous_version_id": doc.PreviousVersionID,
			"version":             doc.Version + 1,
			"updated_at":          doc.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithDetail("document_id", doc.ID.String())
	}
	doc.Version++
	return nil
}

func (r *GormBudgetDocumentRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, BudgetDocumentSortFields, "created_at")
	return query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
}

func (r *GormBudgetDocumentRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "project_id":
			query = query.Where("project_id = ?", value)
		case "state":
			query = query.Where("state = ?", value)
		case "active":
			query = query.Where("active = ?", value)
		}
	}
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+filter.Search+"%")
	}
	return query
}

// Ensure GormBudgetDocumentRepository implements DocumentRepository
var _ budget.DocumentRepository = (*GormBudgetDocumentRepository)(nil)
