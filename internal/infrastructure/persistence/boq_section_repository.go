package persistence

import (
	"context"
	"errors"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/erp/budget/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSectionRepository implements SectionRepository using GORM
type GormSectionRepository struct {
	db *gorm.DB
}

// NewGormSectionRepository creates a new GormSectionRepository
func NewGormSectionRepository(db *gorm.DB) *GormSectionRepository {
	return &GormSectionRepository{db: db}
}

// FindByIDForTenant finds a section by ID within a tenant
func (r *GormSectionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*budget.Section, error) {
	var section budget.Section
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&section).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &section, nil
}

// FindAllForTenant lists sections ordered by sequence, then name
func (r *GormSectionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]budget.Section, error) {
	sections := make([]budget.Section, 0)
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID))
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Order("sequence ASC, name ASC").Find(&sections).Error; err != nil {
		return nil, err
	}
	return sections, nil
}

// ExistsByName checks if a section name is taken within a tenant
func (r *GormSectionRepository) ExistsByName(ctx context.Context, tenantID uuid.UUID, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&budget.Section{}).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a section
func (r *GormSectionRepository) Save(ctx context.Context, section *budget.Section) error {
	if err := r.db.WithContext(ctx).Save(section).Error; err != nil {
		if isUniqueViolation(err) {
			return budget.ErrDuplicateSection.WithDetail("name", section.Name)
		}
		return err
	}
	return nil
}

// Ensure GormSectionRepository implements SectionRepository
var _ budget.SectionRepository = (*GormSectionRepository)(nil)
