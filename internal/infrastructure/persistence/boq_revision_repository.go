package persistence

import (
	"context"
	"errors"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRevisionRepository implements RevisionRepository using GORM
type GormRevisionRepository struct {
	db *gorm.DB
}

// NewGormRevisionRepository creates a new GormRevisionRepository
func NewGormRevisionRepository(db *gorm.DB) *GormRevisionRepository {
	return &GormRevisionRepository{db: db}
}

// Create inserts a revision link
func (r *GormRevisionRepository) Create(ctx context.Context, link *budget.RevisionLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

// FindBySnapshot finds the link that froze a snapshot
func (r *GormRevisionRepository) FindBySnapshot(ctx context.Context, snapshotID uuid.UUID) (*budget.RevisionLink, error) {
	var link budget.RevisionLink
	if err := r.db.WithContext(ctx).Where("snapshot_id = ?", snapshotID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// FindBySuccessor lists the links of a document, oldest first
func (r *GormRevisionRepository) FindBySuccessor(ctx context.Context, tenantID, successorID uuid.UUID) ([]budget.RevisionLink, error) {
	links := make([]budget.RevisionLink, 0)
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND successor_id = ?", tenantID, successorID).
		Order("created_at ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// Ensure GormRevisionRepository implements RevisionRepository
var _ budget.RevisionRepository = (*GormRevisionRepository)(nil)
