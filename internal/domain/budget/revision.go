package budget

import (
	"strings"
	"time"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
)

// RevisionLink connects a frozen snapshot to the document that continued as the next version.
// A snapshot appears on the snapshot side of at most one link, so history never branches.
type RevisionLink struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	SnapshotID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	SuccessorID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Reason      string     `gorm:"type:text;not null"`
	ApprovedBy  *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt  *time.Time
	RevisedBy   uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RevisionLink) TableName() string {
	return "boq_revisions"
}

// NewRevisionLink links a fork's snapshot to its successor, copying the snapshot's approval stamps.
func NewRevisionLink(snapshot, successor *BudgetDocument, reason string, revisedBy uuid.UUID) (*RevisionLink, error) {
	if snapshot.ID == successor.ID {
		return nil, shared.NewDomainError("INVALID_REVISION", "Snapshot and successor must be different documents")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REVISION", "Revision reason is required")
	}
	return &RevisionLink{
		ID:          uuid.New(),
		TenantID:    successor.TenantID,
		SnapshotID:  snapshot.ID,
		SuccessorID: successor.ID,
		Reason:      reason,
		ApprovedBy:  snapshot.ApprovedBy,
		ApprovedAt:  snapshot.ApprovedAt,
		RevisedBy:   revisedBy,
		CreatedAt:   time.Now(),
	}, nil
}
