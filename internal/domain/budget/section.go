package budget

import (
	"strings"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
)

// Section is a reusable grouping for budget lines (Civil Works, Electrical, ...).
type Section struct {
	shared.BaseEntity
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_boq_section_name,priority:1"`
	Name     string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_boq_section_name,priority:2"`
	Code     string    `gorm:"type:varchar(20)"`
	Sequence int       `gorm:"not null"`
	Active   bool      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Section) TableName() string {
	return "boq_sections"
}

// NewSection creates an active section; sequence defaults to 10.
func NewSection(tenantID uuid.UUID, name, code string, sequence int) (*Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Section name cannot be empty")
	}
	if sequence == 0 {
		sequence = 10
	}
	return &Section{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Name:       name,
		Code:       strings.ToUpper(strings.TrimSpace(code)),
		Sequence:   sequence,
		Active:     true,
	}, nil
}

// Deactivate archives the section; existing lines keep their reference.
func (s *Section) Deactivate() {
	s.Active = false
	s.Touch()
}
