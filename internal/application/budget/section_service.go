package budget

import (
	"context"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/google/uuid"
)

// SectionService manages the BOQ section catalog
type SectionService struct {
	txScope TransactionScope
}

// NewSectionService creates a new SectionService
func NewSectionService(txScope TransactionScope) *SectionService {
	return &SectionService{txScope: txScope}
}

// Create adds a section; names are unique per tenant
func (s *SectionService) Create(ctx context.Context, tenantID uuid.UUID, req CreateSectionRequest) (*SectionResponse, error) {
	section, err := budget.NewSection(tenantID, req.Name, req.Code, req.Sequence)
	if err != nil {
		return nil, err
	}
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Sections().ExistsByName(ctx, tenantID, section.Name)
		if err != nil {
			return err
		}
		if exists {
			return budget.ErrDuplicateSection.WithDetail("name", section.Name)
		}
		return repos.Sections().Save(ctx, section)
	})
	if err != nil {
		return nil, err
	}
	resp := ToSectionResponse(section)
	return &resp, nil
}

// List returns the tenant's sections ordered by sequence
func (s *SectionService) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]SectionResponse, error) {
	var out []SectionResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		sections, err := repos.Sections().FindAllForTenant(ctx, tenantID, activeOnly)
		if err != nil {
			return err
		}
		out = make([]SectionResponse, 0, len(sections))
		for i := range sections {
			out = append(out, ToSectionResponse(&sections[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deactivate archives a section
func (s *SectionService) Deactivate(ctx context.Context, tenantID, id uuid.UUID) (*SectionResponse, error) {
	var resp SectionResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		section, err := repos.Sections().FindByIDForTenant(ctx, tenantID, id)
		if err != nil {
			return err
		}
		section.Deactivate()
		if err := repos.Sections().Save(ctx, section); err != nil {
			return err
		}
		resp = ToSectionResponse(section)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
