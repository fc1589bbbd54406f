package budget

import (
	"time"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentResponse represents a BOQ in API responses
type DocumentResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	Name              string          `json:"name"`
	ProjectID         uuid.UUID       `json:"project_id"`
	CostCenterID      *uuid.UUID      `json:"cost_center_id,omitempty"`
	Currency          string          `json:"currency"`
	BOQVersion        int             `json:"boq_version"`
	State             string          `json:"state"`
	Active            bool            `json:"active"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy        *uuid.UUID      `json:"approved_by,omitempty"`
	PreviousVersionID *uuid.UUID      `json:"previous_version_id,omitempty"`
	TotalBudget       decimal.Decimal `json:"total_budget"`
	Lines             []LineResponse  `json:"lines"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// LineResponse represents a budget line in API responses
type LineResponse struct {
	ID               uuid.UUID           `json:"id"`
	DocumentID       uuid.UUID           `json:"document_id"`
	SectionID        *uuid.UUID          `json:"section_id,omitempty"`
	ProductID        *uuid.UUID          `json:"product_id,omitempty"`
	Description      string              `json:"description"`
	CostType         string              `json:"cost_type"`
	Quantity         decimal.Decimal     `json:"quantity"`
	UnitRate         decimal.Decimal     `json:"unit_rate"`
	BudgetAmount     decimal.Decimal     `json:"budget_amount"`
	ExpenseAccountID uuid.UUID           `json:"expense_account_id"`
	Distribution     budget.Distribution `json:"distribution"`
	AllowOverride    bool                `json:"allow_override"`
	Sequence         int                 `json:"sequence"`
}

// ToDocumentResponse converts a document into its response
func ToDocumentResponse(d *budget.BudgetDocument) DocumentResponse {
	lines := make([]LineResponse, 0, len(d.Lines))
	for i := range d.Lines {
		lines = append(lines, ToLineResponse(&d.Lines[i]))
	}
	return DocumentResponse{
		ID:                d.ID,
		TenantID:          d.TenantID,
		Name:              d.Name,
		ProjectID:         d.ProjectID,
		CostCenterID:      d.CostCenterID,
		Currency:          d.Currency.String(),
		BOQVersion:        d.BOQVersion,
		State:             d.State.String(),
		Active:            d.Active,
		ApprovedAt:        d.ApprovedAt,
		ApprovedBy:        d.ApprovedBy,
		PreviousVersionID: d.PreviousVersionID,
		TotalBudget:       d.TotalBudget(),
		Lines:             lines,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		Version:           d.Version,
	}
}

// ToLineResponse converts a line into its response
func ToLineResponse(l *budget.BudgetLine) LineResponse {
	return LineResponse{
		ID:               l.ID,
		DocumentID:       l.DocumentID,
		SectionID:        l.SectionID,
		ProductID:        l.ProductID,
		Description:      l.Description,
		CostType:         string(l.CostType),
		Quantity:         l.Quantity,
		UnitRate:         l.UnitRate,
		BudgetAmount:     l.BudgetAmount,
		ExpenseAccountID: l.ExpenseAccountID,
		Distribution:     l.Distribution,
		AllowOverride:    l.AllowOverride,
		Sequence:         l.Sequence,
	}
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID               uuid.UUID           `json:"id"`
	LineID           uuid.UUID           `json:"line_id"`
	SourceSystem     string              `json:"source_system"`
	SourceID         string              `json:"source_id"`
	Quantity         decimal.Decimal     `json:"quantity"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency"`
	OriginalAmount   decimal.Decimal     `json:"original_amount"`
	OriginalCurrency string              `json:"original_currency"`
	ExchangeRate     decimal.Decimal     `json:"exchange_rate"`
	Distribution     budget.Distribution `json:"distribution"`
	EffectiveDate    time.Time           `json:"effective_date"`
	RecordedBy       uuid.UUID           `json:"recorded_by"`
	CreatedAt        time.Time           `json:"created_at"`
}

// ToEntryResponse converts a ledger entry into its response
func ToEntryResponse(e *budget.ConsumptionEntry) EntryResponse {
	return EntryResponse{
		ID:               e.ID,
		LineID:           e.LineID,
		SourceSystem:     e.SourceSystem,
		SourceID:         e.SourceID,
		Quantity:         e.Quantity,
		Amount:           e.Amount,
		Currency:         e.Currency.String(),
		OriginalAmount:   e.OriginalAmount,
		OriginalCurrency: e.OriginalCurrency.String(),
		ExchangeRate:     e.ExchangeRate,
		Distribution:     e.Distribution,
		EffectiveDate:    e.EffectiveDate,
		RecordedBy:       e.RecordedBy,
		CreatedAt:        e.CreatedAt,
	}
}

// PostingResult is returned for an accepted consumption. ExpenseAccountID and
// Distribution tell the caller where its own accounting entry belongs.
type PostingResult struct {
	Entry            EntryResponse       `json:"entry"`
	Remaining        budget.Remaining    `json:"remaining"`
	ExpenseAccountID uuid.UUID           `json:"expense_account_id"`
	Distribution     budget.Distribution `json:"distribution"`
}

// RemainingResponse is the read-only remaining budget of a line
type RemainingResponse struct {
	LineID            uuid.UUID       `json:"line_id"`
	Currency          string          `json:"currency"`
	BudgetQuantity    decimal.Decimal `json:"budget_quantity"`
	BudgetAmount      decimal.Decimal `json:"budget_amount"`
	ConsumedQuantity  decimal.Decimal `json:"consumed_quantity"`
	ConsumedAmount    decimal.Decimal `json:"consumed_amount"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
	ConsumptionPct    decimal.Decimal `json:"consumption_percentage"`
	AllowOverride     bool            `json:"allow_override"`
}

// RevisionResponse represents one link of a document's revision history
type RevisionResponse struct {
	ID              uuid.UUID  `json:"id"`
	SnapshotID      uuid.UUID  `json:"snapshot_id"`
	SnapshotVersion int        `json:"snapshot_version"`
	SuccessorID     uuid.UUID  `json:"successor_id"`
	Reason          string     `json:"reason"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RevisedBy       uuid.UUID  `json:"revised_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

// SectionResponse represents a BOQ section
type SectionResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Code     string    `json:"code,omitempty"`
	Sequence int       `json:"sequence"`
	Active   bool      `json:"active"`
}

// ToSectionResponse converts a section into its response
func ToSectionResponse(s *budget.Section) SectionResponse {
	return SectionResponse{ID: s.ID, Name: s.Name, Code: s.Code, Sequence: s.Sequence, Active: s.Active}
}

// CreateDocumentRequest is the input for BOQService.Create
type CreateDocumentRequest struct {
	Name         string     `json:"name"`
	ProjectID    uuid.UUID  `json:"project_id" binding:"required"`
	CostCenterID *uuid.UUID `json:"cost_center_id"`
	Currency     string     `json:"currency" binding:"required,iso4217"`
}

// LineRequest is the input for adding a budget line
type LineRequest struct {
	SectionID        *uuid.UUID          `json:"section_id"`
	ProductID        *uuid.UUID          `json:"product_id"`
	Description      string              `json:"description" binding:"required"`
	CostType         string              `json:"cost_type" binding:"required,oneof=material labor subcontract service overhead"`
	Quantity         decimal.Decimal     `json:"quantity" binding:"required"`
	UnitRate         decimal.Decimal     `json:"unit_rate"`
	ExpenseAccountID uuid.UUID           `json:"expense_account_id" binding:"required"`
	Distribution     budget.Distribution `json:"distribution"`
	AllowOverride    bool                `json:"allow_override"`
	Sequence         int                 `json:"sequence"`
}

// ToSpec converts the request into a domain line spec
func (r LineRequest) ToSpec() budget.LineSpec {
	return budget.LineSpec{
		SectionID:        r.SectionID,
		ProductID:        r.ProductID,
		Description:      r.Description,
		CostType:         budget.CostType(r.CostType),
		Quantity:         r.Quantity,
		UnitRate:         r.UnitRate,
		ExpenseAccountID: r.ExpenseAccountID,
		Distribution:     r.Distribution,
		AllowOverride:    r.AllowOverride,
		Sequence:         r.Sequence,
	}
}

// LineRequestFromSpec is the inverse of ToSpec
func LineRequestFromSpec(spec budget.LineSpec) LineRequest {
	return LineRequest{
		SectionID:        spec.SectionID,
		ProductID:        spec.ProductID,
		Description:      spec.Description,
		CostType:         string(spec.CostType),
		Quantity:         spec.Quantity,
		UnitRate:         spec.UnitRate,
		ExpenseAccountID: spec.ExpenseAccountID,
		Distribution:     spec.Distribution,
		AllowOverride:    spec.AllowOverride,
		Sequence:         spec.Sequence,
	}
}

// LinePatchRequest is a partial line update
type LinePatchRequest struct {
	SectionID        *uuid.UUID          `json:"section_id"`
	ProductID        *uuid.UUID          `json:"product_id"`
	Description      *string             `json:"description"`
	CostType         *string             `json:"cost_type" binding:"omitempty,oneof=material labor subcontract service overhead"`
	Quantity         *decimal.Decimal    `json:"quantity"`
	UnitRate         *decimal.Decimal    `json:"unit_rate"`
	ExpenseAccountID *uuid.UUID          `json:"expense_account_id"`
	Distribution     budget.Distribution `json:"distribution"`
	AllowOverride    *bool               `json:"allow_override"`
	Sequence         *int                `json:"sequence"`
}

// ToPatch converts the request into a domain line patch
func (r LinePatchRequest) ToPatch() budget.LinePatch {
	p := budget.LinePatch{
		SectionID:        r.SectionID,
		ProductID:        r.ProductID,
		Description:      r.Description,
		Quantity:         r.Quantity,
		UnitRate:         r.UnitRate,
		ExpenseAccountID: r.ExpenseAccountID,
		Distribution:     r.Distribution,
		AllowOverride:    r.AllowOverride,
		Sequence:         r.Sequence,
	}
	if r.CostType != nil {
		ct := budget.CostType(*r.CostType)
		p.CostType = &ct
	}
	return p
}

// HeaderPatchRequest is a partial header update
type HeaderPatchRequest struct {
	Name         *string    `json:"name"`
	CostCenterID *uuid.UUID `json:"cost_center_id"`
}

// DocumentListFilter represents filter options for the BOQ list
type DocumentListFilter struct {
	ProjectID       *uuid.UUID `form:"project_id"`
	State           string     `form:"state" binding:"omitempty,oneof=draft submitted approved locked closed"`
	IncludeInactive bool       `form:"include_inactive"`
	Page            int        `form:"page" binding:"omitempty,min=1"`
	PageSize        int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// BudgetVsActualLine is one row of the budget-vs-actual aggregate
type BudgetVsActualLine struct {
	LineID           uuid.UUID       `json:"line_id"`
	Description      string          `json:"description"`
	CostType         string          `json:"cost_type"`
	SectionID        *uuid.UUID      `json:"section_id,omitempty"`
	BudgetQuantity   decimal.Decimal `json:"budget_quantity"`
	BudgetAmount     decimal.Decimal `json:"budget_amount"`
	ConsumedQuantity decimal.Decimal `json:"consumed_quantity"`
	ConsumedAmount   decimal.Decimal `json:"consumed_amount"`
	Variance         decimal.Decimal `json:"variance"`
	VarianceQuantity decimal.Decimal `json:"variance_quantity"`
	ProgressPct      decimal.Decimal `json:"consumption_progress"`
}

// BudgetVsActualResponse aggregates budget and consumption for one document
type BudgetVsActualResponse struct {
	DocumentID    uuid.UUID            `json:"document_id"`
	BOQVersion    int                  `json:"boq_version"`
	Currency      string               `json:"currency"`
	Lines         []BudgetVsActualLine `json:"lines"`
	TotalBudget   decimal.Decimal      `json:"total_budget"`
	TotalConsumed decimal.Decimal      `json:"total_consumed"`
	TotalVariance decimal.Decimal      `json:"total_variance"`
	TotalProgress decimal.Decimal      `json:"consumption_progress"`
}

// EditOp names one business edit in an Edit batch
type EditOp string

const (
	EditAddLine      EditOp = "add_line"
	EditUpdateLine   EditOp = "update_line"
	EditRemoveLine   EditOp = "remove_line"
	EditUpdateHeader EditOp = "update_header"
)

// Edit is one business change applied by BOQService.Edit. LineID refers to the line
// as the caller last saw it, even if the edit forks the document first.
type Edit struct {
	Op     EditOp              `json:"op" binding:"required,oneof=add_line update_line remove_line update_header"`
	LineID *uuid.UUID          `json:"line_id"`
	Line   *LineRequest        `json:"line"`
	Patch  *LinePatchRequest   `json:"patch"`
	Header *HeaderPatchRequest `json:"header"`
}

// EditRequest is a batch of edits applied atomically
type EditRequest struct {
	Edits []Edit `json:"edits" binding:"required,min=1,dive"`
}

// ReviseRequest is the input for an explicit revision
type ReviseRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// CreateSectionRequest is the input for SectionService.Create
type CreateSectionRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Code     string `json:"code" binding:"max=20"`
	Sequence int    `json:"sequence"`
}
