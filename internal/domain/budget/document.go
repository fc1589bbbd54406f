package budget

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/erp/budget/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultDocumentName is used when a BOQ is created without a name.
const DefaultDocumentName = "New"

const revisionSuffix = " (Rev "

// BudgetDocument is one version of a project's Bill of Quantities.
// It is the aggregate root for its budget lines and owns the approval state machine.
// Snapshots created by a revision fork are kept with Active=false and State=locked.
type BudgetDocument struct {
	shared.TenantAggregateRoot
	Name              string               `gorm:"type:varchar(200);not null"`
	ProjectID         uuid.UUID            `gorm:"type:uuid;not null;index:idx_boq_project_state,priority:1"`
	CostCenterID      *uuid.UUID           `gorm:"type:uuid"`
	Currency          valueobject.Currency `gorm:"type:varchar(3);not null"`
	BOQVersion        int                  `gorm:"column:boq_version;not null"`
	State             DocumentState        `gorm:"type:varchar(20);not null;index:idx_boq_project_state,priority:2"`
	Active            bool                 `gorm:"not null"`
	ApprovedAt        *time.Time
	ApprovedBy        *uuid.UUID   `gorm:"type:uuid"`
	PreviousVersionID *uuid.UUID   `gorm:"type:uuid"`
	Lines             []BudgetLine `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (BudgetDocument) TableName() string {
	return "boq_documents"
}

// DocumentSpec holds the header fields of a new BOQ.
type DocumentSpec struct {
	Name         string
	ProjectID    uuid.UUID
	CostCenterID *uuid.UUID
	Currency     string
}

// NewBudgetDocument creates a draft BOQ at the given version.
func NewBudgetDocument(tenantID uuid.UUID, spec DocumentSpec, version int, createdBy uuid.UUID) (*BudgetDocument, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if spec.ProjectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROJECT", "Project is required")
	}
	cur, err := valueobject.ParseCurrency(spec.Currency)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_CURRENCY", err.Error())
	}
	if version < 1 {
		version = 1
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = DefaultDocumentName
	}

	doc := &BudgetDocument{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		Name:                name,
		ProjectID:           spec.ProjectID,
		CostCenterID:        spec.CostCenterID,
		Currency:            cur,
		BOQVersion:          version,
		State:               StateDraft,
		Active:              true,
		Lines:               make([]BudgetLine, 0),
	}
	doc.AddDomainEvent(NewDocumentCreatedEvent(doc))
	return doc, nil
}

// TotalBudget sums the budget amount of all lines.
func (d *BudgetDocument) TotalBudget() decimal.Decimal {
	total := decimal.Zero
	for i := range d.Lines {
		total = total.Add(d.Lines[i].BudgetAmount)
	}
	return total
}

// SortLines orders lines by sequence, then creation time.
func (d *BudgetDocument) SortLines() {
	sort.SliceStable(d.Lines, func(i, j int) bool {
		if d.Lines[i].Sequence != d.Lines[j].Sequence {
			return d.Lines[i].Sequence < d.Lines[j].Sequence
		}
		return d.Lines[i].CreatedAt.Before(d.Lines[j].CreatedAt)
	})
}

// FindLine returns the line with the given ID.
func (d *BudgetDocument) FindLine(lineID uuid.UUID) (*BudgetLine, error) {
	for i := range d.Lines {
		if d.Lines[i].ID == lineID {
			return &d.Lines[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

// ensureEditable guards in-place business edits: only drafts may change.
func (d *BudgetDocument) ensureEditable() error {
	if !d.Active {
		return ErrDocumentImmutable.WithDetail("reason", "snapshot")
	}
	if !d.State.IsEditable() {
		return ErrDocumentImmutable.WithDetail("state", d.State.String())
	}
	return nil
}

// AddLine appends a new budget line to a draft document.
func (d *BudgetDocument) AddLine(spec LineSpec) (*BudgetLine, error) {
	if err := d.ensureEditable(); err != nil {
		return nil, err
	}
	if spec.Sequence == 0 {
		spec.Sequence = (len(d.Lines) + 1) * 10
	}
	line, err := newBudgetLine(d, spec)
	if err != nil {
		return nil, err
	}
	d.Lines = append(d.Lines, *line)
	d.touch()
	return &d.Lines[len(d.Lines)-1], nil
}

// UpdateLine applies a patch to one line of a draft document.
func (d *BudgetDocument) UpdateLine(lineID uuid.UUID, patch LinePatch) (*BudgetLine, error) {
	if err := d.ensureEditable(); err != nil {
		return nil, err
	}
	line, err := d.FindLine(lineID)
	if err != nil {
		return nil, err
	}
	spec := patch.ApplyTo(line.Spec())
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	updated := *line
	updated.apply(spec)
	if err := updated.alignDistribution(d.CostCenterID); err != nil {
		return nil, err
	}
	*line = updated
	d.touch()
	return line, nil
}

// RemoveLine detaches a line from a draft document and returns it.
func (d *BudgetDocument) RemoveLine(lineID uuid.UUID) (*BudgetLine, error) {
	if err := d.ensureEditable(); err != nil {
		return nil, err
	}
	for i := range d.Lines {
		if d.Lines[i].ID == lineID {
			removed := d.Lines[i]
			d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
			d.touch()
			return &removed, nil
		}
	}
	return nil, shared.ErrNotFound
}

// HeaderPatch is a partial update of the document's business header fields.
type HeaderPatch struct {
	Name         *string
	CostCenterID *uuid.UUID
}

// IsEmpty reports whether the patch changes nothing
func (p HeaderPatch) IsEmpty() bool {
	return p.Name == nil && p.CostCenterID == nil
}

// UpdateHeader changes business header fields of a draft document.
// Lines that were allocated entirely to the previous cost center follow the new one.
func (d *BudgetDocument) UpdateHeader(patch HeaderPatch) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return shared.NewDomainError("INVALID_NAME", "BOQ name cannot be empty")
		}
		d.Name = name
	}
	if patch.CostCenterID != nil {
		previous := d.CostCenterID
		next := *patch.CostCenterID
		for i := range d.Lines {
			line := &d.Lines[i]
			if previous != nil && len(line.Distribution) == 1 && line.Distribution.Includes(*previous) {
				line.Distribution = Distribution{next.String(): line.Distribution[previous.String()]}
				continue
			}
			if err := line.alignDistribution(&next); err != nil {
				return err
			}
		}
		d.CostCenterID = &next
	}
	d.touch()
	return nil
}

// Submit moves a draft with at least one line to submitted.
func (d *BudgetDocument) Submit() error {
	if d.State != StateDraft {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot submit BOQ in %s state", d.State)
	}
	if len(d.Lines) == 0 {
		return ErrEmptyBudget
	}
	d.State = StateSubmitted
	d.touch()
	d.AddDomainEvent(NewDocumentStateChangedEvent(d, StateDraft))
	return nil
}

// ResetToDraft returns a submitted document to draft.
func (d *BudgetDocument) ResetToDraft() error {
	if d.State != StateSubmitted {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot reset BOQ in %s state to draft", d.State)
	}
	d.State = StateDraft
	d.touch()
	d.AddDomainEvent(NewDocumentStateChangedEvent(d, StateSubmitted))
	return nil
}

// ValidateApproval checks the preconditions of Approve that the document can decide alone.
// Lines are re-checked because they may have been removed after submission.
func (d *BudgetDocument) ValidateApproval() error {
	if len(d.Lines) == 0 {
		return ErrEmptyBudget
	}
	if !d.Active || d.State != StateSubmitted {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot approve BOQ in %s state", d.State)
	}
	return nil
}

// Approve stamps the approval. Uniqueness of the active budget per project is checked
// by the caller under the project lock before calling.
func (d *BudgetDocument) Approve(approver uuid.UUID) error {
	if err := d.ValidateApproval(); err != nil {
		return err
	}
	if approver == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Approving user is required")
	}
	now := time.Now()
	d.State = StateApproved
	d.ApprovedAt = &now
	d.ApprovedBy = &approver
	d.touch()
	d.AddDomainEvent(NewDocumentStateChangedEvent(d, StateSubmitted))
	return nil
}

// Lock marks an approved document as the authoritative, consumption-eligible version.
func (d *BudgetDocument) Lock() error {
	if d.State != StateApproved {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot lock BOQ in %s state", d.State)
	}
	d.State = StateLocked
	d.touch()
	d.AddDomainEvent(NewDocumentStateChangedEvent(d, StateApproved))
	return nil
}

// Close is terminal; consumption is rejected afterwards.
func (d *BudgetDocument) Close() error {
	if !d.Active || !d.State.IsActiveBudget() {
		return shared.NewDomainErrorf("INVALID_STATE", "Cannot close BOQ in %s state", d.State)
	}
	from := d.State
	d.State = StateClosed
	d.touch()
	d.AddDomainEvent(NewDocumentStateChangedEvent(d, from))
	return nil
}

// ForkResult is the outcome of a copy-on-write fork.
type ForkResult struct {
	// Snapshot is the frozen copy. It takes over the existing line rows so the
	// ledger keeps pointing at the lines it was recorded against.
	Snapshot *BudgetDocument
	// Lines are the fresh draft lines created on the original document.
	Lines []BudgetLine
	// LineMap maps each snapshot line ID to its draft successor.
	LineMap map[uuid.UUID]uuid.UUID
}

// Fork freezes the current state into a snapshot and turns this document into the next
// draft version. Only submitted, approved and locked documents can be forked.
func (d *BudgetDocument) Fork(nextVersion int) (*ForkResult, error) {
	if d.State == StateClosed || !d.Active {
		return nil, ErrDocumentImmutable.WithDetail("state", d.State.String())
	}
	if !d.State.RequiresRevision() {
		return nil, shared.NewDomainErrorf("INVALID_STATE", "BOQ in %s state does not need a revision", d.State)
	}
	if nextVersion <= d.BOQVersion {
		nextVersion = d.BOQVersion + 1
	}

	snapshot := &BudgetDocument{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(d.TenantID),
		Name:                d.Name,
		ProjectID:           d.ProjectID,
		CostCenterID:        d.CostCenterID,
		Currency:            d.Currency,
		BOQVersion:          d.BOQVersion,
		State:               StateLocked,
		Active:              false,
		ApprovedAt:          d.ApprovedAt,
		ApprovedBy:          d.ApprovedBy,
		PreviousVersionID:   d.PreviousVersionID,
	}
	snapshot.CreatedBy = d.CreatedBy

	result := &ForkResult{
		Snapshot: snapshot,
		Lines:    make([]BudgetLine, 0, len(d.Lines)),
		LineMap:  make(map[uuid.UUID]uuid.UUID, len(d.Lines)),
	}
	for _, old := range d.Lines {
		frozen := old
		frozen.DocumentID = snapshot.ID
		frozen.Distribution = old.Distribution.Clone()
		snapshot.Lines = append(snapshot.Lines, frozen)

		fresh := old
		fresh.BaseEntity = shared.NewBaseEntity()
		fresh.Distribution = old.Distribution.Clone()
		result.Lines = append(result.Lines, fresh)
		result.LineMap[old.ID] = fresh.ID
	}

	d.Lines = result.Lines
	d.BOQVersion = nextVersion
	d.State = StateDraft
	d.ApprovedAt = nil
	d.ApprovedBy = nil
	d.PreviousVersionID = &snapshot.ID
	d.Name = RevisionName(d.Name, nextVersion)
	d.touch()
	d.AddDomainEvent(NewDocumentRevisedEvent(d, snapshot))
	return result, nil
}

// RevisionName strips any previous revision suffix and appends the new version.
func RevisionName(name string, version int) string {
	if idx := strings.LastIndex(name, revisionSuffix); idx > 0 && strings.HasSuffix(name, ")") {
		name = name[:idx]
	}
	return fmt.Sprintf("%s%s%d)", name, revisionSuffix, version)
}

func (d *BudgetDocument) touch() {
	d.UpdatedAt = time.Now()
}
