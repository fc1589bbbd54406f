package budget

import (
	"context"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentRepository persists BOQ headers. Lines are persisted through LineRepository.
type DocumentRepository interface {
	// FindByIDForTenant loads a document with its lines
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*BudgetDocument, error)
	// FindByIDForUpdate loads a document with its lines holding a row lock on the header
	// until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*BudgetDocument, error)
	// LockProject row-locks every active document of a project in ascending ID order
	LockProject(ctx context.Context, tenantID, projectID uuid.UUID) error
	// ExistsActiveBudget reports whether another active document of the project is approved or locked
	ExistsActiveBudget(ctx context.Context, tenantID, projectID, excludeID uuid.UUID) (bool, error)
	// NextVersion returns one more than the highest BOQ version used by the project
	NextVersion(ctx context.Context, tenantID, projectID uuid.UUID) (int, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]BudgetDocument, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	// FindHeadersByIDs loads document headers without lines
	FindHeadersByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]BudgetDocument, error)
	// Create inserts the header only
	Create(ctx context.Context, doc *BudgetDocument) error
	// SaveWithLock updates the header if the stored row version still matches, then bumps it
	SaveWithLock(ctx context.Context, doc *BudgetDocument) error
}

// LineRepository persists budget lines
type LineRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*BudgetLine, error)
	// LockForUpdate row-locks the given lines in ascending ID order and returns them in that order
	LockForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]BudgetLine, error)
	FindByDocument(ctx context.Context, documentID uuid.UUID) ([]BudgetLine, error)
	CreateBatch(ctx context.Context, lines []BudgetLine) error
	Save(ctx context.Context, line *BudgetLine) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Reparent moves every line of one document to another
	Reparent(ctx context.Context, fromDocumentID, toDocumentID uuid.UUID) error
}

// ConsumptionLedger is the append-only store of consumption entries.
// It deliberately has no update or delete operation.
type ConsumptionLedger interface {
	Append(ctx context.Context, entries ...*ConsumptionEntry) error
	// SumByLines returns Σ quantity and Σ amount per line, refunds included; missing lines have zero usage
	SumByLines(ctx context.Context, lineIDs []uuid.UUID) (map[uuid.UUID]Usage, error)
	// ExistingSources returns which of the given source references are already recorded
	ExistingSources(ctx context.Context, refs []SourceRef) ([]SourceRef, error)
	FindByLine(ctx context.Context, tenantID, lineID uuid.UUID, filter shared.Filter) ([]ConsumptionEntry, error)
	CountByLine(ctx context.Context, lineID uuid.UUID) (int64, error)
}

// RevisionRepository stores revision links
type RevisionRepository interface {
	Create(ctx context.Context, link *RevisionLink) error
	FindBySnapshot(ctx context.Context, snapshotID uuid.UUID) (*RevisionLink, error)
	// FindBySuccessor returns every link whose successor is the document, oldest first
	FindBySuccessor(ctx context.Context, tenantID, successorID uuid.UUID) ([]RevisionLink, error)
}

// SectionRepository stores BOQ sections
type SectionRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Section, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Section, error)
	ExistsByName(ctx context.Context, tenantID uuid.UUID, name string) (bool, error)
	Save(ctx context.Context, section *Section) error
}
