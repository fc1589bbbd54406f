package budget

import (
	"bytes"
	"context"
	"slices"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RevisionEngine performs copy-on-write forks of documents that are past draft.
// It runs inside the caller's transaction and expects the document row to be locked.
type RevisionEngine struct {
	logger *zap.Logger
}

// NewRevisionEngine creates a new RevisionEngine
func NewRevisionEngine(logger *zap.Logger) *RevisionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevisionEngine{logger: logger}
}

// Fork freezes doc into an inactive snapshot, links it, and turns doc into the next
// draft version. The snapshot keeps the existing line rows together with their
// ledger entries; doc continues with fresh line copies. The caller saves doc.
func (e *RevisionEngine) Fork(ctx context.Context, repos TransactionalRepositories, doc *budget.BudgetDocument, reason string, actor uuid.UUID) (*budget.ForkResult, error) {
	next, err := repos.Documents().NextVersion(ctx, doc.TenantID, doc.ProjectID)
	if err != nil {
		return nil, err
	}
	previousVersion := doc.BOQVersion

	result, err := doc.Fork(next)
	if err != nil {
		return nil, err
	}
	link, err := budget.NewRevisionLink(result.Snapshot, doc, reason, actor)
	if err != nil {
		return nil, err
	}

	if err := repos.Documents().Create(ctx, result.Snapshot); err != nil {
		return nil, err
	}
	// Row locks are taken in id order, as on the posting path.
	if len(result.Snapshot.Lines) > 0 {
		if _, err := repos.Lines().LockForUpdate(ctx, doc.TenantID, sortedLineIDs(result.Snapshot.Lines)); err != nil {
			return nil, err
		}
	}
	if err := repos.Lines().Reparent(ctx, doc.ID, result.Snapshot.ID); err != nil {
		return nil, err
	}
	if len(result.Lines) > 0 {
		if err := repos.Lines().CreateBatch(ctx, result.Lines); err != nil {
			return nil, err
		}
	}
	if err := repos.Revisions().Create(ctx, link); err != nil {
		return nil, err
	}

	e.logger.Info("BOQ revised",
		zap.String("document_id", doc.ID.String()),
		zap.String("snapshot_id", result.Snapshot.ID.String()),
		zap.Int("from_version", previousVersion),
		zap.Int("to_version", doc.BOQVersion),
		zap.String("reason", link.Reason),
	)
	return result, nil
}

// sortedLineIDs returns the line ids in the order row locks are taken.
func sortedLineIDs(lines []budget.BudgetLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return ids
}
