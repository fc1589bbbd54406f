package budget

import (
	"context"

	"github.com/erp/budget/internal/domain/budget"
)

// TransactionScope provides transactional access to budget repositories.
// Every repository handed to fn shares one database transaction, committed when fn
// returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all budget repositories within a transaction.
//
// Row locks taken through Documents().FindByIDForUpdate, Documents().LockProject and
// Lines().LockForUpdate are held until the transaction ends.
type TransactionalRepositories interface {
	Documents() budget.DocumentRepository
	Lines() budget.LineRepository
	Ledger() budget.ConsumptionLedger
	Revisions() budget.RevisionRepository
	Sections() budget.SectionRepository
}
