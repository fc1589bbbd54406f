package persistence

import (
	"context"
	"fmt"
	"time"

	appbudget "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/domain/budget"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithLockTimeout bounds how long a transaction waits for a row lock (PostgreSQL only).
// A timeout surfaces as CONCURRENT_MODIFICATION.
func WithLockTimeout(d time.Duration) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.lockTimeout = d
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appbudget.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())).Error; err != nil {
				return err
			}
		}
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
	return translateError(err)
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Documents returns the BOQ document repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Documents() budget.DocumentRepository {
	return NewGormBudgetDocumentRepository(r.tx)
}

// Lines returns the budget line repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Lines() budget.LineRepository {
	return NewGormBudgetLineRepository(r.tx)
}

// Ledger returns the consumption ledger scoped to the current transaction.
func (r *gormTransactionalRepositories) Ledger() budget.ConsumptionLedger {
	return NewGormConsumptionLedger(r.tx)
}

// Revisions returns the revision link repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Revisions() budget.RevisionRepository {
	return NewGormRevisionRepository(r.tx)
}

// Sections returns the section repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Sections() budget.SectionRepository {
	return NewGormSectionRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appbudget.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appbudget.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
