package persistence

import (
	"errors"
	"strings"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes the budget core reacts to
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgRaiseException       = "P0001"
)

const appendOnlyMarker = "append-only"

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// translateError maps driver errors that carry business meaning onto domain errors.
// Domain errors and unrecognised errors pass through unchanged.
// A unique violation that a repository did not claim is a lost race on a
// version or active-budget index, so it reads as CONCURRENT_MODIFICATION.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := shared.AsDomainError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return budget.ErrConcurrentModification.WithDetail("cause", err.Error())
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return shared.ErrInvalidReference.WithDetail("cause", err.Error())
	}
	switch sqlState(err) {
	case pgUniqueViolation, pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
		return budget.ErrConcurrentModification.WithDetail("cause", err.Error())
	case pgForeignKeyViolation:
		return shared.ErrInvalidReference.WithDetail("cause", err.Error())
	case pgRaiseException:
		if strings.Contains(err.Error(), appendOnlyMarker) {
			return budget.ErrLedgerAppendOnly
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, appendOnlyMarker):
		return budget.ErrLedgerAppendOnly
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return budget.ErrConcurrentModification.WithDetail("cause", msg)
	}
	return err
}
