package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	plain := errors.New("connection reset")

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantSame bool
	}{
		{name: "lock timeout", err: &pgconn.PgError{Code: pgLockNotAvailable, Message: "canceling statement due to lock timeout"}, wantCode: budget.CodeConcurrentModification},
		{name: "deadlock", err: fmt.Errorf("commit: %w", &pgconn.PgError{Code: pgDeadlockDetected}), wantCode: budget.CodeConcurrentModification},
		{name: "serialization failure", err: &pgconn.PgError{Code: pgSerializationFailure}, wantCode: budget.CodeConcurrentModification},
		{name: "append-only trigger", err: &pgconn.PgError{Code: pgRaiseException, Message: "boq_consumptions is append-only"}, wantCode: budget.CodeLedgerAppendOnly},
		{name: "sqlite trigger", err: errors.New("boq_consumptions is append-only"), wantCode: budget.CodeLedgerAppendOnly},
		{name: "sqlite busy", err: errors.New("database is locked"), wantCode: budget.CodeConcurrentModification},
		{name: "domain error passes through", err: budget.ErrDocumentClosed, wantCode: budget.CodeDocumentClosed},
		{name: "unknown error passes through", err: plain, wantSame: true},
		{name: "other raise passes through", err: &pgconn.PgError{Code: pgRaiseException, Message: "boom"}, wantSame: true},
		{name: "lost version race", err: fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), wantCode: budget.CodeConcurrentModification},
		{name: "raw unique violation", err: &pgconn.PgError{Code: pgUniqueViolation}, wantCode: budget.CodeConcurrentModification},
		{name: "unknown section", err: gorm.ErrForeignKeyViolated, wantCode: "INVALID_REFERENCE"},
		{name: "raw foreign key violation", err: &pgconn.PgError{Code: pgForeignKeyViolation}, wantCode: "INVALID_REFERENCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			if tt.wantSame {
				assert.Same(t, tt.err, got)
				return
			}
			de, ok := shared.AsDomainError(got)
			if assert.True(t, ok, "expected a domain error, got %v", got) {
				assert.Equal(t, tt.wantCode, de.Code)
			}
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, translateError(nil))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: pgLockNotAvailable}))
	assert.False(t, isUniqueViolation(errors.New("x")))
}
