package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	appbudget "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/domain/budget"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactionScope_Execute(t *testing.T) {
	db := newBudgetTestDB(t)
	scope := NewGormTransactionScope(db, WithLockTimeout(time.Second))
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("commits on success", func(t *testing.T) {
		section, err := budget.NewSection(tenantID, "Civil Works", "", 0)
		require.NoError(t, err)

		err = scope.Execute(ctx, func(repos appbudget.TransactionalRepositories) error {
			return repos.Sections().Save(ctx, section)
		})
		require.NoError(t, err)

		_, err = NewGormSectionRepository(db).FindByIDForTenant(ctx, tenantID, section.ID)
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		section, err := budget.NewSection(tenantID, "Electrical", "", 0)
		require.NoError(t, err)
		boom := errors.New("boom")

		err = scope.Execute(ctx, func(repos appbudget.TransactionalRepositories) error {
			if err := repos.Sections().Save(ctx, section); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		exists, err := NewGormSectionRepository(db).ExistsByName(ctx, tenantID, "Electrical")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("translates lock failures", func(t *testing.T) {
		err := scope.Execute(ctx, func(appbudget.TransactionalRepositories) error {
			return &pgconn.PgError{Code: pgLockNotAvailable}
		})
		assert.ErrorIs(t, err, budget.ErrConcurrentModification)
	})

	t.Run("a lost version race reads as concurrent modification", func(t *testing.T) {
		projectID := uuid.New()
		seedDocument(t, db, tenantID, projectID, 1, 10)

		err := scope.Execute(ctx, func(repos appbudget.TransactionalRepositories) error {
			doc, err := budget.NewBudgetDocument(tenantID, budget.DocumentSpec{ProjectID: projectID, Currency: "USD"}, 1, uuid.New())
			if err != nil {
				return err
			}
			return repos.Documents().Create(ctx, doc)
		})
		assert.ErrorIs(t, err, budget.ErrConcurrentModification)
	})

	t.Run("hands out every repository", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos appbudget.TransactionalRepositories) error {
			assert.NotNil(t, repos.Documents())
			assert.NotNil(t, repos.Lines())
			assert.NotNil(t, repos.Ledger())
			assert.NotNil(t, repos.Revisions())
			assert.NotNil(t, repos.Sections())
			return nil
		})
		assert.NoError(t, err)
	})
}

func TestGormTransactionScope_LockTimeout(t *testing.T) {
	d, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '250ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	scope := NewGormTransactionScope(d.DB, WithLockTimeout(250*time.Millisecond))
	err := scope.Execute(context.Background(), func(appbudget.TransactionalRepositories) error {
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
