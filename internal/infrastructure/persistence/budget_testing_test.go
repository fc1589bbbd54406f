package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/erp/budget/internal/domain/budget"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newBudgetTestDB opens a private in-memory SQLite database with the budget schema.
// A single connection keeps every statement on the same in-memory database.
func newBudgetTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	d, err := Open(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := d.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = d.Close() })

	require.NoError(t, AutoMigrate(d.DB))
	return d.DB
}

type seededDocument struct {
	doc   *budget.BudgetDocument
	lines []budget.BudgetLine
}

// seedDocument stores a draft BOQ with one line per quantity (unit rate 100).
func seedDocument(t *testing.T, db *gorm.DB, tenantID, projectID uuid.UUID, version int, quantities ...int64) seededDocument {
	t.Helper()
	ctx := context.Background()

	doc, err := budget.NewBudgetDocument(tenantID, budget.DocumentSpec{
		Name:      fmt.Sprintf("Tower A v%d", version),
		ProjectID: projectID,
		Currency:  "USD",
	}, version, uuid.New())
	require.NoError(t, err)

	for i, qty := range quantities {
		_, err := doc.AddLine(budget.LineSpec{
			Description:      fmt.Sprintf("Line %d", i+1),
			CostType:         budget.CostTypeMaterial,
			Quantity:         decimal.NewFromInt(qty),
			UnitRate:         decimal.NewFromInt(100),
			ExpenseAccountID: uuid.New(),
		})
		require.NoError(t, err)
	}

	require.NoError(t, NewGormBudgetDocumentRepository(db).Create(ctx, doc))
	require.NoError(t, NewGormBudgetLineRepository(db).CreateBatch(ctx, doc.Lines))
	return seededDocument{doc: doc, lines: doc.Lines}
}

// newEntry builds a ledger entry against line without going through the gateway.
func newEntry(t *testing.T, line *budget.BudgetLine, sourceID string, qty, amount int64) *budget.ConsumptionEntry {
	t.Helper()
	return &budget.ConsumptionEntry{
		ID:               uuid.New(),
		TenantID:         line.TenantID,
		LineID:           line.ID,
		SourceSystem:     "account.move.line",
		SourceID:         sourceID,
		Quantity:         decimal.NewFromInt(qty),
		Amount:           decimal.NewFromInt(amount),
		Currency:         "USD",
		OriginalAmount:   decimal.NewFromInt(amount),
		OriginalCurrency: "USD",
		ExchangeRate:     decimal.NewFromInt(1),
		EffectiveDate:    line.CreatedAt,
		RecordedBy:       uuid.New(),
		CreatedAt:        line.CreatedAt,
	}
}
