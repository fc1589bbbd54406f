package persistence

import (
	"fmt"

	"github.com/erp/budget/internal/domain/budget"
	"gorm.io/gorm"
)

const ledgerTable = "boq_consumptions"

// RegisterLedgerGuard installs GORM callbacks that refuse UPDATE and DELETE statements
// against the consumption ledger. The database triggers from InstallSchemaGuards cover
// raw SQL that bypasses the callbacks.
func RegisterLedgerGuard(db *gorm.DB) error {
	guard := func(tx *gorm.DB) {
		if tx.Statement.Table == ledgerTable {
			_ = tx.AddError(budget.ErrLedgerAppendOnly)
		}
	}
	if err := db.Callback().Update().Before("gorm:update").Register("budget:ledger_append_only_update", guard); err != nil {
		return fmt.Errorf("register ledger update guard: %w", err)
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("budget:ledger_append_only_delete", guard); err != nil {
		return fmt.Errorf("register ledger delete guard: %w", err)
	}
	return nil
}

var postgresGuards = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_boq_documents_active_version
		ON boq_documents (tenant_id, project_id, boq_version) WHERE active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_boq_documents_active_budget
		ON boq_documents (tenant_id, project_id) WHERE active AND state IN ('approved', 'locked')`,
	`CREATE OR REPLACE FUNCTION boq_consumptions_append_only() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'boq_consumptions is append-only';
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS trg_boq_consumptions_append_only ON boq_consumptions`,
	`CREATE TRIGGER trg_boq_consumptions_append_only
		BEFORE UPDATE OR DELETE ON boq_consumptions
		FOR EACH ROW EXECUTE FUNCTION boq_consumptions_append_only()`,
}

var sqliteGuards = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_boq_documents_active_version
		ON boq_documents (tenant_id, project_id, boq_version) WHERE active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_boq_documents_active_budget
		ON boq_documents (tenant_id, project_id) WHERE active AND state IN ('approved', 'locked')`,
	`CREATE TRIGGER IF NOT EXISTS trg_boq_consumptions_no_update
		BEFORE UPDATE ON boq_consumptions
		BEGIN SELECT RAISE(ABORT, 'boq_consumptions is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS trg_boq_consumptions_no_delete
		BEFORE DELETE ON boq_consumptions
		BEGIN SELECT RAISE(ABORT, 'boq_consumptions is append-only'); END`,
}

// InstallSchemaGuards creates the constraints AutoMigrate cannot express: the partial
// unique indexes on active BOQ versions and on the approved or locked budget of a
// project, and the append-only ledger triggers.
// The SQL migrations create the same objects for PostgreSQL deployments.
func InstallSchemaGuards(db *gorm.DB) error {
	var stmts []string
	switch db.Dialector.Name() {
	case "postgres":
		stmts = postgresGuards
	case "sqlite":
		stmts = sqliteGuards
	default:
		return fmt.Errorf("unsupported dialect %q", db.Dialector.Name())
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("install schema guard: %w", err)
		}
	}
	return nil
}

// BudgetModels lists the persisted budget types in dependency order
func BudgetModels() []interface{} {
	return []interface{}{
		&budget.Section{},
		&budget.BudgetDocument{},
		&budget.BudgetLine{},
		&budget.ConsumptionEntry{},
		&budget.RevisionLink{},
	}
}

// AutoMigrate creates the budget schema from the GORM models and installs the guards.
// Used for tests and local development; deployments run the SQL migrations.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(BudgetModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return InstallSchemaGuards(db)
}
