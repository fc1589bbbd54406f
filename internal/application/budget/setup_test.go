package budget_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	budgetapp "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/erp/budget/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// MockEventPublisher collects published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockRecorder is a mock implementation of ConsumptionRecorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordPosted(ctx context.Context, entry *budget.ConsumptionEntry, reason budget.DecisionReason) {
	m.Called(ctx, entry, reason)
}

func (m *MockRecorder) RecordRejected(ctx context.Context, code string) {
	m.Called(ctx, code)
}

type fixture struct {
	txScope   *persistence.GormTransactionScope
	boq       *budgetapp.BOQService
	gateway   *budgetapp.ConsumptionGateway
	reports   *budgetapp.ReportService
	sections  *budgetapp.SectionService
	events    *MockEventPublisher
	tenant    uuid.UUID
	user      uuid.UUID
	projectID uuid.UUID
}

type fixtureOption func(*budgetapp.ConsumptionGatewayConfig)

func withRates(provider budgetapp.RateProvider) fixtureOption {
	return func(cfg *budgetapp.ConsumptionGatewayConfig) {
		cfg.Normalizer = budgetapp.NewCurrencyNormalizer(provider)
	}
}

func withRecorder(r budgetapp.ConsumptionRecorder) fixtureOption {
	return func(cfg *budgetapp.ConsumptionGatewayConfig) {
		cfg.Recorder = r
	}
}

// newFixture wires the budget services over a private in-memory SQLite database.
// One open connection serializes all transactions and SQLite ignores FOR UPDATE;
// locking is tested against PostgreSQL in the persistence integration tests.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := persistence.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.AutoMigrate(db.DB))

	txScope := persistence.NewGormTransactionScope(db.DB)
	events := &MockEventPublisher{}

	cfg := budgetapp.ConsumptionGatewayConfig{TxScope: txScope}
	for _, opt := range opts {
		opt(&cfg)
	}
	gateway := budgetapp.NewConsumptionGateway(cfg)
	gateway.SetEventPublisher(events)

	boq := budgetapp.NewBOQService(txScope, nil, nil)
	boq.SetEventPublisher(events)

	return &fixture{
		txScope:   txScope,
		boq:       boq,
		gateway:   gateway,
		reports:   budgetapp.NewReportService(txScope),
		sections:  budgetapp.NewSectionService(txScope),
		events:    events,
		tenant:    uuid.New(),
		user:      uuid.New(),
		projectID: uuid.New(),
	}
}

func line(description string, qty, rate int64) budgetapp.LineRequest {
	return budgetapp.LineRequest{
		Description:      description,
		CostType:         string(budget.CostTypeMaterial),
		Quantity:         decimal.NewFromInt(qty),
		UnitRate:         decimal.NewFromInt(rate),
		ExpenseAccountID: uuid.New(),
	}
}

// draft creates a USD BOQ for the fixture project holding the given lines.
func (f *fixture) draft(t *testing.T, lines ...budgetapp.LineRequest) *budgetapp.DocumentResponse {
	t.Helper()
	ctx := context.Background()
	doc, err := f.boq.Create(ctx, f.tenant, budgetapp.CreateDocumentRequest{
		Name:      "Tower A",
		ProjectID: f.projectID,
		Currency:  "USD",
	}, f.user)
	require.NoError(t, err)
	for _, l := range lines {
		doc, err = f.boq.AddLine(ctx, f.tenant, doc.ID, l, f.user)
		require.NoError(t, err)
	}
	return doc
}

// approved creates, submits and approves a BOQ holding the given lines.
func (f *fixture) approved(t *testing.T, lines ...budgetapp.LineRequest) *budgetapp.DocumentResponse {
	t.Helper()
	ctx := context.Background()
	doc := f.draft(t, lines...)
	_, err := f.boq.Submit(ctx, f.tenant, doc.ID, f.user)
	require.NoError(t, err)
	doc, err = f.boq.Approve(ctx, f.tenant, doc.ID, f.user)
	require.NoError(t, err)
	return doc
}

var sourceSeq int

func consume(lineID uuid.UUID, qty, amount string) budgetapp.ConsumptionRequest {
	sourceSeq++
	return budgetapp.ConsumptionRequest{
		LineID:   lineID,
		Quantity: decimal.RequireFromString(qty),
		Amount:   decimal.RequireFromString(amount),
		Currency: "USD",
		Source:   budget.SourceRef{System: "account.move.line", ID: fmt.Sprintf("L%d", sourceSeq)},
	}
}

func (f *fixture) post(t *testing.T, req budgetapp.ConsumptionRequest) (*budgetapp.PostingResult, error) {
	t.Helper()
	return f.gateway.RequestConsumption(context.Background(), f.tenant, req, f.user)
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	de, ok := shared.AsDomainError(err)
	require.True(t, ok, "expected a domain error, got %v", err)
	return de.Code
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func isExceeded(err error) (*budget.BudgetExceededError, bool) {
	var exceeded *budget.BudgetExceededError
	ok := errors.As(err, &exceeded)
	return exceeded, ok
}
