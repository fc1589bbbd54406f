package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	budgetapp "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/infrastructure/cache"
	"github.com/erp/budget/internal/infrastructure/persistence"
	"github.com/erp/budget/internal/interfaces/http/handler"
	"github.com/erp/budget/internal/interfaces/http/middleware"
	"github.com/erp/budget/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
		Fields  []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
	tenant uuid.UUID
	user   uuid.UUID
}

// newTestAPI serves the budget routes over a private in-memory SQLite database.
func newTestAPI(t *testing.T) *testAPI {
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
	gateway := budgetapp.NewConsumptionGateway(budgetapp.ConsumptionGatewayConfig{TxScope: txScope})

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	engine := gin.New()
	engine.Use(middleware.RequestID())
	r := router.NewRouter(engine)
	r.Use(middleware.Identity(middleware.DefaultIdentityConfig()))
	router.RegisterBudgetRoutes(r, router.BudgetHandlers{
		BOQ:         handler.NewBOQHandler(budgetapp.NewBOQService(txScope, budgetapp.NewRevisionEngine(nil), nil), budgetapp.NewReportService(txScope)),
		Consumption: handler.NewConsumptionHandler(gateway),
		Section:     handler.NewSectionHandler(budgetapp.NewSectionService(txScope)),
		System: handler.NewSystemHandler("budget", "test", map[string]handler.HealthChecker{
			"database": sqlDB,
		}),
	}, middleware.Idempotency(middleware.IdempotencyConfig{Store: store}))
	r.Setup()

	return &testAPI{t: t, engine: engine, tenant: uuid.New(), user: uuid.New()}
}

func (a *testAPI) do(method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeader, a.tenant.String())
	req.Header.Set(middleware.UserHeader, a.user.String())
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// approvedLine creates and approves a BOQ with one line of 10 units at 100 and returns the document and line IDs.
func (a *testAPI) approvedLine() (uuid.UUID, uuid.UUID) {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/api/v1/boqs", map[string]any{
		"name":       "Tower A",
		"project_id": uuid.New(),
		"currency":   "USD",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[budgetapp.DocumentResponse](a.t, env)

	w, env = a.do(http.MethodPost, "/api/v1/boqs/"+doc.ID.String()+"/lines", map[string]any{
		"description":        "Rebar",
		"cost_type":          "material",
		"quantity":           "10",
		"unit_rate":          "100",
		"expense_account_id": uuid.New(),
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	doc = decode[budgetapp.DocumentResponse](a.t, env)
	require.Len(a.t, doc.Lines, 1)

	for _, step := range []string{"submit", "approve"} {
		w, _ = a.do(http.MethodPost, "/api/v1/boqs/"+doc.ID.String()+"/"+step, nil)
		require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	}
	return doc.ID, doc.Lines[0].ID
}
