package router

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/erp/budget/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("boq", "/boqs")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/boqs/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouterUse(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Use(func(c *gin.Context) {
		c.Header("X-Api-Group", "v1")
		c.Next()
	})

	group := NewDomainGroup("section", "/boq-sections")
	group.GET("", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.Register(group).Setup()
	engine.GET("/outside", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, "v1", serve(engine, http.MethodGet, "/api/v1/boq-sections").Header().Get("X-Api-Group"))
	assert.Empty(t, serve(engine, http.MethodGet, "/outside").Header().Get("X-Api-Group"))
}

func TestDomainGroup(t *testing.T) {
	t.Run("exposes name and prefix", func(t *testing.T) {
		g := NewDomainGroup("consumption", "/consumptions")
		assert.Equal(t, "consumption", g.Name())
		assert.Equal(t, "/consumptions", g.Prefix())
	})

	t.Run("registers every method", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("boq", "/boqs")
		ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }
		g.GET("/:id", ok).
			POST("/:id", ok).
			PUT("/:id", ok).
			PATCH("/:id", ok).
			DELETE("/:id", ok)
		g.RegisterRoutes(engine.Group("/api/v1"))

		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			w := serve(engine, method, "/api/v1/boqs/42")
			assert.Equal(t, http.StatusOK, w.Code, method)
			assert.Equal(t, method, w.Body.String())
		}
	})

	t.Run("applies group middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("consumption", "/consumptions")
		g.Use(func(c *gin.Context) {
			c.Header("X-Guard", "applied")
			c.Next()
		})
		g.POST("", func(c *gin.Context) { c.Status(http.StatusCreated) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := serve(engine, http.MethodPost, "/api/v1/consumptions")
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "applied", w.Header().Get("X-Guard"))
	})

	t.Run("registers subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("boq", "/boqs")
		g.Group("lines", "/lines").GET("", func(c *gin.Context) { c.String(http.StatusOK, "lines") })
		g.Group("history", "/history").GET("", func(c *gin.Context) { c.String(http.StatusOK, "history") })
		g.RegisterRoutes(engine.Group("/api/v1"))

		assert.Equal(t, "lines", serve(engine, http.MethodGet, "/api/v1/boqs/lines").Body.String())
		assert.Equal(t, "history", serve(engine, http.MethodGet, "/api/v1/boqs/history").Body.String())
	})
}

func TestRegisterBudgetRoutes(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	calls := 0
	guard := func(c *gin.Context) {
		calls++
		c.AbortWithStatus(http.StatusTeapot)
	}
	RegisterBudgetRoutes(r, BudgetHandlers{
		BOQ:         &handler.BOQHandler{},
		Consumption: &handler.ConsumptionHandler{},
		Section:     &handler.SectionHandler{},
		System:      handler.NewSystemHandler("budget", "test", nil),
	}, guard)
	r.Setup()

	var routes []string
	for _, ri := range engine.Routes() {
		routes = append(routes, ri.Method+" "+ri.Path)
	}
	sort.Strings(routes)

	expected := []string{
		"DELETE /api/v1/boq-sections/:id",
		"DELETE /api/v1/boqs/:id/lines/:line_id",
		"GET /api/v1/boq-lines/:line_id/consumptions",
		"GET /api/v1/boq-lines/:line_id/remaining",
		"GET /api/v1/boq-sections",
		"GET /api/v1/boqs",
		"GET /api/v1/boqs/:id",
		"GET /api/v1/boqs/:id/budget-vs-actual",
		"GET /api/v1/boqs/:id/history",
		"GET /api/v1/health",
		"POST /api/v1/boq-lines/:line_id/purchase-check",
		"POST /api/v1/boq-sections",
		"POST /api/v1/boqs",
		"POST /api/v1/boqs/:id/approve",
		"POST /api/v1/boqs/:id/close",
		"POST /api/v1/boqs/:id/edits",
		"POST /api/v1/boqs/:id/lines",
		"POST /api/v1/boqs/:id/lines/import",
		"POST /api/v1/boqs/:id/lock",
		"POST /api/v1/boqs/:id/reset",
		"POST /api/v1/boqs/:id/revise",
		"POST /api/v1/boqs/:id/submit",
		"POST /api/v1/consumptions",
		"POST /api/v1/consumptions/batch",
		"POST /api/v1/consumptions/stock-issues",
		"POST /api/v1/consumptions/vendor-bills",
		"PUT /api/v1/boqs/:id",
		"PUT /api/v1/boqs/:id/lines/:line_id",
	}
	assert.Equal(t, expected, routes)

	for _, path := range []string{
		"/api/v1/consumptions",
		"/api/v1/consumptions/batch",
		"/api/v1/consumptions/vendor-bills",
		"/api/v1/consumptions/stock-issues",
	} {
		assert.Equal(t, http.StatusTeapot, serve(engine, http.MethodPost, path).Code, path)
	}
	require.Equal(t, 4, calls)

	w := serve(engine, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)
}
