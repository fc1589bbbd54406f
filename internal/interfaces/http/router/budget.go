package router

import (
	"github.com/erp/budget/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// BudgetHandlers groups the handlers served by the budget API
type BudgetHandlers struct {
	BOQ         *handler.BOQHandler
	Consumption *handler.ConsumptionHandler
	Section     *handler.SectionHandler
	System      *handler.SystemHandler
}

// RegisterBudgetRoutes registers the BOQ, consumption, line and section groups.
// idempotent guards the consumption posting routes; pass nil to skip it.
func RegisterBudgetRoutes(r *Router, h BudgetHandlers, idempotent gin.HandlerFunc) {
	post := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		if idempotent == nil {
			return []gin.HandlerFunc{fn}
		}
		return []gin.HandlerFunc{idempotent, fn}
	}

	boqs := NewDomainGroup("boq", "/boqs")
	boqs.POST("", h.BOQ.Create).
		GET("", h.BOQ.List).
		GET("/:id", h.BOQ.GetByID).
		PUT("/:id", h.BOQ.UpdateHeader).
		POST("/:id/edits", h.BOQ.Edit).
		POST("/:id/lines", h.BOQ.AddLine).
		POST("/:id/lines/import", h.BOQ.ImportLines).
		PUT("/:id/lines/:line_id", h.BOQ.UpdateLine).
		DELETE("/:id/lines/:line_id", h.BOQ.RemoveLine).
		POST("/:id/submit", h.BOQ.Submit).
		POST("/:id/reset", h.BOQ.Reset).
		POST("/:id/approve", h.BOQ.Approve).
		POST("/:id/lock", h.BOQ.Lock).
		POST("/:id/close", h.BOQ.Close).
		POST("/:id/revise", h.BOQ.Revise).
		GET("/:id/history", h.BOQ.History).
		GET("/:id/budget-vs-actual", h.BOQ.BudgetVsActual)
	r.Register(boqs)

	consumptions := NewDomainGroup("consumption", "/consumptions")
	consumptions.POST("", post(h.Consumption.Request)...).
		POST("/batch", post(h.Consumption.Batch)...).
		POST("/vendor-bills", post(h.Consumption.VendorBill)...).
		POST("/stock-issues", post(h.Consumption.StockIssue)...)
	r.Register(consumptions)

	lines := NewDomainGroup("boq-line", "/boq-lines")
	lines.GET("/:line_id/remaining", h.Consumption.Remaining).
		GET("/:line_id/consumptions", h.Consumption.Entries).
		POST("/:line_id/purchase-check", h.Consumption.PurchaseCheck)
	r.Register(lines)

	sections := NewDomainGroup("section", "/boq-sections")
	sections.POST("", h.Section.Create).
		GET("", h.Section.List).
		DELETE("/:id", h.Section.Deactivate)
	r.Register(sections)

	if h.System != nil {
		system := NewDomainGroup("system", "/health")
		system.GET("", h.System.Health)
		r.Register(system)
	}
}
