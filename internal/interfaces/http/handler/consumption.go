package handler

import (
	"time"

	budgetapp "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConsumptionHandler exposes the consumption gateway
type ConsumptionHandler struct {
	BaseHandler
	gateway *budgetapp.ConsumptionGateway
}

// NewConsumptionHandler creates a new ConsumptionHandler
func NewConsumptionHandler(gateway *budgetapp.ConsumptionGateway) *ConsumptionHandler {
	return &ConsumptionHandler{gateway: gateway}
}

// ConsumptionRequest asks to draw down one budget line. Amount is signed; a negative
// amount is a refund or reversal. Date (YYYY-MM-DD) picks the exchange rate and
// defaults to today.
type ConsumptionRequest struct {
	LineID       uuid.UUID       `json:"line_id" binding:"required"`
	ProductID    *uuid.UUID      `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency" binding:"required,iso4217"`
	Date         string          `json:"date" binding:"omitempty,datetime=2006-01-02"`
	SourceSystem string          `json:"source_system" binding:"required,max=64"`
	SourceID     string          `json:"source_id" binding:"required,max=128"`
}

func (r ConsumptionRequest) toApp() budgetapp.ConsumptionRequest {
	return budgetapp.ConsumptionRequest{
		LineID:    r.LineID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Date:      parseDate(r.Date),
		Source:    budget.SourceRef{System: r.SourceSystem, ID: r.SourceID},
	}
}

// BatchConsumptionRequest posts several consumptions all or nothing
type BatchConsumptionRequest struct {
	Requests []ConsumptionRequest `json:"requests" binding:"required,min=1,max=500,dive"`
}

// VendorBillRequest is a posted vendor bill whose lines may reference budget lines
type VendorBillRequest struct {
	MoveType string                  `json:"move_type" binding:"required,oneof=in_invoice in_refund out_invoice out_refund"`
	Currency string                  `json:"currency" binding:"required,iso4217"`
	Date     string                  `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Lines    []VendorBillLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// VendorBillLineRequest is one invoice line
type VendorBillLineRequest struct {
	ID           string          `json:"id" binding:"required,max=128"`
	BudgetLineID *uuid.UUID      `json:"budget_line_id"`
	ProductID    *uuid.UUID      `json:"product_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// StockIssueRequest is a completed stock move against a budget line
type StockIssueRequest struct {
	MoveID           string          `json:"move_id" binding:"required,max=128"`
	BudgetLineID     uuid.UUID       `json:"budget_line_id" binding:"required"`
	ProductID        uuid.UUID       `json:"product_id" binding:"required"`
	Quantity         decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Currency         string          `json:"currency" binding:"required,iso4217"`
	DestinationUsage string          `json:"destination_usage" binding:"required,oneof=customer production internal supplier"`
	Date             string          `json:"date" binding:"omitempty,datetime=2006-01-02"`
}

// PurchaseCheckRequest validates a purchase order line against its budget line
type PurchaseCheckRequest struct {
	ProjectID *uuid.UUID      `json:"project_id"`
	ProductID *uuid.UUID      `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
}

// LedgerPageRequest is the pagination of a line's ledger
type LedgerPageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	// Format is checked by the binding tag.
	d, _ := time.Parse(time.DateOnly, s)
	return d
}

// Request records one consumption
func (h *ConsumptionHandler) Request(c *gin.Context) {
	var req ConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.gateway.RequestConsumption(c.Request.Context(), tenantID(c), req.toApp(), actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Batch records several consumptions atomically
func (h *ConsumptionHandler) Batch(c *gin.Context) {
	var req BatchConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	reqs := make([]budgetapp.ConsumptionRequest, 0, len(req.Requests))
	for _, r := range req.Requests {
		reqs = append(reqs, r.toApp())
	}
	results, err := h.gateway.PostBatch(c.Request.Context(), tenantID(c), reqs, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, results)
}

// VendorBill records the budgeted lines of a vendor bill. Refunds give budget back.
func (h *ConsumptionHandler) VendorBill(c *gin.Context) {
	var req VendorBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	bill := budgetapp.VendorBill{
		MoveType: budgetapp.MoveType(req.MoveType),
		Currency: req.Currency,
		Lines:    make([]budgetapp.VendorBillLine, 0, len(req.Lines)),
	}
	if req.Date != "" {
		bill.Date = parseDate(req.Date)
	}
	for _, l := range req.Lines {
		bill.Lines = append(bill.Lines, budgetapp.VendorBillLine{
			ID:           l.ID,
			BudgetLineID: l.BudgetLineID,
			ProductID:    l.ProductID,
			Quantity:     l.Quantity,
			Subtotal:     l.Subtotal,
		})
	}

	results, err := h.gateway.PostFromSource(c.Request.Context(), tenantID(c), bill, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, results)
}

// StockIssue records a stock move issued to a customer or production location
func (h *ConsumptionHandler) StockIssue(c *gin.Context) {
	var req StockIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	issue := budgetapp.StockIssue{
		MoveID:           req.MoveID,
		BudgetLineID:     req.BudgetLineID,
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
		Currency:         req.Currency,
		DestinationUsage: budgetapp.LocationUsage(req.DestinationUsage),
	}
	if req.Date != "" {
		issue.Date = parseDate(req.Date)
	}

	results, err := h.gateway.PostFromSource(c.Request.Context(), tenantID(c), issue, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, results)
}

// Remaining returns the remaining budget of a line
func (h *ConsumptionHandler) Remaining(c *gin.Context) {
	lineID, ok := h.parseUUIDParam(c, "line_id")
	if !ok {
		return
	}

	remaining, err := h.gateway.GetRemaining(c.Request.Context(), tenantID(c), lineID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, remaining)
}

// Entries lists the ledger entries of a line, newest first
func (h *ConsumptionHandler) Entries(c *gin.Context) {
	lineID, ok := h.parseUUIDParam(c, "line_id")
	if !ok {
		return
	}
	var req LedgerPageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	page, err := h.gateway.ListEntries(c.Request.Context(), tenantID(c), lineID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// PurchaseCheck validates a purchase order line before it is confirmed. Nothing is recorded.
func (h *ConsumptionHandler) PurchaseCheck(c *gin.Context) {
	lineID, ok := h.parseUUIDParam(c, "line_id")
	if !ok {
		return
	}
	var req PurchaseCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	err := h.gateway.ValidatePurchaseLine(c.Request.Context(), tenantID(c), budgetapp.PurchaseLineCheck{
		BudgetLineID: lineID,
		ProjectID:    req.ProjectID,
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"line_id": lineID, "allowed": true})
}
