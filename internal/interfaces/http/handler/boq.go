package handler

import (
	"context"
	"io"
	"net/http"
	"unicode/utf8"

	budgetapp "github.com/erp/budget/internal/application/budget"
	csvimport "github.com/erp/budget/internal/infrastructure/import"
	"github.com/erp/budget/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BOQHandler handles BOQ document endpoints
type BOQHandler struct {
	BaseHandler
	boqService    *budgetapp.BOQService
	reportService *budgetapp.ReportService
}

// NewBOQHandler creates a new BOQHandler
func NewBOQHandler(boqService *budgetapp.BOQService, reportService *budgetapp.ReportService) *BOQHandler {
	return &BOQHandler{
		boqService:    boqService,
		reportService: reportService,
	}
}

// Create creates a draft BOQ for a project
func (h *BOQHandler) Create(c *gin.Context) {
	var req budgetapp.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.boqService.Create(c.Request.Context(), tenantID(c), req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// List lists BOQs, active versions only unless include_inactive is set
func (h *BOQHandler) List(c *gin.Context) {
	var filter budgetapp.DocumentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindingError(c, err)
		return
	}

	page, err := h.boqService.List(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByID returns a BOQ with its lines
func (h *BOQHandler) GetByID(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.boqService.GetByID(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// UpdateHeader changes name or cost center. Past draft, the change lands on a new revision.
func (h *BOQHandler) UpdateHeader(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req budgetapp.HeaderPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.boqService.UpdateHeader(c.Request.Context(), tenantID(c), id, req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Edit applies a batch of edits atomically, forking at most once
func (h *BOQHandler) Edit(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req budgetapp.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.boqService.Edit(c.Request.Context(), tenantID(c), id, req.Edits, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// AddLine adds a budget line
func (h *BOQHandler) AddLine(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req budgetapp.LineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.boqService.AddLine(c.Request.Context(), tenantID(c), id, req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// ImportLines appends lines from a CSV sheet, sent either as the multipart field
// "file" or as the raw request body. ?delimiter= overrides the comma.
func (h *BOQHandler) ImportLines(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var opts []csvimport.ReaderOption
	if d := c.Query("delimiter"); d != "" {
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) || r == utf8.RuneError {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "delimiter must be a single character")
			return
		}
		opts = append(opts, csvimport.WithDelimiter(r))
	}

	var sheet io.Reader = c.Request.Body
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			h.BadRequest(c, "multipart field 'file' is required")
			return
		}
		defer file.Close()
		sheet = file
	}

	doc, err := h.boqService.ImportLines(c.Request.Context(), tenantID(c), id, sheet, actorID(c), opts...)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// UpdateLine patches a budget line
func (h *BOQHandler) UpdateLine(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.parseUUIDParam(c, "line_id")
	if !ok {
		return
	}
	var req budgetapp.LinePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.boqService.UpdateLine(c.Request.Context(), tenantID(c), id, lineID, req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// RemoveLine removes a budget line
func (h *BOQHandler) RemoveLine(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.parseUUIDParam(c, "line_id")
	if !ok {
		return
	}

	doc, err := h.boqService.RemoveLine(c.Request.Context(), tenantID(c), id, lineID, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

type transitionFunc func(ctx context.Context, tenantID, docID, actor uuid.UUID) (*budgetapp.DocumentResponse, error)

func (h *BOQHandler) transition(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.parseUUIDParam(c, "id")
		if !ok {
			return
		}
		doc, err := fn(c.Request.Context(), tenantID(c), id, actorID(c))
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, doc)
	}
}

// Submit moves a draft to submitted
func (h *BOQHandler) Submit(c *gin.Context) { h.transition(h.boqService.Submit)(c) }

// Reset returns a submitted BOQ to draft
func (h *BOQHandler) Reset(c *gin.Context) { h.transition(h.boqService.ResetToDraft)(c) }

// Approve approves a submitted BOQ
func (h *BOQHandler) Approve(c *gin.Context) { h.transition(h.boqService.Approve)(c) }

// Lock locks an approved BOQ
func (h *BOQHandler) Lock(c *gin.Context) { h.transition(h.boqService.Lock)(c) }

// Close closes an approved or locked BOQ
func (h *BOQHandler) Close(c *gin.Context) { h.transition(h.boqService.Close)(c) }

// Revise freezes the current BOQ as a snapshot and reopens it as the next draft version
func (h *BOQHandler) Revise(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req budgetapp.ReviseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	doc, err := h.boqService.Revise(c.Request.Context(), tenantID(c), id, req.Reason, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// History returns the revision chain of a BOQ, oldest first
func (h *BOQHandler) History(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	history, err := h.boqService.History(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}

// BudgetVsActual returns budget, consumption and variance per line
func (h *BOQHandler) BudgetVsActual(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	report, err := h.reportService.BudgetVsActual(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
