package handler

import (
	budgetapp "github.com/erp/budget/internal/application/budget"
	"github.com/gin-gonic/gin"
)

// SectionHandler handles the BOQ section catalog
type SectionHandler struct {
	BaseHandler
	sectionService *budgetapp.SectionService
}

// NewSectionHandler creates a new SectionHandler
func NewSectionHandler(sectionService *budgetapp.SectionService) *SectionHandler {
	return &SectionHandler{sectionService: sectionService}
}

// Create adds a section
func (h *SectionHandler) Create(c *gin.Context) {
	var req budgetapp.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	section, err := h.sectionService.Create(c.Request.Context(), tenantID(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, section)
}

// List returns sections; include_inactive=true also returns archived ones
func (h *SectionHandler) List(c *gin.Context) {
	activeOnly := c.Query("include_inactive") != "true"

	sections, err := h.sectionService.List(c.Request.Context(), tenantID(c), activeOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sections)
}

// Deactivate archives a section
func (h *SectionHandler) Deactivate(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	section, err := h.sectionService.Deactivate(c.Request.Context(), tenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, section)
}
