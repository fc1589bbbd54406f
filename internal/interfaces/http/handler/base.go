package handler

import (
	"errors"
	"net/http"

	"github.com/erp/budget/internal/domain/shared"
	"github.com/erp/budget/internal/infrastructure/logger"
	"github.com/erp/budget/internal/interfaces/http/dto"
	"github.com/erp/budget/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// tenantID returns the tenant resolved by the identity middleware
func tenantID(c *gin.Context) uuid.UUID {
	return middleware.GetTenantID(c)
}

// actorID returns the acting user resolved by the identity middleware
func actorID(c *gin.Context) uuid.UUID {
	return middleware.GetUserID(c)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// BindingError reports a request that failed JSON/query binding or validation
func (h *BaseHandler) BindingError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError converts an error to an HTTP response. Domain errors keep their
// code and structured details; anything else becomes a logged 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status := dto.GetHTTPStatus(domainErr.Code)
		c.Set(middleware.ErrorCodeKey, domainErr.Code)
		c.JSON(status, dto.NewDetailedErrorResponse(
			domainErr.Code,
			domainErr.Message,
			middleware.GetRequestID(c),
			domainErr.Details,
		))
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// parseUUIDParam reads a UUID path parameter, answering 400 when it is malformed.
func (h *BaseHandler) parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
