package middleware

import (
	"net/http"
	"strings"

	"github.com/erp/budget/internal/infrastructure/logger"
	"github.com/erp/budget/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Headers and context keys carrying the tenant (company) and the acting user
const (
	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"

	TenantIDKey = "tenant_id"
	UserIDKey   = "user_id"
)

// IdentityConfig holds configuration for the identity middleware
type IdentityConfig struct {
	// SkipPaths are paths that don't require tenant context (e.g., health check)
	SkipPaths []string
	// RequireUserOnWrite rejects mutating requests without X-User-ID
	RequireUserOnWrite bool
	Logger             *zap.Logger
}

// DefaultIdentityConfig returns default identity middleware configuration
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		SkipPaths:          []string{"/health", "/api/v1/health"},
		RequireUserOnWrite: true,
	}
}

// Identity extracts the tenant from X-Tenant-ID and the actor from X-User-ID.
// Both must be UUIDs. Every budget operation is scoped to a tenant; writes also
// record who performed them.
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		tenantID, err := parseIDHeader(c, TenantHeader)
		if err != nil || tenantID == uuid.Nil {
			respondUnauthorized(c, "A valid X-Tenant-ID header is required")
			return
		}

		userID, err := parseIDHeader(c, UserHeader)
		if err != nil {
			respondUnauthorized(c, "X-User-ID must be a UUID")
			return
		}
		if userID == uuid.Nil && cfg.RequireUserOnWrite && isWrite(c.Request.Method) {
			respondUnauthorized(c, "X-User-ID header is required for this operation")
			return
		}

		c.Set(TenantIDKey, tenantID)
		ctx := c.Request.Context()
		ctx, log := logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID.String())
		if userID != uuid.Nil {
			c.Set(UserIDKey, userID)
			ctx, _ = logger.WithUserID(ctx, log, userID.String())
		}
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Request identity resolved",
				zap.String("tenant_id", tenantID.String()),
				zap.Bool("has_user", userID != uuid.Nil),
			)
		}
		c.Next()
	}
}

func parseIDHeader(c *gin.Context, header string) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.GetHeader(header))
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, message, GetRequestID(c)))
}

// GetTenantID returns the tenant resolved by Identity, or uuid.Nil
func GetTenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// GetUserID returns the actor resolved by Identity, or uuid.Nil
func GetUserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
