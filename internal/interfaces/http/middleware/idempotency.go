package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/erp/budget/internal/infrastructure/cache"
	"github.com/erp/budget/internal/infrastructure/logger"
	"github.com/erp/budget/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Idempotency headers
const (
	IdempotencyHeader         = "Idempotency-Key"
	IdempotencyReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 200
)

// IdempotencyConfig configures the Idempotency middleware
type IdempotencyConfig struct {
	Store cache.IdempotencyStore
	// TTL is how long a completed response is replayed
	TTL time.Duration
	// PendingTTL bounds how long an unfinished claim blocks retries
	PendingTTL time.Duration
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a request whose Idempotency-Key was
// already completed. A key still in flight gets 409. Responses below 500 are stored;
// server errors release the key so the client can retry. Requests without the header
// pass through. Keys are scoped per tenant and route.
//
// The ledger itself rejects a repeated source document, so this only spares clients
// from seeing DUPLICATE_CONSUMPTION on a network retry.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = time.Minute
	}

	return func(c *gin.Context) {
		raw := c.GetHeader(IdempotencyHeader)
		if raw == "" || cfg.Store == nil {
			c.Next()
			return
		}
		if len(raw) > maxIdempotencyKeyLength {
			c.Set(ErrorCodeKey, dto.ErrCodeValidation)
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeValidation, "Idempotency-Key is too long", GetRequestID(c)))
			return
		}

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		key := GetTenantID(c).String() + ":" + c.Request.Method + ":" + c.FullPath() + ":" + raw

		if replay(c, cfg.Store, key, log) {
			return
		}

		claimed, err := cfg.Store.Claim(ctx, key, cfg.PendingTTL)
		if err != nil {
			log.Warn("Idempotency store unavailable, processing request without deduplication", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			// The other request may have finished between Lookup and Claim.
			if replay(c, cfg.Store, key, log) {
				return
			}
			c.Set(ErrorCodeKey, dto.ErrCodeIdempotencyInFlight)
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeIdempotencyInFlight,
				"A request with this Idempotency-Key is still being processed",
				GetRequestID(c),
			))
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			if err := cfg.Store.Release(ctx, key); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
			return
		}
		payload, err := json.Marshal(storedResponse{Status: status, Body: writer.body.Bytes()})
		if err == nil {
			err = cfg.Store.Complete(ctx, key, payload, cfg.TTL)
		}
		if err != nil {
			log.Warn("Failed to store idempotent response", zap.Error(err))
			_ = cfg.Store.Release(ctx, key)
		}
	}
}

// replay writes a completed response for key and reports whether it did.
func replay(c *gin.Context, store cache.IdempotencyStore, key string, log *zap.Logger) bool {
	payload, done, err := store.Lookup(c.Request.Context(), key)
	if err != nil {
		log.Warn("Idempotency lookup failed", zap.Error(err))
		return false
	}
	if !done {
		return false
	}
	var stored storedResponse
	if err := json.Unmarshal(payload, &stored); err != nil {
		log.Warn("Discarding unreadable idempotent response", zap.Error(err))
		return false
	}
	c.Header(IdempotencyReplayedHeader, "true")
	c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
	c.Abort()
	return true
}
