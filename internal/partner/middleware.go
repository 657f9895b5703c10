package partner

import (
	"context"
	"net/http"
	"strconv"

	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	apiKeyHeader = "X-API-Key"
	contextKeyID = "partnerKeyID"
	quotaHeader  = "X-Quota-Remaining"
)

type keyLookup interface {
	GetByHash(ctx context.Context, keyHash string) (APIKey, error)
	Touch(ctx context.Context, id uuid.UUID)
}

// APIKeyAuthMiddleware resolves the X-API-Key header to an active key
// and stores its id on the context.
func APIKeyAuthMiddleware(keys keyLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(apiKeyHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "missing API key"})
			return
		}
		key, err := keys.GetByHash(c.Request.Context(), HashKey(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "invalid API key"})
			return
		}
		keys.Touch(c.Request.Context(), key.ID)
		c.Set(contextKeyID, key.ID)
		c.Next()
	}
}

// keyIDFrom returns the key resolved by APIKeyAuthMiddleware.
func keyIDFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(contextKeyID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func rateLimitKey(c *gin.Context) string {
	id, _ := keyIDFrom(c)
	return id.String()
}

// QuotaMiddleware enforces the daily request quota of each key. Quota
// store errors let the request through.
func QuotaMiddleware(quota Quota, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if quota == nil {
			c.Next()
			return
		}
		id, ok := keyIDFrom(c)
		if !ok {
			c.Next()
			return
		}
		remaining, err := quota.Take(c.Request.Context(), id)
		if err != nil {
			log.Warn("partner quota check failed", "keyId", id, "error", err)
			c.Next()
			return
		}
		if remaining < 0 {
			c.Header(quotaHeader, "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpkit.ErrorResponse{Error: "daily quota exceeded"})
			return
		}
		c.Header(quotaHeader, strconv.Itoa(remaining))
		c.Next()
	}
}
