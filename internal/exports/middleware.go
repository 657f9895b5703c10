package exports

import (
	"context"
	"net/http"

	"raccordement_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const exportKeyIDKey = "exportKeyID"

type keyLookup interface {
	GetAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error)
}

// APIKeyAuthMiddleware validates the X-Export-API-Key header.
func APIKeyAuthMiddleware(repo keyLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		plaintext := c.GetHeader("X-Export-API-Key")
		if plaintext == "" {
			httpkit.Error(c, http.StatusUnauthorized, "missing export API key", nil)
			c.Abort()
			return
		}

		key, err := repo.GetAPIKeyByHash(c.Request.Context(), HashKey(plaintext))
		if err != nil {
			httpkit.Error(c, http.StatusUnauthorized, "invalid export API key", nil)
			c.Abort()
			return
		}

		c.Set(exportKeyIDKey, key.ID)
		c.Next()
	}
}
