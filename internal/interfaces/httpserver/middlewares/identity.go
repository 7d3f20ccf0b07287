package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

const ownerContextKey = "owner_id"

// IdentityMiddleware extracts the caller identity from the trusted proxy
// header. The header is set by the fronting reverse proxy after it has
// authenticated the user; a request without one is rejected.
func IdentityMiddleware(headerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := c.GetHeader(headerName)
		if ownerID == "" {
			platformerrors.WriteUnauthorized(c, "missing identity header")
			c.Abort()
			return
		}
		c.Set(ownerContextKey, ownerID)
		c.Next()
	}
}

// OwnerFromContext returns the identity set by IdentityMiddleware.
func OwnerFromContext(c *gin.Context) string {
	return c.GetString(ownerContextKey)
}
