// internal/middleware/tenant_middleware.go
package middleware

import (
	"net/http"
	"strconv"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// TenantMiddleware parses the tenant_id path parameter and stores it in the
// request context. All billing routes are tenant scoped.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := strconv.ParseInt(c.Param("tenant_id"), 10, 64)
		if err != nil || tenantID <= 0 {
			response.Error(c, http.StatusBadRequest, "invalid tenant id", err)
			return
		}

		c.Set("tenant_id", tenantID)
		c.Next()
	}
}

// MustGetTenantID gets the tenant ID from context or panics
func MustGetTenantID(c *gin.Context) int64 {
	tenantID, exists := c.Get("tenant_id")
	if !exists {
		panic("tenant_id not found in context")
	}
	return tenantID.(int64)
}
