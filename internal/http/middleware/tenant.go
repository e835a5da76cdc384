// Package middleware holds the gin middleware shared by the HTTP surface.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/domain"
	"github.com/aicacia/go-auth/internal/tenant"
)

const tenantContextKey = "tenantContext"

// TenantHeader is the request header carrying the tenant external client id.
const TenantHeader = "Tenant-ID"

// Tenant resolves the Tenant-ID header and attaches the tenant record to
// the gin context. Requests without a resolvable tenant are rejected.
func Tenant(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		row, err := resolver.ResolveByClientID(c.Request.Context(), c.GetHeader(TenantHeader))
		if err != nil {
			body := apierrors.TenantNotFound()
			c.AbortWithStatusJSON(body.Status, body)
			return
		}
		c.Set(tenantContextKey, row)
		c.Next()
	}
}

// GetTenant extracts the resolved tenant from gin.
func GetTenant(c *gin.Context) (*domain.Tenant, bool) {
	value, ok := c.Get(tenantContextKey)
	if !ok {
		return nil, false
	}
	row, ok := value.(*domain.Tenant)
	return row, ok
}
