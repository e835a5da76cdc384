package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/http/middleware"
)

// SignJWT signs an arbitrary claim map with the calling service account's
// tenant key. The caller must present a service-account bearer token.
func (h *AuthHandler) SignJWT(c *gin.Context) {
	authorized, ok := middleware.GetAuthorized(c)
	if !ok {
		respondError(c, apierrors.Unauthorized())
		return
	}

	var claims map[string]any
	if err := c.ShouldBindJSON(&claims); err != nil {
		respondError(c, apierrors.Invalid("body"))
		return
	}

	token, err := h.Auth.SignClaims(c.Request.Context(), &authorized.Tenant, claims)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, token)
}

// DecodeJWT validates a token against the Tenant-ID header's tenant and
// returns the raw claim map.
func (h *AuthHandler) DecodeJWT(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		respondError(c, apierrors.TenantNotFound())
		return
	}

	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		respondError(c, apierrors.AuthorizationRequired())
		return
	}

	claims, err := h.Auth.DecodeClaims(c.Request.Context(), tenant, token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claims)
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
