package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/http/middleware"
	"github.com/aicacia/go-auth/internal/service"
)

// Token exchanges a grant for a token bundle. The grant_type field selects
// the credential shape expected in the rest of the body.
func (h *AuthHandler) Token(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		respondError(c, apierrors.TenantNotFound())
		return
	}

	var req service.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.New(http.StatusBadRequest).With("grant_type", apierrors.CodeRequired))
		return
	}

	bundle, err := h.Auth.Token(c.Request.Context(), tenant, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bundle)
}

// TokenValidate reports whether the presented bearer token is currently
// valid. The body is empty either way.
func (h *AuthHandler) TokenValidate(c *gin.Context) {
	if _, err := h.Auth.ResolveBearer(c.Request.Context(), c.GetHeader("Authorization")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
