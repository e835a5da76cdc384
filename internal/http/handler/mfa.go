package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/http/middleware"
	"github.com/aicacia/go-auth/internal/service"
)

// MFA finalizes a login paused on a second factor. The Authorization header
// carries the step-up token issued by the password grant.
func (h *AuthHandler) MFA(c *gin.Context) {
	authorized, ok := middleware.GetAuthorized(c)
	if !ok {
		respondError(c, apierrors.Unauthorized())
		return
	}

	var req service.MFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.Invalid("body"))
		return
	}

	bundle, err := h.Auth.VerifyMFA(c.Request.Context(), authorized, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bundle)
}
