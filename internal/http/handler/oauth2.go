package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/http/middleware"
	"github.com/aicacia/go-auth/internal/oauth2"
)

// OAuth2Authorize redirects to an external provider's consent page. The
// register query flag marks the callback as a sign-up rather than a login.
func (h *AuthHandler) OAuth2Authorize(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		respondError(c, apierrors.TenantNotFound())
		return
	}

	register := c.Query("register") == "true"
	url, err := h.Flow.Authorize(c.Param("provider"), tenant, register, nil)
	if err != nil {
		respondError(c, oauthError(err))
		return
	}
	c.Redirect(http.StatusFound, url)
}

// OAuth2Callback completes a provider exchange and returns the external
// profile alongside the intent recorded at authorize time.
func (h *AuthHandler) OAuth2Callback(c *gin.Context) {
	profile, payload, err := h.Flow.Callback(c.Request.Context(), c.Param("provider"), c.Query("state"), c.Query("code"))
	if err != nil {
		respondError(c, oauthError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":          profile,
		"tenant_client_id": payload.TenantClientID,
		"user_id":          payload.UserID,
		"register":         payload.Register,
	})
}

// OAuth2Link starts a provider flow that links the external identity to the
// authenticated caller.
func (h *AuthHandler) OAuth2Link(c *gin.Context) {
	authorized, ok := middleware.GetAuthorized(c)
	if !ok || authorized.User == nil {
		respondError(c, apierrors.Unauthorized())
		return
	}

	url, err := h.Flow.Authorize(c.Param("provider"), &authorized.Tenant, false, &authorized.User.ID)
	if err != nil {
		respondError(c, oauthError(err))
		return
	}
	c.Redirect(http.StatusFound, url)
}

func oauthError(err error) error {
	switch {
	case errors.Is(err, oauth2.ErrProviderNotImplemented):
		return apierrors.NotFound("provider")
	case errors.Is(err, oauth2.ErrCallbackUnauthorized):
		return apierrors.Unauthorized()
	}
	return err
}
