// Package handler implements the gin endpoints of the token service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/oauth2"
	"github.com/aicacia/go-auth/internal/service"
)

// AuthHandler serves the token, MFA, claim-signing, and provider-link
// endpoints.
type AuthHandler struct {
	Auth   *service.AuthService
	Flow   *oauth2.LinkFlow
	Logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, flow *oauth2.LinkFlow, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Flow: flow, Logger: logger}
}

// Health is the liveness probe.
func (h *AuthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError renders a service error as its field-keyed body. Anything
// that is not an ErrorBody becomes the generic internal error.
func respondError(c *gin.Context, err error) {
	var body *apierrors.ErrorBody
	if !errors.As(err, &body) {
		body = apierrors.Internal()
	}
	c.JSON(body.Status, body)
}
