package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/aicacia/go-auth/internal/apierrors"
	"github.com/aicacia/go-auth/internal/jwt"
	"github.com/aicacia/go-auth/internal/service"
)

const authorizedContextKey = "authorizedContext"

// Auth validates Authorization headers against an expected token kind and
// subject kind and attaches the verified triple.
type Auth struct {
	AuthService *service.AuthService
}

// Require returns gin middleware enforcing the given kind/subject pair.
func (m *Auth) Require(kind jwt.Kind, subject jwt.SubjectKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorized, err := m.AuthService.ResolveAuthorization(c.Request.Context(), c.GetHeader("Authorization"), kind, subject)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(authorizedContextKey, authorized)
		c.Next()
	}
}

// RequireMFAStepUp enforces an MFA step-up token of any factor kind.
func (m *Auth) RequireMFAStepUp() gin.HandlerFunc {
	return func(c *gin.Context) {
		authorized, err := m.AuthService.ResolveMFAStepUp(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(authorizedContextKey, authorized)
		c.Next()
	}
}

// GetAuthorized extracts the verified triple from gin.
func GetAuthorized(c *gin.Context) (*service.Authorized, bool) {
	value, ok := c.Get(authorizedContextKey)
	if !ok {
		return nil, false
	}
	authorized, ok := value.(*service.Authorized)
	return authorized, ok
}

func abortWithError(c *gin.Context, err error) {
	var body *apierrors.ErrorBody
	if !errors.As(err, &body) {
		body = apierrors.Internal()
	}
	c.AbortWithStatusJSON(body.Status, body)
}
