// Package http wires the gin surface of the service.
package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/aicacia/go-auth/internal/config"
	"github.com/aicacia/go-auth/internal/http/handler"
	"github.com/aicacia/go-auth/internal/http/middleware"
	"github.com/aicacia/go-auth/internal/jwt"
	"github.com/aicacia/go-auth/internal/tenant"
)

// NewRouter wires gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *middleware.Auth, resolver *tenant.Resolver, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	requireTenant := middleware.Tenant(resolver)

	r.POST("/token", requireTenant, authHandler.Token)
	r.GET("/token", authHandler.TokenValidate)

	r.POST("/mfa", authMiddleware.RequireMFAStepUp(), authHandler.MFA)

	r.POST("/jwt", authMiddleware.Require(jwt.KindBearer, jwt.SubjectServiceAccount), authHandler.SignJWT)
	r.GET("/jwt", requireTenant, authHandler.DecodeJWT)

	oauth := r.Group("/oauth2")
	{
		oauth.GET("/:provider", requireTenant, authHandler.OAuth2Authorize)
		oauth.GET("/:provider/callback", authHandler.OAuth2Callback)
	}
	r.GET("/current/oauth2/:provider", authMiddleware.Require(jwt.KindBearer, jwt.SubjectUser), authHandler.OAuth2Link)

	r.GET("/health", authHandler.Health)

	return r
}
