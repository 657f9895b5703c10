// Package http defines the contract between domain modules and the router.
package http

import (
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context that mounts its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext hands modules the shared route groups and middleware.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without authentication.
	V1 *gin.RouterGroup
	// Public is /api/v1/public, rate limited per IP.
	Public *gin.RouterGroup
	// Protected requires a valid access token.
	Protected *gin.RouterGroup
	// Manager requires the manager role (admins inherit it).
	Manager *gin.RouterGroup
	// Admin is /api/v1/admin and requires the admin role.
	Admin *gin.RouterGroup
	// Partner is /api/partner/v1; the partner module installs API key auth.
	Partner *gin.RouterGroup

	Config            config.JWTConfig
	AuthMiddleware    gin.HandlerFunc
	AuthRateLimiter   *httpkit.AuthRateLimiter
	PublicRateLimiter *httpkit.KeyedRateLimiter
}
