package http

import (
	"context"

	"raccordement_backend/platform/config"
	"raccordement_backend/platform/logger"
)

// RouterConfig combines the settings the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker is pinged by the readiness endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by cmd/api and passed to the router.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
}
