package di

import (
	"net/http"

	"literature-flow/application/services"
	"literature-flow/infrastructure/config"
	"literature-flow/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Collector
	Tracing  *observability.TracerProvider
	Sessions *services.SessionRegistry
	Watcher  *config.LayoutWatcher
	Handler  http.Handler
}
