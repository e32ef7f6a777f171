//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"literature-flow/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideStores,
	ProvideCache,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideTracerProvider,
	ProvideSessionRegistry,
	ProvideLayoutWatcher,
	ProvideHTTPHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
