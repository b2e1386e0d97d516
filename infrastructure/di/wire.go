//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"graphsync/application/services"
	"graphsync/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClock,
	ProvideAWSConfig,
	ProvideEventStore,
	ProvideEventPublisher,
	ProvideBadgerDB,
	ProvideSnapshotStore,
	ProvideDependencies,
	services.NewRegistry,
	ProvideSyncWorker,
	services.NewOutboxProcessor,
	ProvideJWTValidator,
	ProvideErrorHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
