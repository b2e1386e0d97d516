package di

import (
	"go.uber.org/zap"

	"graphsync/application/ports"
	"graphsync/application/services"
	"graphsync/infrastructure/config"
	"graphsync/interfaces/http/rest"
	"graphsync/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Collector
	EventStore ports.EventStore
	Publisher  ports.EventPublisher
	Registry   *services.Registry
	SyncWorker *services.SyncWorker
	Outbox     *services.OutboxProcessor
	Router     *rest.Router
}
