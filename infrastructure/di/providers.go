package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"graphsync/application/ports"
	"graphsync/application/services"
	"graphsync/domain/core/valueobjects"
	"graphsync/infrastructure/config"
	"graphsync/infrastructure/messaging"
	"graphsync/infrastructure/messaging/eventbridge"
	"graphsync/infrastructure/persistence/badger"
	"graphsync/infrastructure/persistence/dynamodb"
	"graphsync/infrastructure/persistence/memory"
	"graphsync/interfaces/http/rest"
	"graphsync/pkg/auth"
	pkgerrors "graphsync/pkg/errors"
	"graphsync/pkg/observability"
)

const developmentSecret = "development-secret-change-in-production"

// ProvideLogger creates a new logger instance at the configured level
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

// ProvideMetrics creates the Prometheus collector, or nil when metrics are off
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("graphsync")
}

// ProvideClock creates the publish clock
func ProvideClock() ports.Clock {
	return messaging.NewMonotonicClock()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if cfg.StoreBackend != config.StoreAWS {
		return aws.Config{}, nil
	}
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideEventStore creates the event store for the configured backend
func ProvideEventStore(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventStore {
	if cfg.StoreBackend == config.StoreAWS {
		return dynamodb.NewEventStore(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger)
	}
	return memory.NewInMemoryEventStore()
}

// ProvideEventPublisher creates the fan-out publisher for the configured backend
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.StoreBackend == config.StoreAWS {
		return eventbridge.NewPublisher(
			awseventbridge.NewFromConfig(awsCfg),
			cfg.EventBusName,
			eventbridge.DefaultBreakerConfig(),
			logger,
		)
	}
	return messaging.NewLogPublisher(logger)
}

// ProvideBadgerDB opens the snapshot database; the cleanup closes it
func ProvideBadgerDB(cfg *config.Config, logger *zap.Logger) (*badgerdb.DB, func(), error) {
	dbCfg := badger.DefaultConfig(cfg.SnapshotPath)
	if cfg.SnapshotInMemory {
		dbCfg = badger.InMemoryConfig()
	}
	dbCfg.Logger = logger
	db, err := badger.Open(dbCfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close snapshot database", zap.Error(err))
		}
	}
	return db, cleanup, nil
}

// ProvideSnapshotStore creates the snapshot store
func ProvideSnapshotStore(db *badgerdb.DB) ports.SnapshotStore {
	return badger.NewSnapshotStore(db)
}

// ProvideDependencies groups what every workspace shares
func ProvideDependencies(
	cfg *config.Config,
	eventStore ports.EventStore,
	publisher ports.EventPublisher,
	snapshots ports.SnapshotStore,
	clock ports.Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) services.Dependencies {
	contacts := make([]valueobjects.AuthorID, 0, len(cfg.Contacts))
	for _, c := range cfg.Contacts {
		contacts = append(contacts, valueobjects.AuthorID(c))
	}
	return services.Dependencies{
		Events:          eventStore,
		Publisher:       publisher,
		Snapshots:       snapshots,
		Clock:           clock,
		Metrics:         metrics,
		Logger:          logger,
		MaxChunkChars:   cfg.MaxChunkChars,
		DefaultContacts: contacts,
	}
}

// ProvideSyncWorker creates the background publish/sync loop
func ProvideSyncWorker(registry *services.Registry, cfg *config.Config, logger *zap.Logger) *services.SyncWorker {
	return services.NewSyncWorker(registry, cfg.SyncInterval, logger)
}

// ProvideJWTValidator creates the bearer token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" && !cfg.IsProduction() {
		secret = developmentSecret
	}
	return auth.NewJWTValidator(secret, cfg.JWTIssuer)
}

// ProvideErrorHandler creates the HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	registry *services.Registry,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(registry, validator, metrics, errorHandler, logger, cfg.EnableCORS)
}
