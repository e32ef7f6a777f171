package di

import (
	"context"
	"fmt"
	"net/http"

	"literature-flow/application/ports"
	"literature-flow/application/services"
	"literature-flow/infrastructure/cache"
	"literature-flow/infrastructure/config"
	"literature-flow/infrastructure/messaging/eventbridge"
	"literature-flow/infrastructure/persistence"
	dynamostore "literature-flow/infrastructure/persistence/dynamodb"
	"literature-flow/infrastructure/persistence/memory"
	supastore "literature-flow/infrastructure/persistence/supabase"
	"literature-flow/interfaces/http/rest"
	"literature-flow/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MetricsNamespace prefixes every exported metric
const MetricsNamespace = "literature_flow"

// Stores are the authoritative graph and project stores
type Stores struct {
	Graph    ports.GraphStore
	Projects ports.ProjectStore
}

// ProvideLogger creates a new logger instance at the configured level
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideStores selects the store backend and guards graph calls with a
// circuit breaker when enabled
func ProvideStores(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (Stores, error) {
	var graph ports.GraphStore
	var projects ports.ProjectStore

	switch cfg.Store.Backend {
	case config.StoreSupabase:
		sc, err := supastore.NewClient(cfg.Store.SupabaseURL, cfg.Store.SupabaseKey)
		if err != nil {
			return Stores{}, fmt.Errorf("failed to create supabase client: %w", err)
		}
		store := supastore.NewStore(sc, logger)
		graph, projects = store, store
	case config.StoreDynamoDB:
		store := dynamostore.NewStore(client, cfg.Store.TableName, cfg.Store.IndexName, logger)
		graph, projects = store, store
	default:
		store := memory.NewGraphStore(logger)
		graph, projects = store, store
	}

	logger.Info("Graph store selected",
		zap.String("backend", cfg.Store.Backend),
		zap.Bool("breaker", cfg.Store.BreakerEnabled),
	)
	if cfg.Store.BreakerEnabled {
		graph = persistence.NewBreakerStore(graph, persistence.DefaultBreakerConfig("graph-store"), logger)
	}
	return Stores{Graph: graph, Projects: projects}, nil
}

// ProvideCache creates the client-side key/value cache
func ProvideCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.KeyValueCache, func(), error) {
	if cfg.Cache.Backend != config.CacheRedis {
		return cache.NewMemoryCache(cfg.Cache.MaxItems), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
	rc := cache.NewRedisCache(client, cfg.Cache.KeyPrefix, cfg.Cache.TTL)
	if err := rc.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
	}
	logger.Info("Redis cache connected", zap.String("addr", cfg.Cache.RedisAddr))
	return rc, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}, nil
}

// ProvideEventPublisher creates the EventBridge publisher. Without a bus name
// events are not published.
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(MetricsNamespace)
}

// ProvideTracerProvider starts OTLP tracing when enabled. A nil provider
// hands out no-op tracers.
func ProvideTracerProvider(cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing("literature-flow", cfg.Environment, cfg.TracingEndpoint)
	if err != nil {
		return nil, nil, err
	}
	return tp, func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}, nil
}

// ProvideSessionRegistry creates the per-project session registry and closes
// sessions left idle for SessionIdleTimeout
func ProvideSessionRegistry(
	cfg *config.Config,
	stores Stores,
	kv ports.KeyValueCache,
	publisher ports.EventPublisher,
	logger *zap.Logger,
	metrics *observability.Collector,
	tp *observability.TracerProvider,
) (*services.SessionRegistry, func()) {
	registry := services.NewSessionRegistry(services.SessionDeps{
		Store:        stores.Graph,
		Projects:     stores.Projects,
		Cache:        kv,
		Publisher:    publisher,
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tp.Tracer(),
		Layout:       cfg.LayoutConfig(),
		QueueSize:    cfg.WriteQueueSize,
		WriteTimeout: cfg.WriteTimeout,
	})
	registry.StartIdleEviction(cfg.SessionIdleTimeout)
	return registry, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.WriteTimeout)
		defer cancel()
		if err := registry.Close(ctx); err != nil {
			logger.Warn("Pending writes were not drained", zap.Error(err))
		}
	}
}

// ProvideLayoutWatcher hot-reloads the layout section of CONFIG_FILE in
// development. Elsewhere it returns nil.
func ProvideLayoutWatcher(cfg *config.Config, registry *services.SessionRegistry, logger *zap.Logger) (*config.LayoutWatcher, func(), error) {
	if cfg.ConfigFile == "" || !cfg.IsDevelopment() {
		return nil, func() {}, nil
	}
	watcher, err := config.NewLayoutWatcher(cfg.ConfigFile, logger)
	if err != nil {
		return nil, nil, err
	}
	watcher.OnChange(registry.UpdateLayoutConfig)
	watcher.Start()
	return watcher, watcher.Stop, nil
}

// ProvideHTTPHandler builds the REST router
func ProvideHTTPHandler(cfg *config.Config, registry *services.SessionRegistry, metrics *observability.Collector, logger *zap.Logger) http.Handler {
	return rest.NewRouter(registry, metrics, logger, rest.RouterOptions{
		EnableCORS:    cfg.EnableCORS,
		EnableMetrics: cfg.EnableMetrics,
		Debug:         cfg.IsDevelopment(),
	}).Setup()
}
