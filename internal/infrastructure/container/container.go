// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/application/chat"
	"github.com/alchemorsel/recipe-studio/internal/application/gateway"
	"github.com/alchemorsel/recipe-studio/internal/application/orchestrator"
	"github.com/alchemorsel/recipe-studio/internal/application/store"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/ai"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/ai/openai"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/config"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/http/server"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/messaging"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/monitoring"
	gormrepo "github.com/alchemorsel/recipe-studio/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/persistence/migrations"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/persistence/postgres"
	redisrepo "github.com/alchemorsel/recipe-studio/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/persistence/sqlite"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/security"
	"github.com/alchemorsel/recipe-studio/internal/infrastructure/storage/s3"
	"github.com/alchemorsel/recipe-studio/internal/ports/inbound"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"github.com/alchemorsel/recipe-studio/pkg/healthcheck"
	"github.com/alchemorsel/recipe-studio/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigPathEnv names the environment variable holding an explicit config
// file path.
const ConfigPathEnv = "RECIPE_STUDIO_CONFIG"

// Module provides the full API server
var Module = fx.Options(
	CoreModule,
	HTTPModule,
	fx.Invoke(RegisterHTTPLifecycle, RegisterConfigWatcher),
)

// CoreModule provides everything except the HTTP transport. The CLI runs
// on it directly.
var CoreModule = fx.Options(
	ConfigModule,
	LoggerModule,
	MonitoringModule,
	DatabaseModule,
	CacheModule,
	MessagingModule,
	RepositoryModule,
	SecurityModule,
	ProviderModule,
	ServiceModule,
	fx.Invoke(RegisterCoreLifecycle),
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func() (*config.Config, error) {
		return config.Load(os.Getenv(ConfigPathEnv))
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
		return logger.NewWithLevel(logger.Config{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			Development: cfg.IsDevelopment(),
		})
	},
)

// MonitoringModule provides metrics and tracing
var MonitoringModule = fx.Provide(
	func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg
	},
	func(reg *prometheus.Registry) prometheus.Gatherer { return reg },
	func(cfg *config.Config, reg *prometheus.Registry) *monitoring.Metrics {
		if !cfg.Monitoring.MetricsEnabled {
			return nil
		}
		return monitoring.NewMetrics(reg)
	},
	func(cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		return monitoring.NewTracingProvider(monitoring.TracingConfig{
			ServiceName:    cfg.Monitoring.ServiceName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			SamplingRate:   cfg.Monitoring.SampleRate,
			Enabled:        cfg.Monitoring.TracingEnabled,
		}, log.Named("tracing"))
	},
)

// DatabaseModule provides the gorm connection for the configured driver
var DatabaseModule = fx.Provide(
	NewDatabase,
	func(db *gorm.DB) (*sql.DB, error) {
		return db.DB()
	},
)

// NewDatabase opens SQLite or PostgreSQL. PostgreSQL schemas are managed
// by the embedded migrations.
func NewDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dbLog := log.Named("database")

	if cfg.Database.Driver == "sqlite" {
		return sqlite.SetupDatabase(sqlite.Config{
			Path:        cfg.Database.SQLitePath,
			LogLevel:    cfg.Database.LogLevel,
			AutoMigrate: cfg.Database.AutoMigrate,
		}, dbLog)
	}

	db, err := postgres.Open(context.Background(), postgres.Config{
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		ReadReplicas:       cfg.Database.ReadReplicas,
		LogLevel:           cfg.Database.LogLevel,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	}, dbLog)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		migrator, err := migrations.New(sqlDB, dbLog)
		if err != nil {
			return nil, err
		}
		if err := migrator.Up(); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// CacheModule provides the cache repository. Redis is used when enabled,
// otherwise an in-process cache.
var CacheModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
		if !cfg.Redis.Enabled {
			return nil, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout+time.Second)
		defer cancel()
		return redisrepo.NewClient(ctx, redisrepo.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			Database:    cfg.Redis.Database,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		}, log.Named("redis"))
	},
	func(client *redis.Client, cfg *config.Config, log *zap.Logger) outbound.CacheRepository {
		if client == nil {
			log.Info("Using in-memory cache")
			return memory.NewCacheRepository(time.Minute)
		}
		return redisrepo.NewCacheRepository(client, cfg.App.Name+":", log)
	},
)

// MessagingModule provides the change feed bus
var MessagingModule = fx.Provide(
	func(client *redis.Client, cfg *config.Config, log *zap.Logger) outbound.MessageBus {
		if client == nil {
			return messaging.NewMemoryBus(log)
		}
		return messaging.NewRedisBus(client, cfg.App.Name+":", log)
	},
)

// RepositoryModule provides repository implementations
var RepositoryModule = fx.Provide(
	fx.Annotate(
		gormrepo.NewRecipeRepository,
		fx.As(new(outbound.RecipeRepository)),
	),
	fx.Annotate(
		gormrepo.NewPreferencesRepository,
		fx.As(new(outbound.PreferencesRepository)),
	),
)

// SecurityModule provides the identity service under each of its roles
var SecurityModule = fx.Provide(
	func(cfg *config.Config, cache outbound.CacheRepository, log *zap.Logger) *security.IdentityService {
		return security.NewIdentityService(security.Config{
			JWTSecret:     cfg.Auth.JWTSecret,
			JWTExpiration: cfg.Auth.JWTExpiration,
			Issuer:        cfg.Auth.Issuer,
		}, cache, log)
	},
	func(s *security.IdentityService) outbound.IdentityProvider { return s },
	func(s *security.IdentityService) middleware.Authenticator { return s },
	func(s *security.IdentityService) handlers.SignOuter { return s },
)

// ProviderModule provides the model provider and image storage
var ProviderModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) *openai.Provider {
		baseURL := cfg.AI.BaseURL
		if cfg.AI.Provider == "ollama" && baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		return openai.NewProvider(openai.Config{
			Name:        cfg.AI.Provider,
			APIKey:      cfg.AI.APIKey,
			BaseURL:     baseURL,
			TextModel:   cfg.AI.TextModel,
			VisionModel: cfg.AI.VisionModel,
			ImageModel:  cfg.AI.ImageModel,
			ImageSize:   cfg.AI.ImageSize,
		}, log)
	},
	func(p *openai.Provider, cache outbound.CacheRepository, cfg *config.Config, log *zap.Logger) outbound.ModelProvider {
		return ai.NewCachedProvider(p, cache, cfg.AI.CacheTTL, log)
	},
	func(p *openai.Provider, cfg *config.Config, log *zap.Logger) *ai.HealthChecker {
		return ai.NewHealthChecker(p, 5*time.Second, log)
	},
	func(cfg *config.Config, log *zap.Logger) (outbound.ImageStorage, error) {
		if !cfg.Storage.Enabled {
			return nil, nil
		}
		return s3.NewImageStore(s3.Config{
			Bucket:        cfg.Storage.Bucket,
			Region:        cfg.Storage.Region,
			Endpoint:      cfg.Storage.Endpoint,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		}, log)
	},
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	func(
		provider outbound.ModelProvider,
		cfg *config.Config,
		tracer *monitoring.TracingProvider,
		metrics *monitoring.Metrics,
		log *zap.Logger,
	) *gateway.Service {
		return gateway.NewService(provider, gateway.Config{
			RequestTimeout: cfg.AI.RequestTimeout,
			Temperature:    cfg.AI.Temperature,
			MaxTokens:      cfg.AI.MaxTokens,
		}, tracer, metrics, log)
	},
	func(s *gateway.Service) inbound.GenerationGateway { return s },

	store.NewService,
	func(s *store.Service) inbound.RecipeStore { return s },

	func(
		gw inbound.GenerationGateway,
		st inbound.RecipeStore,
		identity outbound.IdentityProvider,
		cache outbound.CacheRepository,
		images outbound.ImageStorage,
		tracer *monitoring.TracingProvider,
		metrics *monitoring.Metrics,
		cfg *config.Config,
		log *zap.Logger,
	) *orchestrator.Service {
		return orchestrator.NewService(gw, st, identity, cache, images, tracer, metrics, orchestrator.Config{
			AwaitEnrichment:   cfg.Generation.AwaitEnrichment,
			EnrichmentTimeout: cfg.Generation.EnrichmentTimeout,
			RunTTL:            cfg.Generation.RunTTL,
			ImagePrefix:       cfg.Storage.Prefix,
		}, log)
	},
	func(s *orchestrator.Service) inbound.GenerationOrchestrator { return s },

	func(
		gw inbound.GenerationGateway,
		st inbound.RecipeStore,
		identity outbound.IdentityProvider,
		metrics *monitoring.Metrics,
		cfg *config.Config,
		log *zap.Logger,
	) *chat.Service {
		return chat.NewService(gw, st, identity, metrics, chat.Config{
			SessionTTL:    cfg.Chat.SessionTTL,
			SweepInterval: cfg.Chat.SweepInterval,
		}, log)
	},
	func(s *chat.Service) inbound.ChatService { return s },
)

// HTTPModule provides health checks, handlers and the HTTP server
var HTTPModule = fx.Provide(
	NewHealthCheck,
	func(
		st inbound.RecipeStore,
		orch inbound.GenerationOrchestrator,
		gw inbound.GenerationGateway,
		ch inbound.ChatService,
		sessions handlers.SignOuter,
		bus outbound.MessageBus,
		cfg *config.Config,
		log *zap.Logger,
	) *handlers.Handlers {
		return handlers.New(st, orch, gw, ch, sessions, bus, handlers.Config{
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, log)
	},
	server.NewServer,
)

// NewHealthCheck registers the database, redis and model provider checks
func NewHealthCheck(
	cfg *config.Config,
	db *sql.DB,
	client *redis.Client,
	provider *ai.HealthChecker,
	log *zap.Logger,
) *healthcheck.HealthCheck {
	health := healthcheck.New(cfg.App.Version, log.Named("health"))
	health.Register("database", healthcheck.NewDatabaseChecker(db))
	if client != nil {
		health.Register("redis", healthcheck.Ping(
			func(ctx context.Context) error { return client.Ping(ctx).Err() },
			func() interface{} { return client.PoolStats() }))
	}
	health.Register("model_provider", healthcheck.CheckFunc(
		func(ctx context.Context) (healthcheck.Status, string, interface{}) {
			status := provider.CheckHealth(ctx)
			if !status.Healthy {
				// recipes stay readable without the provider
				return healthcheck.StatusDegraded, status.Details, status
			}
			return healthcheck.StatusHealthy, status.Details, status
		}))
	return health
}

// RegisterCoreLifecycle starts and stops the application services and
// releases the connections they use
func RegisterCoreLifecycle(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	db *sql.DB,
	client *redis.Client,
	cache outbound.CacheRepository,
	tracer *monitoring.TracingProvider,
	st *store.Service,
	orch *orchestrator.Service,
	ch *chat.Service,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting recipe studio",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
			)
			if err := st.Start(ctx); err != nil {
				return err
			}
			return ch.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			if err := ch.Stop(ctx); err != nil {
				log.Error("Failed to stop chat sweeper", zap.Error(err))
			}
			if err := orch.Wait(ctx); err != nil {
				log.Warn("Enrichment still running at shutdown", zap.Error(err))
			}
			if err := st.Stop(ctx); err != nil {
				log.Error("Failed to stop recipe store", zap.Error(err))
			}
			if err := tracer.Shutdown(ctx); err != nil {
				log.Error("Failed to flush traces", zap.Error(err))
			}
			if closer, ok := cache.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
			if client != nil {
				if err := client.Close(); err != nil {
					log.Error("Failed to close redis client", zap.Error(err))
				}
			}
			if err := db.Close(); err != nil {
				log.Error("Failed to close database connection", zap.Error(err))
			}

			_ = log.Sync()
			return nil
		},
	})
}

// RegisterConfigWatcher applies log level edits to the configuration file
// without a restart. Other settings take effect on the next start.
func RegisterConfigWatcher(lc fx.Lifecycle, cfg *config.Config, level zap.AtomicLevel, log *zap.Logger) error {
	if cfg.Source == "" {
		return nil
	}
	w, err := config.NewWatcher(cfg.Source, log.Named("config"))
	if err != nil {
		log.Warn("Config file will not be watched", zap.Error(err))
		return nil
	}
	w.OnChange(func(next *config.Config) {
		newLevel := logger.ParseLevel(next.Logging.Level)
		if newLevel != level.Level() {
			level.SetLevel(newLevel)
			log.Info("Log level changed", zap.Stringer("level", newLevel))
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go w.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return w.Close()
		},
	})
	return nil
}

// RegisterHTTPLifecycle serves HTTP while the application runs
func RegisterHTTPLifecycle(lc fx.Lifecycle, log *zap.Logger, srv *server.Server) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := srv.Listen()
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil {
					log.Error("HTTP server stopped", zap.Error(err))
				}
			}()
			go srv.RunLimiterCleanup(ctx, time.Minute)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return srv.Shutdown(stopCtx)
		},
	})
}
