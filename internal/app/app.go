// Package app assembles the process-wide dependencies shared by the
// server, the worker and the CLI.
package app

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iliyamo/boxoffice-sync/internal/config"
	"github.com/iliyamo/boxoffice-sync/internal/database"
	"github.com/iliyamo/boxoffice-sync/internal/middleware"
	"github.com/iliyamo/boxoffice-sync/internal/provider"
	"github.com/iliyamo/boxoffice-sync/internal/queue"
	"github.com/iliyamo/boxoffice-sync/internal/repository"
	"github.com/iliyamo/boxoffice-sync/internal/service"
)

// tokenPrefix namespaces shared OAuth tokens in Redis.
const tokenPrefix = "oauth:provider"

// App holds the wired dependencies of one process.
type App struct {
	Config    config.Config
	Sync      config.SyncConfig
	Log       *zap.Logger
	DB        *sql.DB
	Redis     *redis.Client // nil when Redis is unreachable
	Store     *repository.SQLStore
	Publisher *queue.Publisher
	Runner    *service.Runner

	// PurgeCache drops cached operator listings; a no-op without Redis.
	PurgeCache func(context.Context) error
}

// New loads configuration, opens MySQL (migrating when enabled), connects
// to Redis when available and builds the Runner.  Newly recorded webhook
// sales are published to RabbitMQ.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := config.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, eris.Wrap(err, "app: open database")
	}
	if cfg.Migrate {
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	rdb, err := config.NewRedisClient(context.Background(), config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable; tokens cached per process, rate limiting and caching disabled", zap.Error(err))
	}

	store := repository.NewSQLStore(db)
	pub := queue.NewPublisher(cfg.AMQPURL, log)
	cacheCfg := config.LoadCacheConfig()
	purge := func(ctx context.Context) error { return middleware.PurgeCache(ctx, cacheCfg, rdb) }
	opts := []service.RunnerOption{service.WithSaleNotifier(pub), service.WithPendingInvalidator(purge)}
	if rdb != nil {
		opts = append(opts, service.WithTokenStore(provider.NewRedisTokenStore(rdb, tokenPrefix)))
	}
	syncCfg := config.LoadSyncConfig()

	return &App{
		Config:    cfg,
		Sync:      syncCfg,
		Log:       log,
		DB:        db,
		Redis:     rdb,
		Store:     store,
		Publisher: pub,
		Runner:    service.NewRunner(store, syncCfg, log, opts...),

		PurgeCache: purge,
	}, nil
}

// Close releases the database and Redis connections and flushes the log.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = a.DB.Close()
	_ = a.Log.Sync()
}
