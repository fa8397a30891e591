package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/cache"
	"github.com/ekaya-inc/discograph/pkg/config"
	"github.com/ekaya-inc/discograph/pkg/database"
	"github.com/ekaya-inc/discograph/pkg/logging"
	"github.com/ekaya-inc/discograph/pkg/repositories"
	"github.com/ekaya-inc/discograph/pkg/services"
)

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store        repositories.Backend
	sqliteDB     *sql.DB
	relationRepo repositories.RelationRepository
	entityRepo   repositories.EntityRepository

	closers []func()
}

// newApp loads configuration, builds the logger and connects to the relation store.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case config.DriverPostgres:
		connStr := a.cfg.Database.ConnectionString()
		a.logger.Info("Connecting to PostgreSQL",
			zap.String("connection", logging.SanitizeConnectionString(connStr)))

		db, err := database.OpenPostgres(ctx, &database.PostgresConfig{
			URL:            connStr,
			MaxConnections: a.cfg.Database.MaxConnections,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.store = repositories.NewPostgresBackend(db)

	case config.DriverSQLite:
		a.logger.Info("Opening SQLite database", zap.String("path", a.cfg.Database.SQLitePath))

		db, err := database.OpenSQLite(ctx, a.cfg.Database.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.sqliteDB = db
		a.store = repositories.NewSQLiteBackend(db)

	default:
		return fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}

	a.relationRepo = repositories.NewRelationRepository(a.store, nil)
	a.entityRepo = repositories.NewEntityRepository(a.store)
	return nil
}

// migrate applies pending schema migrations to the relation store.
func (a *app) migrate() error {
	db := a.sqliteDB
	if a.cfg.Database.Driver == config.DriverPostgres {
		// golang-migrate needs database/sql; the pool stays on pgx.
		sqlDB, err := sql.Open("pgx", a.cfg.Database.ConnectionString())
		if err != nil {
			return fmt.Errorf("failed to open migration connection: %w", err)
		}
		defer sqlDB.Close()
		db = sqlDB
	}
	return database.RunMigrations(db, a.cfg.Database.Driver, a.logger)
}

// openCache creates the result cache for the configured backend. A backend
// that cannot be opened is replaced by the none backend: the server runs
// uncached rather than not at all.
func (a *app) openCache(ctx context.Context) (*cache.Cache, error) {
	var backend cache.Backend
	switch a.cfg.Cache.Backend {
	case config.CacheBackendDisk:
		disk, err := cache.NewDiskBackend(a.cfg.Cache.Directory, a.logger)
		if err != nil {
			a.logger.Warn("Disk cache unavailable, serving uncached",
				zap.String("directory", a.cfg.Cache.Directory),
				zap.Error(err))
			backend = cache.NewNoneBackend()
			break
		}
		backend = disk
	case config.CacheBackendRedis:
		client := database.NewRedisClient(ctx, &a.cfg.Redis, a.logger)
		if client == nil {
			a.logger.Warn("Cache backend redis has no redis.host, serving uncached")
			backend = cache.NewNoneBackend()
			break
		}
		backend = cache.NewRedisBackend(client)
	case config.CacheBackendMemory:
		backend = cache.NewMemoryBackend(time.Now)
	case config.CacheBackendNone:
		backend = cache.NewNoneBackend()
	default:
		return nil, fmt.Errorf("unknown cache backend %q", a.cfg.Cache.Backend)
	}

	resultCache := cache.New(backend, a.cfg.Cache.TTL, a.logger)
	a.closers = append(a.closers, func() {
		if err := resultCache.Close(); err != nil {
			a.logger.Warn("Failed to close cache", zap.Error(err))
		}
	})
	a.logger.Info("Result cache ready",
		zap.String("backend", backend.Name()),
		zap.Duration("ttl", a.cfg.Cache.TTL))
	return resultCache, nil
}

// newDiscographService wires the network builder, the result cache and the
// stores into the query service.
func (a *app) newDiscographService(ctx context.Context) (services.DiscographService, error) {
	resultCache, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}

	resolver := services.NewEntityResolver(a.entityRepo, a.relationRepo, a.logger)
	expander := services.NewFrontierExpander(a.relationRepo, a.logger)
	builder := services.NewNetworkBuilder(resolver, expander, a.entityRepo, a.logger)

	return services.NewDiscographService(
		services.DiscographConfig{
			Network: cache.NetworkDefaults{
				Roles:     a.cfg.Network.Roles,
				MaxDegree: a.cfg.Network.MaxDegree,
				MaxNodes:  a.cfg.Network.MaxNodes,
				MaxLinks:  a.cfg.Network.MaxLinks,
			},
			SearchLimit:  a.cfg.Search.Limit,
			BuildTimeout: a.cfg.Network.BuildTimeout,
		},
		builder,
		a.relationRepo,
		a.entityRepo,
		resultCache,
		nil,
		a.logger,
	), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}
