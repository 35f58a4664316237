// Package storage opens the configured persistence backend and exposes its
// repositories behind the repository ports.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/internal/config"
	boltinfra "github.com/fastygo/taskboard/internal/infrastructure/bolt"
	mongoinfra "github.com/fastygo/taskboard/internal/infrastructure/mongo"
	pginfra "github.com/fastygo/taskboard/internal/infrastructure/postgres"
	redisinfra "github.com/fastygo/taskboard/internal/infrastructure/redis"
	"github.com/fastygo/taskboard/repository"
	boltrepo "github.com/fastygo/taskboard/repository/bolt"
	mongorepo "github.com/fastygo/taskboard/repository/mongo"
	pgrepo "github.com/fastygo/taskboard/repository/postgres"
	redisrepo "github.com/fastygo/taskboard/repository/redis"
)

// Backend bundles the repositories of one driver with its probes and closers.
type Backend struct {
	Driver string
	Users  repository.UserRepository
	Tasks  repository.TaskRepository

	// Probes maps a service name to its connectivity check.
	Probes map[string]repository.Pinger

	closers []func(context.Context) error
}

// Close releases every connection the backend opened, newest first.
func (b *Backend) Close(ctx context.Context) error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.closers = nil
	return firstErr
}

// Open connects to the driver named in cfg.Storage and, when configured,
// layers the Redis list cache over the task repository.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Backend{Driver: cfg.Storage.Driver, Probes: map[string]repository.Pinger{}}

	var err error
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		err = b.openPostgres(ctx, cfg, logger)
	case config.DriverMongo:
		err = b.openMongo(ctx, cfg, logger)
	case config.DriverBolt:
		err = b.openBolt(cfg, logger)
	default:
		err = fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		_ = b.Close(ctx)
		return nil, err
	}

	if cfg.Redis.Enabled() {
		client, err := redisinfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			_ = b.Close(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		b.Tasks = redisrepo.NewCachedTaskRepository(b.Tasks, client, cfg.Redis.TaskCacheTTL, logger)
		b.Probes["redis"] = redisrepo.NewPinger(client)
		logger.Info("task list cache enabled", zap.Duration("ttl", cfg.Redis.TaskCacheTTL))
	}

	logger.Info("storage ready", zap.String("driver", b.Driver))
	return b, nil
}

func (b *Backend) openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Migrations.Enabled {
		if err := pginfra.RunMigrations(cfg.Database, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	pool, err := pginfra.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	b.closers = append(b.closers, func(context.Context) error {
		pginfra.Close(pool, logger)
		return nil
	})
	b.Users = pgrepo.NewUserRepository(pool)
	b.Tasks = pgrepo.NewTaskRepository(pool)
	b.Probes["postgres"] = pgrepo.NewPinger(pool)
	return nil
}

func (b *Backend) openMongo(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, db, err := mongoinfra.Connect(ctx, cfg.Mongo, logger)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	b.closers = append(b.closers, client.Disconnect)
	if err := mongoinfra.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure mongodb indexes: %w", err)
	}
	b.Users = mongorepo.NewUserRepository(db)
	b.Tasks = mongorepo.NewTaskRepository(db)
	b.Probes["mongodb"] = mongorepo.NewPinger(client)
	return nil
}

func (b *Backend) openBolt(cfg *config.Config, logger *zap.Logger) error {
	db, err := boltinfra.Open(cfg.Bolt.Path)
	if err != nil {
		return fmt.Errorf("open boltdb: %w", err)
	}
	b.closers = append(b.closers, func(context.Context) error { return db.Close() })
	b.Users = boltrepo.NewUserRepository(db)
	b.Tasks = boltrepo.NewTaskRepository(db)
	b.Probes["boltdb"] = boltrepo.NewPinger(db)
	logger.Info("opened boltdb", zap.String("path", cfg.Bolt.Path))
	return nil
}

// Migrate applies schema changes for drivers that have them. Mongo indexes and
// bolt buckets are created on open, so only Postgres has work to do here.
func Migrate(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return pginfra.RunMigrations(cfg.Database, logger)
	case config.DriverMongo:
		client, db, err := mongoinfra.Connect(ctx, cfg.Mongo, logger)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		return mongoinfra.EnsureIndexes(ctx, db)
	case config.DriverBolt:
		db, err := boltinfra.Open(cfg.Bolt.Path)
		if err != nil {
			return err
		}
		return db.Close()
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
